package protocol

import "errors"

var (
	ErrNotAuthorized         = errors.New("not authorized")
	ErrUnknownTrade          = errors.New("unknown trade")
	ErrAlreadyScrubbed       = errors.New("trade already scrubbed")
	ErrOrderTooLarge         = errors.New("order too large")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrPoolExists            = errors.New("pool exists")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrReentrant             = errors.New("reentrant call")
	ErrPairNotWired          = errors.New("pair not wired")
)

// ErrorKind maps an error to the short name used in scenario files and events.
// Unknown errors map to an empty string.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthorized):
		return "NotAuthorized"
	case errors.Is(err, ErrUnknownTrade):
		return "UnknownTrade"
	case errors.Is(err, ErrAlreadyScrubbed):
		return "AlreadyScrubbed"
	case errors.Is(err, ErrOrderTooLarge):
		return "OrderTooLarge"
	case errors.Is(err, ErrInsufficientLiquidity):
		return "InsufficientLiquidity"
	case errors.Is(err, ErrPoolExists):
		return "PoolExists"
	case errors.Is(err, ErrPoolNotFound):
		return "PoolNotFound"
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrReentrant):
		return "Reentrant"
	case errors.Is(err, ErrPairNotWired):
		return "PairNotWired"
	default:
		return ""
	}
}
