package exchange

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownOrder  = errors.New("unknown order")
	ErrOrderInactive = errors.New("order not active")
	ErrNotMaker      = errors.New("caller is not the order maker")
)

// NoOrder is the order reference used for an absent leg.
const NoOrder uint64 = 0

// OrderState is the fill state of one order. Filled and Remaining are in units of the
// sell asset. A cancelled order reports Active=false and Remaining=0.
type OrderState struct {
	Filled    *big.Int
	Remaining *big.Int
	Active    bool
}

// Exchange is the limit-order venue pools place liquidity on. Makers must approve
// Address() for the sell amount before PlaceOrder.
type Exchange interface {
	Address() common.Address
	PlaceOrder(ctx context.Context, maker common.Address, sellAmount *big.Int, sellAsset common.Address, buyAmount *big.Int, buyAsset common.Address) (uint64, error)
	CancelOrder(ctx context.Context, caller common.Address, id uint64) error
	OrderState(ctx context.Context, id uint64) (OrderState, error)
	// BestOrder returns the cheapest active order selling sellAsset for buyAsset,
	// or NoOrder when that side of the book is empty.
	BestOrder(ctx context.Context, sellAsset, buyAsset common.Address) (uint64, error)
}
