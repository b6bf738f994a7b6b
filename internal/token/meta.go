package token

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/model"
)

// Caller runs read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FetchMeta loads token metadata via ERC20 calls. Decimals is required; symbol and
// name fall back to the bytes32 layout and are left empty when neither decodes.
func FetchMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	std, err := StringABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	legacy, err := Bytes32ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := call(ctx, caller, token, std, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, fmt.Errorf("decimals: %w", err)
	}
	meta.Decimals = decimals

	var ok bool
	if meta.Symbol, ok = readText(ctx, caller, token, std, legacy, "symbol", logger); !ok {
		meta.Partial = true
	}
	if meta.Name, ok = readText(ctx, caller, token, std, legacy, "name", logger); !ok {
		meta.Partial = true
	}
	return meta, nil
}

// BalanceOf reads owner's balance of token at block, or at the latest block when
// block is nil.
func BalanceOf(ctx context.Context, caller Caller, token, owner common.Address, block *big.Int) (*big.Int, error) {
	std, err := StringABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	values, err := call(ctx, caller, token, std, "balanceOf", block, owner)
	if err != nil {
		return nil, err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unsupported type %T", values[0])
	}
	return bal, nil
}

func readText(ctx context.Context, caller Caller, token common.Address, std, legacy abi.ABI, method string, logger *zap.Logger) (string, bool) {
	values, err := call(ctx, caller, token, std, method, nil)
	if err == nil {
		if text, ok := values[0].(string); ok {
			return text, true
		}
	}
	values, legacyErr := call(ctx, caller, token, legacy, method, nil)
	if legacyErr == nil {
		if text, ok := bytes32ToString(values[0]); ok {
			return text, true
		}
	}
	logger.Debug("token text call failed",
		zap.String("token", token.Hex()),
		zap.String("method", method),
		zap.NamedError("string_err", err),
		zap.NamedError("bytes32_err", legacyErr),
	)
	return "", false
}

func call(ctx context.Context, caller Caller, token common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
