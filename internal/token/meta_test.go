package token

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	mkr  = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
)

// fakeCaller answers ERC20 calls from canned values keyed by token and method.
type fakeCaller struct {
	replies  map[common.Address]map[string][]byte
	failures int
	calls    int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{replies: make(map[common.Address]map[string][]byte)}
}

func (f *fakeCaller) set(t *testing.T, token common.Address, parsed abi.ABI, method string, value interface{}) {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(value)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	if f.replies[token] == nil {
		f.replies[token] = make(map[string][]byte)
	}
	f.replies[token][method] = out
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	std, _ := StringABI()
	for name, method := range std.Methods {
		if bytes.HasPrefix(msg.Data, method.ID) {
			if reply, ok := f.replies[*msg.To][name]; ok {
				return reply, nil
			}
			return nil, fmt.Errorf("execution reverted")
		}
	}
	return nil, fmt.Errorf("unknown selector")
}

func TestFetchMeta(t *testing.T) {
	std, _ := StringABI()
	caller := newFakeCaller()
	caller.set(t, usdc, std, "decimals", uint8(6))
	caller.set(t, usdc, std, "symbol", "USDC")
	caller.set(t, usdc, std, "name", "USD Coin")

	meta, err := FetchMeta(context.Background(), caller, usdc, zap.NewNop())
	if err != nil {
		t.Fatalf("fetch meta: %v", err)
	}
	if meta.Decimals != 6 || meta.Symbol != "USDC" || meta.Name != "USD Coin" || meta.Partial {
		t.Fatalf("meta mismatch: %+v", meta)
	}
}

func TestFetchMetaBytes32(t *testing.T) {
	std, _ := StringABI()
	legacy, _ := Bytes32ABI()
	caller := newFakeCaller()
	caller.set(t, mkr, std, "decimals", uint8(18))
	var symbol [32]byte
	copy(symbol[:], "MKR")
	caller.set(t, mkr, legacy, "symbol", symbol)

	meta, err := FetchMeta(context.Background(), caller, mkr, nil)
	if err != nil {
		t.Fatalf("fetch meta: %v", err)
	}
	if meta.Symbol != "MKR" {
		t.Fatalf("symbol mismatch: %q", meta.Symbol)
	}
	if meta.Name != "" || !meta.Partial {
		t.Fatalf("missing name should mark meta partial: %+v", meta)
	}
}

func TestFetchMetaRequiresDecimals(t *testing.T) {
	std, _ := StringABI()
	caller := newFakeCaller()
	caller.set(t, usdc, std, "symbol", "USDC")
	if _, err := FetchMeta(context.Background(), caller, usdc, nil); err == nil {
		t.Fatalf("expected error without decimals")
	}
	if _, err := FetchMeta(context.Background(), nil, usdc, nil); err == nil {
		t.Fatalf("expected error for nil caller")
	}
}

func TestBalanceOf(t *testing.T) {
	std, _ := StringABI()
	caller := newFakeCaller()
	caller.set(t, usdc, std, "balanceOf", big.NewInt(1_500_000))

	bal, err := BalanceOf(context.Background(), caller, usdc, common.HexToAddress("0x01"), nil)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Int64() != 1_500_000 {
		t.Fatalf("balance mismatch: %s", bal)
	}
}

func TestResolverCachesAndRetries(t *testing.T) {
	std, _ := StringABI()
	caller := newFakeCaller()
	caller.set(t, usdc, std, "decimals", uint8(6))
	caller.set(t, usdc, std, "symbol", " USDC ")
	caller.set(t, usdc, std, "name", "USD Coin")
	caller.failures = 1

	resolver := NewResolver(caller, nil, 2, 1, zap.NewNop())
	symbol, err := resolver.Symbol(context.Background(), usdc)
	if err != nil {
		t.Fatalf("symbol: %v", err)
	}
	if symbol != "USDC" {
		t.Fatalf("symbol mismatch: %q", symbol)
	}
	calls := caller.calls
	if _, err := resolver.Meta(context.Background(), usdc); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if caller.calls != calls {
		t.Fatalf("cached lookup should not call the chain")
	}
}

func TestResolverSymbolMissing(t *testing.T) {
	std, _ := StringABI()
	caller := newFakeCaller()
	caller.set(t, mkr, std, "decimals", uint8(18))

	resolver := NewResolver(caller, NewCache(), 0, 1, nil)
	if _, err := resolver.Symbol(context.Background(), mkr); err == nil {
		t.Fatalf("expected error for token without symbol")
	}
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" " + usdc.Hex(), "", mkr.Hex()})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0] != usdc || got[1] != mkr {
		t.Fatalf("addresses mismatch: %v", got)
	}
	if _, err := ParseAddresses([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short address")
	}
}
