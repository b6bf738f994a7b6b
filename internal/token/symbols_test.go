package token

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSymbolsPrefersStaticTable(t *testing.T) {
	caller := newFakeCaller()
	parsed, err := StringABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	caller.set(t, usdc, parsed, "decimals", uint8(6))
	caller.set(t, usdc, parsed, "symbol", "USDC")

	symbols := Symbols{
		Static:   map[common.Address]string{mkr: "MKR"},
		Resolver: NewResolver(caller, nil, 0, 0, nil),
	}
	ctx := context.Background()

	got, err := symbols.Symbol(ctx, mkr)
	if err != nil || got != "MKR" {
		t.Fatalf("static symbol: %q %v", got, err)
	}
	if caller.calls != 0 {
		t.Fatalf("static hit should not call rpc, got %d calls", caller.calls)
	}

	got, err = symbols.Symbol(ctx, usdc)
	if err != nil || got != "USDC" {
		t.Fatalf("rpc symbol: %q %v", got, err)
	}
}

func TestSymbolsWithoutResolver(t *testing.T) {
	symbols := Symbols{}
	if _, err := symbols.Symbol(context.Background(), usdc); err == nil {
		t.Fatalf("expected error without table entry or resolver")
	}
}
