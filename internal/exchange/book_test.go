package exchange

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"pairVault/internal/ledger"
)

var (
	venue  = common.HexToAddress("0x3000000000000000000000000000000000000001")
	base   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	quote  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	maker  = common.HexToAddress("0x01")
	taker  = common.HexToAddress("0x02")
	maker2 = common.HexToAddress("0x03")
)

func newBook(t *testing.T) (*Book, *ledger.Memory) {
	t.Helper()
	tokens := ledger.NewMemory()
	return NewBook(venue, tokens), tokens
}

func fund(t *testing.T, tokens *ledger.Memory, token, owner common.Address, amount int64) {
	t.Helper()
	tokens.Mint(token, owner, big.NewInt(amount))
	if err := tokens.Approve(context.Background(), token, owner, venue, big.NewInt(amount)); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func balance(t *testing.T, tokens *ledger.Memory, token, owner common.Address) int64 {
	t.Helper()
	bal, err := tokens.BalanceOf(context.Background(), token, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestPlaceTakeCancel(t *testing.T) {
	ctx := context.Background()
	book, tokens := newBook(t)
	fund(t, tokens, base, maker, 1_000)

	id, err := book.PlaceOrder(ctx, maker, big.NewInt(1_000), base, big.NewInt(3_000), quote)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if balance(t, tokens, base, venue) != 1_000 {
		t.Fatalf("order should be escrowed")
	}

	fund(t, tokens, quote, taker, 1_000)
	filled, err := book.Take(ctx, taker, id, big.NewInt(333))
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if filled.Int64() != 333 || balance(t, tokens, quote, maker) != 999 || balance(t, tokens, base, taker) != 333 {
		t.Fatalf("fill mismatch")
	}

	state, err := book.OrderState(ctx, id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Filled.Int64() != 333 || state.Remaining.Int64() != 667 || !state.Active {
		t.Fatalf("state mismatch: %+v", state)
	}

	if err := book.CancelOrder(ctx, taker, id); !errors.Is(err, ErrNotMaker) {
		t.Fatalf("expected ErrNotMaker, got %v", err)
	}
	if err := book.CancelOrder(ctx, maker, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if balance(t, tokens, base, maker) != 667 {
		t.Fatalf("cancel should refund the remainder")
	}
	if err := book.CancelOrder(ctx, maker, id); !errors.Is(err, ErrOrderInactive) {
		t.Fatalf("expected ErrOrderInactive, got %v", err)
	}
	if _, err := book.Take(ctx, taker, id, big.NewInt(1)); !errors.Is(err, ErrOrderInactive) {
		t.Fatalf("expected ErrOrderInactive on take, got %v", err)
	}
}

func TestTakeRoundsPaymentUp(t *testing.T) {
	ctx := context.Background()
	book, tokens := newBook(t)
	fund(t, tokens, base, maker, 3)
	id, err := book.PlaceOrder(ctx, maker, big.NewInt(3), base, big.NewInt(1), quote)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	fund(t, tokens, quote, taker, 1)
	if _, err := book.Take(ctx, taker, id, big.NewInt(1)); err != nil {
		t.Fatalf("take: %v", err)
	}
	if balance(t, tokens, quote, maker) != 1 {
		t.Fatalf("a dust fill must still pay the maker")
	}
}

func TestTakeFailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	book, tokens := newBook(t)
	fund(t, tokens, base, maker, 100)
	id, _ := book.PlaceOrder(ctx, maker, big.NewInt(100), base, big.NewInt(100), quote)

	if _, err := book.Take(ctx, taker, id, big.NewInt(50)); err == nil {
		t.Fatalf("expected take without funds to fail")
	}
	order, ok := book.Order(id)
	if !ok || order.Remaining.Int64() != 100 || !order.Active {
		t.Fatalf("failed take must release its reservation: %+v", order)
	}
	if _, err := book.Take(ctx, taker, 99, big.NewInt(1)); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
}

func TestBestOrder(t *testing.T) {
	ctx := context.Background()
	book, tokens := newBook(t)
	fund(t, tokens, base, maker, 100)
	fund(t, tokens, base, maker2, 100)

	if id, _ := book.BestOrder(ctx, base, quote); id != NoOrder {
		t.Fatalf("empty side should report NoOrder")
	}
	if _, err := book.PlaceOrder(ctx, maker, big.NewInt(50), base, big.NewInt(100), quote); err != nil {
		t.Fatalf("place: %v", err)
	}
	cheap, _ := book.PlaceOrder(ctx, maker2, big.NewInt(50), base, big.NewInt(60), quote)
	tie, _ := book.PlaceOrder(ctx, maker, big.NewInt(50), base, big.NewInt(60), quote)

	if id, _ := book.BestOrder(ctx, base, quote); id != cheap {
		t.Fatalf("best order should be the cheapest oldest, got %d", id)
	}
	if err := book.CancelOrder(ctx, maker2, cheap); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if id, _ := book.BestOrder(ctx, base, quote); id != tie {
		t.Fatalf("expected %d after cancel, got %d", tie, id)
	}
	if id, _ := book.BestOrder(ctx, quote, base); id != NoOrder {
		t.Fatalf("other side should be empty")
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	ctx := context.Background()
	book, tokens := newBook(t)
	fund(t, tokens, base, maker, 10)
	if _, err := book.PlaceOrder(ctx, maker, big.NewInt(0), base, big.NewInt(1), quote); err == nil {
		t.Fatalf("expected error for zero sell amount")
	}
	if _, err := book.PlaceOrder(ctx, maker, big.NewInt(1), base, big.NewInt(1), base); err == nil {
		t.Fatalf("expected error for same asset")
	}
	if _, err := book.PlaceOrder(ctx, maker, big.NewInt(11), base, big.NewInt(1), quote); err == nil {
		t.Fatalf("expected error when escrow fails")
	}
}
