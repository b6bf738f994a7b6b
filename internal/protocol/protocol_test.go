package protocol

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestGuardRejectsReentry(t *testing.T) {
	var g Guard
	ctx, release, err := g.Enter(context.Background())
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if !g.Held(ctx) {
		t.Fatalf("entered context should hold the guard")
	}
	if _, _, err := g.Enter(ctx); !errors.Is(err, ErrReentrant) {
		t.Fatalf("expected ErrReentrant, got %v", err)
	}
	// a view from inside the callback must not block
	g.View(ctx)()
	release()

	if g.Held(context.Background()) {
		t.Fatalf("plain context should not hold the guard")
	}
	_, release, err = g.Enter(context.Background())
	if err != nil {
		t.Fatalf("guard should be free after release: %v", err)
	}
	release()
}

func TestGuardsAreIndependent(t *testing.T) {
	var outer, inner Guard
	ctx, releaseOuter, err := outer.Enter(context.Background())
	if err != nil {
		t.Fatalf("enter outer: %v", err)
	}
	defer releaseOuter()
	ctx, releaseInner, err := inner.Enter(ctx)
	if err != nil {
		t.Fatalf("a different guard should accept the marked context: %v", err)
	}
	releaseInner()
	if _, _, err := outer.Enter(ctx); !errors.Is(err, ErrReentrant) {
		t.Fatalf("outer mark should survive nesting, got %v", err)
	}
}

func TestApplyBps(t *testing.T) {
	cases := []struct {
		value int64
		bps   uint64
		want  int64
	}{
		{10_000, 20, 20},
		{2_000, 20, 4},
		{999, 1, 0},
		{1_000, 10_000, 1_000},
		{1_000, 0, 0},
	}
	for _, tc := range cases {
		if got := ApplyBps(big.NewInt(tc.value), tc.bps).Int64(); got != tc.want {
			t.Fatalf("ApplyBps(%d, %d) = %d, want %d", tc.value, tc.bps, got, tc.want)
		}
	}
	if ApplyBps(nil, 100).Sign() != 0 {
		t.Fatalf("nil value should apply to zero")
	}
	if !ValidBps(10_000) || ValidBps(10_001) {
		t.Fatalf("bps bounds mismatch")
	}
}

func TestBigHelpers(t *testing.T) {
	a, b := big.NewInt(3), big.NewInt(5)
	low := Min(b, a)
	if low.Int64() != 3 {
		t.Fatalf("min mismatch: %s", low)
	}
	low.SetInt64(0)
	if a.Int64() != 3 {
		t.Fatalf("Min must return a copy")
	}
	if OrZero(nil).Sign() != 0 || OrZero(a) != a {
		t.Fatalf("OrZero mismatch")
	}
	if Positive(nil) || Positive(big.NewInt(0)) || !Positive(a) {
		t.Fatalf("Positive mismatch")
	}
	if got := MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2)).Int64(); got != 10 {
		t.Fatalf("MulDiv should round down, got %d", got)
	}
}

func TestGate(t *testing.T) {
	pair := common.HexToAddress("0x01")
	other := common.HexToAddress("0x02")

	g := NewGate()
	if g.Authorized(common.Address{}) || g.Authorized(pair) {
		t.Fatalf("unwired gate must refuse everyone")
	}
	g.Set(pair)
	if !g.Authorized(pair) || g.Authorized(other) {
		t.Fatalf("gate should only admit the wired pair")
	}
	g.Set(other)
	if g.Authorized(pair) || g.Pair() != other {
		t.Fatalf("rewired gate must drop the old pair")
	}

	if !StaticGate(pair).Authorized(pair) || StaticGate(common.Address{}).Authorized(common.Address{}) {
		t.Fatalf("static gate mismatch")
	}
}

func TestErrorKind(t *testing.T) {
	wrapped := fmt.Errorf("place ask: %w", fmt.Errorf("order 3: %w", ErrOrderTooLarge))
	if got := ErrorKind(wrapped); got != "OrderTooLarge" {
		t.Fatalf("kind mismatch: %q", got)
	}
	if ErrorKind(nil) != "" || ErrorKind(errors.New("io")) != "" {
		t.Fatalf("unknown errors should map to empty kind")
	}
}
