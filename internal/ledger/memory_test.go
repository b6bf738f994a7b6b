package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	token = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	alice = common.HexToAddress("0x01")
	bob   = common.HexToAddress("0x02")
	carol = common.HexToAddress("0x03")
)

func balance(t *testing.T, m *Memory, owner common.Address) int64 {
	t.Helper()
	bal, err := m.BalanceOf(context.Background(), token, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Mint(token, alice, big.NewInt(100))

	if err := m.Transfer(ctx, token, alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if balance(t, m, alice) != 40 || balance(t, m, bob) != 60 {
		t.Fatalf("balances mismatch")
	}
	if err := m.Transfer(ctx, token, alice, bob, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if balance(t, m, alice) != 40 {
		t.Fatalf("failed transfer must not move funds")
	}
	if err := m.Transfer(ctx, token, alice, bob, big.NewInt(-1)); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Mint(token, alice, big.NewInt(100))

	if err := m.TransferFrom(ctx, token, carol, alice, bob, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := m.Approve(ctx, token, alice, carol, big.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := m.TransferFrom(ctx, token, carol, alice, bob, big.NewInt(25)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	left, _ := m.Allowance(ctx, token, alice, carol)
	if left.Int64() != 5 {
		t.Fatalf("allowance mismatch: %s", left)
	}
	if err := m.TransferFrom(ctx, token, carol, alice, bob, big.NewInt(6)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	// an owner moving its own funds needs no allowance
	if err := m.TransferFrom(ctx, token, alice, alice, bob, big.NewInt(5)); err != nil {
		t.Fatalf("self transfer from: %v", err)
	}
	if balance(t, m, bob) != 30 {
		t.Fatalf("bob balance mismatch: %d", balance(t, m, bob))
	}
}

func TestHookRunsAfterTransfer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Mint(token, alice, big.NewInt(10))

	var seen int64
	m.SetHook(func(ctx context.Context, tok, from, to common.Address, amount *big.Int) {
		// the hook may read the ledger, so it must run outside the lock
		bal, _ := m.BalanceOf(ctx, tok, to)
		seen = bal.Int64()
	})
	if err := m.Transfer(ctx, token, alice, bob, big.NewInt(7)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if seen != 7 {
		t.Fatalf("hook saw balance %d, want 7", seen)
	}
	m.SetHook(nil)
	if err := m.Transfer(ctx, token, alice, bob, big.NewInt(1)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if seen != 7 {
		t.Fatalf("removed hook should not run")
	}
}
