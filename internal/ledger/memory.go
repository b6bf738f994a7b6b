package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TransferHook observes a completed transfer. It runs after the ledger lock is
// released, the way a token callback would run on chain, so it may call back into
// whoever initiated the transfer.
type TransferHook func(ctx context.Context, token, from, to common.Address, amount *big.Int)

// Memory is an in-process token ledger.
type Memory struct {
	mu         sync.RWMutex
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	hook       TransferHook
}

func NewMemory() *Memory {
	return &Memory{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
	}
}

// SetHook installs a transfer hook; nil removes it.
func (m *Memory) SetHook(hook TransferHook) {
	m.mu.Lock()
	m.hook = hook
	m.mu.Unlock()
}

// Mint credits amount of token to owner out of thin air.
func (m *Memory) Mint(token, to common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	m.mu.Lock()
	bal := m.balanceLocked(token, to)
	bal.Add(bal, amount)
	m.mu.Unlock()
}

func (m *Memory) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if bal, ok := m.balances[token][owner]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (m *Memory) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if allowed, ok := m.allowances[token][owner][spender]; ok {
		return new(big.Int).Set(allowed), nil
	}
	return new(big.Int), nil
}

func (m *Memory) Approve(_ context.Context, token, owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("approve: negative amount")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	owners := m.allowances[token]
	if owners == nil {
		owners = make(map[common.Address]map[common.Address]*big.Int)
		m.allowances[token] = owners
	}
	spenders := owners[owner]
	if spenders == nil {
		spenders = make(map[common.Address]*big.Int)
		owners[owner] = spenders
	}
	spenders[spender] = new(big.Int).Set(amount)
	return nil
}

func (m *Memory) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if err := m.move(token, from, to, amount, nil); err != nil {
		return err
	}
	m.notify(ctx, token, from, to, amount)
	return nil
}

func (m *Memory) TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error {
	if err := m.move(token, from, to, amount, &spender); err != nil {
		return err
	}
	m.notify(ctx, token, from, to, amount)
	return nil
}

func (m *Memory) move(token, from, to common.Address, amount *big.Int, spender *common.Address) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer: negative amount")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.balanceLocked(token, from)
	if src.Cmp(amount) < 0 {
		return fmt.Errorf("transfer %s from %s: %w", amount, from.Hex(), ErrInsufficientBalance)
	}
	if spender != nil && *spender != from {
		allowed := m.allowances[token][from][*spender]
		if allowed == nil || allowed.Cmp(amount) < 0 {
			return fmt.Errorf("transfer %s by %s: %w", amount, spender.Hex(), ErrInsufficientAllowance)
		}
		allowed.Sub(allowed, amount)
	}
	src.Sub(src, amount)
	dst := m.balanceLocked(token, to)
	dst.Add(dst, amount)
	return nil
}

func (m *Memory) notify(ctx context.Context, token, from, to common.Address, amount *big.Int) {
	m.mu.RLock()
	hook := m.hook
	m.mu.RUnlock()
	if hook != nil {
		hook(ctx, token, from, to, new(big.Int).Set(amount))
	}
}

func (m *Memory) balanceLocked(token, owner common.Address) *big.Int {
	owners := m.balances[token]
	if owners == nil {
		owners = make(map[common.Address]*big.Int)
		m.balances[token] = owners
	}
	bal := owners[owner]
	if bal == nil {
		bal = new(big.Int)
		owners[owner] = bal
	}
	return bal
}
