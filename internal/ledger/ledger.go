package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Tokens is the fungible-token ledger consumed by pools, the registry and the pair.
// Every call is all-or-nothing.
type Tokens interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error
	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error
}
