package vault

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"pairVault/internal/model"
	"pairVault/internal/protocol"
)

// TotalAssets is held + outstanding - accrued fees.
func (p *Pool) TotalAssets(ctx context.Context) (*big.Int, error) {
	defer p.guard.View(ctx)()
	return p.totalAssets(ctx)
}

// Held is the pool account's balance in the underlying, accrued fees included.
func (p *Pool) Held(ctx context.Context) (*big.Int, error) {
	defer p.guard.View(ctx)()
	return p.held(ctx)
}

func (p *Pool) TotalShares(ctx context.Context) *big.Int {
	defer p.guard.View(ctx)()
	return new(big.Int).Set(p.totalShares)
}

func (p *Pool) SharesOf(ctx context.Context, owner common.Address) *big.Int {
	defer p.guard.View(ctx)()
	return new(big.Int).Set(p.sharesOf(owner))
}

func (p *Pool) Outstanding(ctx context.Context) *big.Int {
	defer p.guard.View(ctx)()
	return new(big.Int).Set(p.outstanding)
}

func (p *Pool) AccruedFees(ctx context.Context) *big.Int {
	defer p.guard.View(ctx)()
	return new(big.Int).Set(p.accruedFees)
}

func (p *Pool) FeeBps(ctx context.Context) uint64 {
	defer p.guard.View(ctx)()
	return p.feeBps
}

func (p *Pool) FeeRecipient(ctx context.Context) common.Address {
	defer p.guard.View(ctx)()
	return p.feeRecipient
}

// ConvertToShares returns the shares assets would be worth at the current price.
func (p *Pool) ConvertToShares(ctx context.Context, assets *big.Int) (*big.Int, error) {
	defer p.guard.View(ctx)()
	total, err := p.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	if p.totalShares.Sign() == 0 || total.Sign() == 0 {
		return new(big.Int).Set(protocol.OrZero(assets)), nil
	}
	return protocol.MulDiv(protocol.OrZero(assets), p.totalShares, total), nil
}

// ConvertToAssets returns the assets shares would be worth at the current price.
func (p *Pool) ConvertToAssets(ctx context.Context, shares *big.Int) (*big.Int, error) {
	defer p.guard.View(ctx)()
	total, err := p.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	if p.totalShares.Sign() == 0 {
		return new(big.Int).Set(protocol.OrZero(shares)), nil
	}
	return protocol.MulDiv(protocol.OrZero(shares), total, p.totalShares), nil
}

// PreviewDeposit returns the shares Deposit(amount) would mint now, genesis floor
// included.
func (p *Pool) PreviewDeposit(ctx context.Context, amount *big.Int) (*big.Int, error) {
	defer p.guard.View(ctx)()
	if !protocol.Positive(amount) {
		return new(big.Int), nil
	}
	total, err := p.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	minted, _, err := p.sharesFor(amount, total)
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// PreviewWithdraw returns the net assets and fee Withdraw(shares) would pay now.
func (p *Pool) PreviewWithdraw(ctx context.Context, shares *big.Int) (*big.Int, *big.Int, error) {
	defer p.guard.View(ctx)()
	if !protocol.Positive(shares) || p.totalShares.Sign() == 0 {
		return new(big.Int), new(big.Int), nil
	}
	total, err := p.totalAssets(ctx)
	if err != nil {
		return nil, nil, err
	}
	assetsOut := protocol.MulDiv(shares, total, p.totalShares)
	fee := protocol.ApplyBps(assetsOut, p.feeBps)
	return assetsOut.Sub(assetsOut, fee), fee, nil
}

// MaxWithdraw returns how many of owner's shares can be redeemed from the available
// balance right now, which is less than their holding while orders are open.
func (p *Pool) MaxWithdraw(ctx context.Context, owner common.Address) (*big.Int, error) {
	defer p.guard.View(ctx)()
	owned := p.sharesOf(owner)
	if owned.Sign() == 0 {
		return new(big.Int), nil
	}
	total, err := p.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 {
		return new(big.Int), nil
	}
	available, err := p.available(ctx)
	if err != nil {
		return nil, err
	}
	limit := protocol.MulDiv(available, p.totalShares, total)
	return protocol.Min(owned, limit), nil
}

// SharePrice is assets per share, for display.
func (p *Pool) SharePrice(ctx context.Context) (decimal.Decimal, error) {
	defer p.guard.View(ctx)()
	if p.totalShares.Sign() == 0 {
		return decimal.NewFromInt(1), nil
	}
	total, err := p.totalAssets(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(total, 0).DivRound(decimal.NewFromBigInt(p.totalShares, 0), 18), nil
}

// Snapshot captures the pool's accounting at now.
func (p *Pool) Snapshot(ctx context.Context, now time.Time) (model.PoolSnapshot, error) {
	defer p.guard.View(ctx)()
	held, err := p.held(ctx)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	total, err := p.totalAssets(ctx)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	return model.PoolSnapshot{
		Pool:         p.address.Hex(),
		Underlying:   p.underlying.Hex(),
		Symbol:       p.Symbol(),
		TotalShares:  p.totalShares.String(),
		TotalAssets:  total.String(),
		Held:         held.String(),
		Outstanding:  p.outstanding.String(),
		AccruedFees:  p.accruedFees.String(),
		FeeBps:       p.feeBps,
		FeeRecipient: p.feeRecipient.Hex(),
		TakenAt:      now.UTC(),
	}, nil
}
