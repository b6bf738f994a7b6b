package vault

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/events"
	"pairVault/internal/exchange"
	"pairVault/internal/ledger"
	"pairVault/internal/model"
	"pairVault/internal/protocol"
)

// MinLiquidity is burned into the zero address on the genesis deposit so the first
// depositor cannot inflate the share price with a direct donation.
var MinLiquidity = big.NewInt(1_000)

// Config describes a pool at creation time.
type Config struct {
	Address      common.Address
	Underlying   common.Address
	Admin        common.Address
	Symbol       string
	FeeBps       uint64
	FeeRecipient common.Address
}

// Pool is a share vault over a single asset. Held balance is whatever the token
// ledger reports for the pool account; outstanding is what sits in open orders.
type Pool struct {
	address    common.Address
	underlying common.Address
	admin      common.Address
	symbol     string

	tokens   ledger.Tokens
	exchange exchange.Exchange
	gate     protocol.PairGate
	emitter  events.Emitter
	logger   *zap.Logger

	guard        protocol.Guard
	totalShares  *big.Int
	shares       map[common.Address]*big.Int
	outstanding  *big.Int
	accruedFees  *big.Int
	feeBps       uint64
	feeRecipient common.Address
}

// New builds a pool. gate decides which caller may run privileged mutations.
func New(cfg Config, tokens ledger.Tokens, venue exchange.Exchange, gate protocol.PairGate, emitter events.Emitter, logger *zap.Logger) (*Pool, error) {
	if cfg.Address == (common.Address{}) || cfg.Underlying == (common.Address{}) {
		return nil, fmt.Errorf("pool and underlying addresses are required")
	}
	if tokens == nil || venue == nil || gate == nil {
		return nil, fmt.Errorf("tokens, exchange and gate are required")
	}
	if !protocol.ValidBps(cfg.FeeBps) {
		return nil, fmt.Errorf("fee bps %d: %w", cfg.FeeBps, protocol.ErrInvalidAmount)
	}
	if emitter == nil {
		emitter = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	symbol := cfg.Symbol
	if symbol == "" {
		symbol = strings.ToUpper(cfg.Underlying.Hex()[2:8])
	}

	return &Pool{
		address:      cfg.Address,
		underlying:   cfg.Underlying,
		admin:        cfg.Admin,
		symbol:       symbol,
		tokens:       tokens,
		exchange:     venue,
		gate:         gate,
		emitter:      emitter,
		logger:       logger.With(zap.String("pool", cfg.Address.Hex())),
		totalShares:  new(big.Int),
		shares:       make(map[common.Address]*big.Int),
		outstanding:  new(big.Int),
		accruedFees:  new(big.Int),
		feeBps:       cfg.FeeBps,
		feeRecipient: cfg.FeeRecipient,
	}, nil
}

func (p *Pool) Address() common.Address {
	return p.address
}

func (p *Pool) Underlying() common.Address {
	return p.underlying
}

// Symbol returns the share token symbol, e.g. bathWETH.
func (p *Pool) Symbol() string {
	return "bath" + p.symbol
}

// Name returns the share token name, e.g. bathWETH v1.
func (p *Pool) Name() string {
	return p.Symbol() + " v1"
}

// Deposit pulls amount of the underlying from caller and mints shares to receiver.
func (p *Pool) Deposit(ctx context.Context, caller common.Address, amount *big.Int, receiver common.Address) (*big.Int, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if !protocol.Positive(amount) {
		return nil, fmt.Errorf("deposit: %w", protocol.ErrInvalidAmount)
	}
	if receiver == (common.Address{}) {
		receiver = caller
	}

	total, err := p.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	minted, genesis, err := p.sharesFor(amount, total)
	if err != nil {
		return nil, err
	}

	p.mint(receiver, minted)
	if genesis {
		p.mint(common.Address{}, MinLiquidity)
	}
	if err := p.tokens.TransferFrom(ctx, p.underlying, p.address, caller, p.address, amount); err != nil {
		p.burn(receiver, minted)
		if genesis {
			p.burn(common.Address{}, MinLiquidity)
		}
		return nil, fmt.Errorf("pull deposit: %w", err)
	}

	p.emitter.Emit(model.EventDeposited, model.Deposited{
		Pool:         p.address.Hex(),
		Depositor:    caller.Hex(),
		Receiver:     receiver.Hex(),
		Amount:       amount.String(),
		SharesMinted: minted.String(),
	})
	p.logger.Debug("deposit", zap.String("depositor", caller.Hex()), zap.String("amount", amount.String()), zap.String("shares", minted.String()))
	return new(big.Int).Set(minted), nil
}

// Withdraw burns shares of caller and pays out their proportional assets, net of the
// withdraw fee. Open orders are never unwound to fund a withdrawal.
func (p *Pool) Withdraw(ctx context.Context, caller common.Address, shares *big.Int) (*big.Int, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if !protocol.Positive(shares) {
		return nil, fmt.Errorf("withdraw: %w", protocol.ErrInvalidAmount)
	}
	if p.sharesOf(caller).Cmp(shares) < 0 {
		return nil, fmt.Errorf("withdraw %s shares: balance too low: %w", shares, protocol.ErrInvalidAmount)
	}

	total, err := p.totalAssets(ctx)
	if err != nil {
		return nil, err
	}
	assetsOut := protocol.MulDiv(shares, total, p.totalShares)
	available, err := p.available(ctx)
	if err != nil {
		return nil, err
	}
	if available.Cmp(assetsOut) < 0 {
		return nil, fmt.Errorf("withdraw %s of %s available: %w", assetsOut, available, protocol.ErrInsufficientLiquidity)
	}

	fee := protocol.ApplyBps(assetsOut, p.feeBps)
	net := new(big.Int).Sub(assetsOut, fee)

	p.burn(caller, shares)
	if net.Sign() > 0 {
		if err := p.tokens.Transfer(ctx, p.underlying, p.address, caller, net); err != nil {
			p.mint(caller, shares)
			return nil, fmt.Errorf("pay withdrawal: %w", err)
		}
	}
	if fee.Sign() > 0 {
		p.payFee(ctx, fee)
	}

	p.emitter.Emit(model.EventWithdrawn, model.Withdrawn{
		Pool:       p.address.Hex(),
		Withdrawer: caller.Hex(),
		Shares:     shares.String(),
		AmountOut:  net.String(),
		Fee:        fee.String(),
	})
	p.logger.Debug("withdraw", zap.String("withdrawer", caller.Hex()), zap.String("shares", shares.String()), zap.String("amount_out", net.String()))
	return net, nil
}

// payFee delivers a withdraw fee, or accrues it when there is no recipient or the
// transfer fails. Accrued fees are excluded from total assets until swept.
func (p *Pool) payFee(ctx context.Context, fee *big.Int) {
	if p.feeRecipient == (common.Address{}) {
		p.accruedFees.Add(p.accruedFees, fee)
		return
	}
	if err := p.tokens.Transfer(ctx, p.underlying, p.address, p.feeRecipient, fee); err != nil {
		p.logger.Warn("fee transfer failed, accruing", zap.Error(err), zap.String("fee", fee.String()))
		p.accruedFees.Add(p.accruedFees, fee)
	}
}

// TransferShares moves shares between holders.
func (p *Pool) TransferShares(ctx context.Context, caller, to common.Address, shares *big.Int) error {
	_, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if !protocol.Positive(shares) || to == (common.Address{}) {
		return fmt.Errorf("transfer shares: %w", protocol.ErrInvalidAmount)
	}
	if p.sharesOf(caller).Cmp(shares) < 0 {
		return fmt.Errorf("transfer %s shares: balance too low: %w", shares, protocol.ErrInvalidAmount)
	}
	p.burn(caller, shares)
	p.mint(to, shares)

	p.emitter.Emit(model.EventSharesTransferred, model.SharesTransferred{
		Pool:   p.address.Hex(),
		From:   caller.Hex(),
		To:     to.Hex(),
		Shares: shares.String(),
	})
	return nil
}

func (p *Pool) sharesFor(amount, total *big.Int) (*big.Int, bool, error) {
	if p.totalShares.Sign() == 0 {
		if amount.Cmp(MinLiquidity) <= 0 {
			return nil, true, fmt.Errorf("genesis deposit %s must exceed %s: %w", amount, MinLiquidity, protocol.ErrInvalidAmount)
		}
		return new(big.Int).Sub(amount, MinLiquidity), true, nil
	}
	if total.Sign() == 0 {
		return nil, false, fmt.Errorf("pool has shares but no assets: %w", protocol.ErrInsufficientLiquidity)
	}
	minted := protocol.MulDiv(amount, p.totalShares, total)
	if minted.Sign() == 0 {
		return nil, false, fmt.Errorf("deposit %s mints no shares: %w", amount, protocol.ErrInvalidAmount)
	}
	return minted, false, nil
}

func (p *Pool) mint(to common.Address, amount *big.Int) {
	bal := p.shares[to]
	if bal == nil {
		bal = new(big.Int)
		p.shares[to] = bal
	}
	bal.Add(bal, amount)
	p.totalShares.Add(p.totalShares, amount)
}

func (p *Pool) burn(from common.Address, amount *big.Int) {
	bal := p.shares[from]
	bal.Sub(bal, amount)
	if bal.Sign() == 0 {
		delete(p.shares, from)
	}
	p.totalShares.Sub(p.totalShares, amount)
}

func (p *Pool) sharesOf(owner common.Address) *big.Int {
	if bal, ok := p.shares[owner]; ok {
		return bal
	}
	return new(big.Int)
}

func (p *Pool) held(ctx context.Context) (*big.Int, error) {
	bal, err := p.tokens.BalanceOf(ctx, p.underlying, p.address)
	if err != nil {
		return nil, fmt.Errorf("pool balance: %w", err)
	}
	return bal, nil
}

// available is the held balance that belongs to shareholders.
func (p *Pool) available(ctx context.Context) (*big.Int, error) {
	held, err := p.held(ctx)
	if err != nil {
		return nil, err
	}
	held.Sub(held, p.accruedFees)
	if held.Sign() < 0 {
		held.SetInt64(0)
	}
	return held, nil
}

func (p *Pool) totalAssets(ctx context.Context) (*big.Int, error) {
	available, err := p.available(ctx)
	if err != nil {
		return nil, err
	}
	return available.Add(available, p.outstanding), nil
}
