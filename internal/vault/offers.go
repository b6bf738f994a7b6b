package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/protocol"
)

// Privileged entry points. Each re-checks the gate on every call because the wired
// pair can change between calls.

func (p *Pool) authorize(caller common.Address) error {
	if !p.gate.Authorized(caller) {
		return fmt.Errorf("caller %s: %w", caller.Hex(), protocol.ErrNotAuthorized)
	}
	return nil
}

// PlaceOffer commits pay units of the underlying to a new exchange order and returns
// the exchange order id.
func (p *Pool) PlaceOffer(ctx context.Context, caller common.Address, pay *big.Int, payAsset common.Address, buy *big.Int, buyAsset common.Address) (uint64, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	if err := p.authorize(caller); err != nil {
		return 0, err
	}
	if payAsset != p.underlying || buyAsset == p.underlying || buyAsset == (common.Address{}) {
		return 0, fmt.Errorf("offer %s for %s: %w", payAsset.Hex(), buyAsset.Hex(), protocol.ErrInvalidAmount)
	}
	if !protocol.Positive(pay) || !protocol.Positive(buy) {
		return 0, fmt.Errorf("offer amounts: %w", protocol.ErrInvalidAmount)
	}
	available, err := p.available(ctx)
	if err != nil {
		return 0, err
	}
	if available.Cmp(pay) < 0 {
		return 0, fmt.Errorf("offer %s of %s held: %w", pay, available, protocol.ErrInsufficientLiquidity)
	}

	p.outstanding.Add(p.outstanding, pay)
	if err := p.tokens.Approve(ctx, p.underlying, p.address, p.exchange.Address(), pay); err != nil {
		p.outstanding.Sub(p.outstanding, pay)
		return 0, fmt.Errorf("approve exchange: %w", err)
	}
	id, err := p.exchange.PlaceOrder(ctx, p.address, pay, p.underlying, buy, buyAsset)
	if err != nil {
		p.outstanding.Sub(p.outstanding, pay)
		if revokeErr := p.tokens.Approve(ctx, p.underlying, p.address, p.exchange.Address(), new(big.Int)); revokeErr != nil {
			p.logger.Warn("revoke exchange allowance", zap.Error(revokeErr))
		}
		return 0, fmt.Errorf("place order: %w", err)
	}

	p.logger.Debug("offer placed", zap.Uint64("order", id), zap.String("pay", pay.String()), zap.String("buy", buy.String()))
	return id, nil
}

// Cancel returns refund units of a resting order to the pool. The exchange order is
// cancelled only if still active; funds of an order already closed by the exchange
// are back in the pool's balance and only the counter moves.
func (p *Pool) Cancel(ctx context.Context, caller common.Address, orderID uint64, refund *big.Int) error {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := p.authorize(caller); err != nil {
		return err
	}
	refund = protocol.OrZero(refund)
	if refund.Sign() < 0 || refund.Cmp(p.outstanding) > 0 {
		return fmt.Errorf("cancel refund %s of %s outstanding: %w", refund, p.outstanding, protocol.ErrInvalidAmount)
	}
	state, err := p.exchange.OrderState(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order state %d: %w", orderID, err)
	}

	p.outstanding.Sub(p.outstanding, refund)
	if state.Active {
		if err := p.exchange.CancelOrder(ctx, p.address, orderID); err != nil {
			p.outstanding.Add(p.outstanding, refund)
			return fmt.Errorf("cancel order %d: %w", orderID, err)
		}
	}

	p.logger.Debug("offer cancelled", zap.Uint64("order", orderID), zap.String("refund", refund.String()))
	return nil
}

// RemoveFilledTradeAmount drops filled units from the outstanding counter. The
// counter-asset they bought sits in this pool until a rebalance moves it.
func (p *Pool) RemoveFilledTradeAmount(ctx context.Context, caller common.Address, amount *big.Int) error {
	_, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := p.authorize(caller); err != nil {
		return err
	}
	amount = protocol.OrZero(amount)
	if amount.Sign() < 0 || amount.Cmp(p.outstanding) > 0 {
		return fmt.Errorf("remove filled %s of %s outstanding: %w", amount, p.outstanding, protocol.ErrInvalidAmount)
	}
	p.outstanding.Sub(p.outstanding, amount)
	return nil
}

// Rebalance sends up to amount of a misplaced counter-asset held by this pool to its
// destination pool, routing proportionBps of it to the caller as strategist booty.
// It clamps to the misplaced balance and returns what moved and the cut. The share
// for the destination leaves first; if the cut cannot be paid it stays here as
// misplaced balance and the error comes back with the amounts that did move.
func (p *Pool) Rebalance(ctx context.Context, caller, destination, counterAsset common.Address, proportionBps uint64, amount *big.Int) (*big.Int, *big.Int, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return new(big.Int), new(big.Int), err
	}
	defer release()

	if err := p.authorize(caller); err != nil {
		return new(big.Int), new(big.Int), err
	}
	if counterAsset == p.underlying || destination == p.address || !protocol.ValidBps(proportionBps) {
		return new(big.Int), new(big.Int), fmt.Errorf("rebalance %s: %w", counterAsset.Hex(), protocol.ErrInvalidAmount)
	}
	misplaced, err := p.tokens.BalanceOf(ctx, counterAsset, p.address)
	if err != nil {
		return new(big.Int), new(big.Int), fmt.Errorf("misplaced balance: %w", err)
	}
	moved := protocol.Min(protocol.OrZero(amount), misplaced)
	if moved.Sign() <= 0 {
		return new(big.Int), new(big.Int), nil
	}

	cut := protocol.ApplyBps(moved, proportionBps)
	rest := new(big.Int).Sub(moved, cut)
	if rest.Sign() > 0 {
		if err := p.tokens.Transfer(ctx, counterAsset, p.address, destination, rest); err != nil {
			return new(big.Int), new(big.Int), fmt.Errorf("send to %s: %w", destination.Hex(), err)
		}
	}
	if cut.Sign() > 0 {
		if err := p.tokens.Transfer(ctx, counterAsset, p.address, caller, cut); err != nil {
			return rest, new(big.Int), fmt.Errorf("route strategist cut: %w", err)
		}
	}

	p.logger.Debug("rebalance", zap.String("asset", counterAsset.Hex()), zap.String("moved", moved.String()), zap.String("cut", cut.String()))
	return moved, cut, nil
}
