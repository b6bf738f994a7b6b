package vault

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pairVault/internal/exchange"
	"pairVault/internal/model"
	"pairVault/internal/protocol"
)

func (p *Pool) onlyAdmin(caller common.Address) error {
	if caller != p.admin {
		return fmt.Errorf("caller %s is not pool admin: %w", caller.Hex(), protocol.ErrNotAuthorized)
	}
	return nil
}

func (p *Pool) SetFeeBps(ctx context.Context, caller common.Address, bps uint64) error {
	_, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	if !protocol.ValidBps(bps) {
		return fmt.Errorf("fee bps %d: %w", bps, protocol.ErrInvalidAmount)
	}
	p.feeBps = bps
	return nil
}

func (p *Pool) SetFeeRecipient(ctx context.Context, caller, recipient common.Address) error {
	_, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	p.feeRecipient = recipient
	return nil
}

// SetExchange points the pool at another venue. Refused while orders are open on the
// current one.
func (p *Pool) SetExchange(ctx context.Context, caller common.Address, venue exchange.Exchange) error {
	_, release, err := p.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := p.onlyAdmin(caller); err != nil {
		return err
	}
	if venue == nil {
		return fmt.Errorf("exchange is required")
	}
	if p.outstanding.Sign() != 0 {
		return fmt.Errorf("switch exchange with %s outstanding: %w", p.outstanding, protocol.ErrInvalidAmount)
	}
	p.exchange = venue
	return nil
}

// SweepFees delivers accrued withdraw fees to to and returns the amount sent.
func (p *Pool) SweepFees(ctx context.Context, caller, to common.Address) (*big.Int, error) {
	ctx, release, err := p.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := p.onlyAdmin(caller); err != nil {
		return nil, err
	}
	if to == (common.Address{}) {
		to = p.feeRecipient
	}
	if to == (common.Address{}) {
		return nil, fmt.Errorf("sweep fees: no recipient: %w", protocol.ErrInvalidAmount)
	}
	swept := new(big.Int).Set(p.accruedFees)
	if swept.Sign() == 0 {
		return swept, nil
	}

	p.accruedFees.SetInt64(0)
	if err := p.tokens.Transfer(ctx, p.underlying, p.address, to, swept); err != nil {
		p.accruedFees.Set(swept)
		return nil, fmt.Errorf("sweep fees: %w", err)
	}

	p.emitter.Emit(model.EventFeesSwept, model.FeesSwept{
		Pool:   p.address.Hex(),
		To:     to.Hex(),
		Amount: swept.String(),
	})
	p.logger.Info("fees swept", zap.String("to", to.Hex()), zap.String("amount", swept.String()))
	return swept, nil
}
