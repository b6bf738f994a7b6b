package registry

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"pairVault/internal/exchange"
	"pairVault/internal/model"
	"pairVault/internal/protocol"
)

// Single-value admin setters. Each validates the whole policy before committing.

func (r *Registry) setPolicy(ctx context.Context, caller common.Address, field, value string, apply func(*Policy)) error {
	_, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	next := r.policy
	apply(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	r.policy = next
	r.emitter.Emit(model.EventPolicyChanged, model.PolicyChanged{Field: field, Value: value})
	return nil
}

func (r *Registry) SetReserveRatio(ctx context.Context, caller common.Address, bps uint64) error {
	return r.setPolicy(ctx, caller, "reserve_ratio_bps", strconv.FormatUint(bps, 10), func(p *Policy) {
		p.ReserveRatioBps = bps
	})
}

func (r *Registry) SetCancelDelay(ctx context.Context, caller common.Address, delay time.Duration) error {
	return r.setPolicy(ctx, caller, "cancel_delay", delay.String(), func(p *Policy) {
		p.CancelDelay = delay
	})
}

func (r *Registry) SetProfitShare(ctx context.Context, caller common.Address, bps uint64) error {
	return r.setPolicy(ctx, caller, "profit_share_bps", strconv.FormatUint(bps, 10), func(p *Policy) {
		p.ProfitShareBps = bps
	})
}

func (r *Registry) SetMaxOrderSize(ctx context.Context, caller common.Address, bps uint64) error {
	return r.setPolicy(ctx, caller, "max_order_size_bps", strconv.FormatUint(bps, 10), func(p *Policy) {
		p.MaxOrderSizeBps = bps
	})
}

func (r *Registry) SetCurveShape(ctx context.Context, caller common.Address, shape uint64) error {
	return r.setPolicy(ctx, caller, "curve_shape", strconv.FormatUint(shape, 10), func(p *Policy) {
		p.CurveShape = shape
	})
}

func (r *Registry) SetPermissionedStrategists(ctx context.Context, caller common.Address, permissioned bool) error {
	return r.setPolicy(ctx, caller, "permissioned_strategists", strconv.FormatBool(permissioned), func(p *Policy) {
		p.PermissionedStrategists = permissioned
	})
}

// SetAdmin hands the registry to a new admin. The new admin is implicitly an
// approved strategist; the old one is not.
func (r *Registry) SetAdmin(ctx context.Context, caller, admin common.Address) error {
	_, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	if admin == (common.Address{}) {
		return fmt.Errorf("admin address is required: %w", protocol.ErrInvalidAmount)
	}
	r.admin = admin
	r.emitter.Emit(model.EventPolicyChanged, model.PolicyChanged{Field: "admin", Value: admin.Hex()})
	return nil
}

// Pool-level setters forward to the pool, whose admin is the registry account.

func (r *Registry) SetPoolFeeBps(ctx context.Context, caller, asset common.Address, bps uint64) error {
	ctx, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	pool, ok := r.pools[asset]
	if !ok {
		return fmt.Errorf("asset %s: %w", asset.Hex(), protocol.ErrPoolNotFound)
	}
	if err := pool.SetFeeBps(ctx, r.address, bps); err != nil {
		return err
	}
	r.emitter.Emit(model.EventPolicyChanged, model.PolicyChanged{Field: "fee_bps", Value: strconv.FormatUint(bps, 10), Pool: pool.Address().Hex()})
	return nil
}

func (r *Registry) SetPoolFeeRecipient(ctx context.Context, caller, asset, recipient common.Address) error {
	ctx, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	pool, ok := r.pools[asset]
	if !ok {
		return fmt.Errorf("asset %s: %w", asset.Hex(), protocol.ErrPoolNotFound)
	}
	if err := pool.SetFeeRecipient(ctx, r.address, recipient); err != nil {
		return err
	}
	r.emitter.Emit(model.EventPolicyChanged, model.PolicyChanged{Field: "fee_recipient", Value: recipient.Hex(), Pool: pool.Address().Hex()})
	return nil
}

// SetPoolExchange moves one pool to another venue. The pool refuses while it has
// orders open.
func (r *Registry) SetPoolExchange(ctx context.Context, caller, asset common.Address, venue exchange.Exchange) error {
	ctx, release, err := r.guard.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return err
	}
	pool, ok := r.pools[asset]
	if !ok {
		return fmt.Errorf("asset %s: %w", asset.Hex(), protocol.ErrPoolNotFound)
	}
	if err := pool.SetExchange(ctx, r.address, venue); err != nil {
		return err
	}
	r.emitter.Emit(model.EventPolicyChanged, model.PolicyChanged{Field: "exchange", Value: venue.Address().Hex(), Pool: pool.Address().Hex()})
	return nil
}

// SweepPoolFees delivers a pool's accrued withdraw fees to to, or to the pool's fee
// recipient when to is zero.
func (r *Registry) SweepPoolFees(ctx context.Context, caller, asset, to common.Address) (*big.Int, error) {
	ctx, release, err := r.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.onlyAdmin(caller); err != nil {
		return nil, err
	}
	pool, ok := r.pools[asset]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", asset.Hex(), protocol.ErrPoolNotFound)
	}
	return pool.SweepFees(ctx, r.address, to)
}
