package registry

import (
	"fmt"
	"time"

	"pairVault/internal/protocol"
)

// MaxCurveShape bounds the sizing curve exponent.
const MaxCurveShape = 8

// Policy holds the protocol parameters the pair reads on every call.
type Policy struct {
	// ReserveRatioBps is the share of each pool's assets that never leaves as orders.
	ReserveRatioBps uint64
	// CancelDelay is how long after placement anyone may scrub a trade.
	CancelDelay time.Duration
	// ProfitShareBps is the strategist cut taken from rebalanced counter-assets.
	ProfitShareBps  uint64
	MaxOrderSizeBps uint64
	CurveShape      uint64

	PermissionedStrategists bool
}

// DefaultPolicy mirrors the reference deployment: 80% reserve, 10s cancel delay,
// 0.2% strategist cut, 5% max order size.
func DefaultPolicy() Policy {
	return Policy{
		ReserveRatioBps:         8_000,
		CancelDelay:             10 * time.Second,
		ProfitShareBps:          20,
		MaxOrderSizeBps:         500,
		CurveShape:              2,
		PermissionedStrategists: true,
	}
}

func (p Policy) Validate() error {
	if !protocol.ValidBps(p.ReserveRatioBps) {
		return fmt.Errorf("reserve ratio %d bps: %w", p.ReserveRatioBps, protocol.ErrInvalidAmount)
	}
	if !protocol.ValidBps(p.ProfitShareBps) {
		return fmt.Errorf("profit share %d bps: %w", p.ProfitShareBps, protocol.ErrInvalidAmount)
	}
	if !protocol.ValidBps(p.MaxOrderSizeBps) {
		return fmt.Errorf("max order size %d bps: %w", p.MaxOrderSizeBps, protocol.ErrInvalidAmount)
	}
	if p.CurveShape > MaxCurveShape {
		return fmt.Errorf("curve shape %d above %d: %w", p.CurveShape, MaxCurveShape, protocol.ErrInvalidAmount)
	}
	if p.CancelDelay < 0 {
		return fmt.Errorf("cancel delay %s: %w", p.CancelDelay, protocol.ErrInvalidAmount)
	}
	return nil
}
