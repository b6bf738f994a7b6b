package model

import "time"

// PoolSnapshot is a point-in-time view of a pool's accounting.
type PoolSnapshot struct {
	Pool         string    `json:"pool"`
	Underlying   string    `json:"underlying"`
	Symbol       string    `json:"symbol"`
	TotalShares  string    `json:"total_shares"`
	TotalAssets  string    `json:"total_assets"`
	Held         string    `json:"held"`
	Outstanding  string    `json:"outstanding"`
	AccruedFees  string    `json:"accrued_fees"`
	FeeBps       uint64    `json:"fee_bps"`
	FeeRecipient string    `json:"fee_recipient"`
	TakenAt      time.Time `json:"taken_at"`
}
