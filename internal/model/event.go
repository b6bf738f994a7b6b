package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a protocol event.
type EventKind string

const (
	EventPoolCreated        EventKind = "pool_created"
	EventPoolSignaled       EventKind = "pool_signaled"
	EventDeposited          EventKind = "deposited"
	EventWithdrawn          EventKind = "withdrawn"
	EventSharesTransferred  EventKind = "shares_transferred"
	EventFeesSwept          EventKind = "fees_swept"
	EventTradeCreated       EventKind = "trade_created"
	EventTradeScrubbed      EventKind = "trade_scrubbed"
	EventRebalanced         EventKind = "rebalanced"
	EventClaimed            EventKind = "claimed"
	EventPairWired          EventKind = "pair_wired"
	EventStrategistApproved EventKind = "strategist_approved"
	EventStrategistRevoked  EventKind = "strategist_revoked"
	EventPolicyChanged      EventKind = "policy_changed"
)

// Event is the envelope every protocol event is journaled in.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}
