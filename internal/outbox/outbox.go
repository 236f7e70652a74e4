// Package outbox persists notification events for ward approval transitions
// and hands them to an external dispatcher. Enqueueing runs after the state
// write commits and is best-effort by design: a missed notification must
// never threaten state-machine correctness, and the reconciler can re-derive
// missed events from persisted state.
package outbox

import (
	"time"
)

// Event types.
const (
	EventCreated       = "created"
	EventStatusChanged = "status_changed"
)

// Event describes one ward approval transition for downstream delivery. The
// payload carries enough for the dispatcher to resolve which devices to
// notify without reading the approval back.
type Event struct {
	ID              string     `json:"id"`
	EventType       string     `json:"event_type"`
	RequestID       string     `json:"request_id"`
	PrevStatus      *string    `json:"prev_status,omitempty"`
	NewStatus       string     `json:"new_status"`
	WardAddress     string     `json:"ward_address"`
	GuardianAddress string     `json:"guardian_address"`
	Action          string     `json:"action"`
	Token           string     `json:"token"`
	Amount          *string    `json:"amount,omitempty"`
	EventVersion    int64      `json:"event_version"`
	Dispatched      bool       `json:"dispatched"`
	DispatchedAt    *time.Time `json:"dispatched_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// DeadLetter is an event whose delivery failed, parked for manual retry.
type DeadLetter struct {
	ID              string    `json:"id"`
	EventType       string    `json:"event_type"`
	RequestID       string    `json:"request_id"`
	PrevStatus      *string   `json:"prev_status,omitempty"`
	NewStatus       string    `json:"new_status"`
	WardAddress     string    `json:"ward_address"`
	GuardianAddress string    `json:"guardian_address"`
	Action          string    `json:"action"`
	Token           string    `json:"token"`
	Amount          *string   `json:"amount,omitempty"`
	EventVersion    int64     `json:"event_version"`
	FailureReason   string    `json:"failure_reason"`
	FailedAt        time.Time `json:"failed_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func (d DeadLetter) event() Event {
	return Event{
		ID:              d.ID,
		EventType:       d.EventType,
		RequestID:       d.RequestID,
		PrevStatus:      d.PrevStatus,
		NewStatus:       d.NewStatus,
		WardAddress:     d.WardAddress,
		GuardianAddress: d.GuardianAddress,
		Action:          d.Action,
		Token:           d.Token,
		Amount:          d.Amount,
		EventVersion:    d.EventVersion,
		CreatedAt:       d.CreatedAt,
	}
}
