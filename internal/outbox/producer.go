package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardline/wallet-backend/internal/store"
	"github.com/wardline/wallet-backend/internal/ward"
)

// Producer writes outbox events for ward approval transitions. It satisfies
// ward.EventSink. Enqueue failures are logged and swallowed; the state write
// they follow has already committed and is never rolled back.
type Producer struct {
	store store.Store
	log   zerolog.Logger
}

// NewProducer wires a producer over the store adapter.
func NewProducer(s store.Store, log zerolog.Logger) *Producer {
	return &Producer{store: s, log: log}
}

// RequestCreated enqueues the "created" event for a new approval.
func (p *Producer) RequestCreated(ctx context.Context, a ward.Approval) {
	p.enqueue(ctx, EventCreated, a, nil)
}

// StatusChanged enqueues a "status_changed" event for an accepted transition.
func (p *Producer) StatusChanged(ctx context.Context, a ward.Approval, prev ward.Status) {
	prevStatus := string(prev)
	p.enqueue(ctx, EventStatusChanged, a, &prevStatus)
}

func (p *Producer) enqueue(ctx context.Context, eventType string, a ward.Approval, prev *string) {
	now := time.Now().UTC()
	r := store.Row{
		"id":               uuid.NewString(),
		"event_type":       eventType,
		"request_id":       a.ID,
		"new_status":       string(a.Status),
		"ward_address":     a.WardAddress,
		"guardian_address": a.GuardianAddress,
		"action":           a.Action,
		"token":            a.Token,
		"event_version":    a.EventVersion,
		"dispatched":       false,
		"created_at":       store.FormatTime(now),
	}
	if prev != nil {
		r["prev_status"] = *prev
	}
	if a.Amount != nil {
		r["amount"] = *a.Amount
	}

	if _, err := p.store.Insert(ctx, store.TableOutboxEvents, r); err != nil {
		p.log.Warn().Err(err).
			Str("request_id", a.ID).
			Str("event_type", eventType).
			Msg("failed to enqueue outbox event, notification may be delayed until reconcile")
	}
}
