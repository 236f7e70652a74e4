package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wardline/wallet-backend/internal/store"
	"github.com/wardline/wallet-backend/internal/ward"
)

// Reconcile re-derives missed outbox events from persisted approval state.
// Every accepted transition bumps event_version by one and should have left
// one event behind, so a request whose event count trails its version lost
// at least one enqueue. A single catch-up event carrying the current status
// is synthesized per lagging request; intermediate hops cannot be recovered
// and the dispatcher only needs the latest state to notify devices.
func (p *Producer) Reconcile(ctx context.Context) (int, error) {
	approvalRows, err := p.store.Select(ctx, store.TableWardApprovals, store.Query{})
	if err != nil {
		return 0, errors.Wrap(err, "reading ward approvals for reconcile")
	}
	var approvals []ward.Approval
	if err := store.DecodeRows(approvalRows, &approvals); err != nil {
		return 0, err
	}

	eventRows, err := p.store.Select(ctx, store.TableOutboxEvents, store.Query{})
	if err != nil {
		return 0, errors.Wrap(err, "reading outbox events for reconcile")
	}
	counts := make(map[string]int64, len(eventRows))
	for _, r := range eventRows {
		if id, ok := r["request_id"].(string); ok {
			counts[id]++
		}
	}

	synthesized := 0
	for _, a := range approvals {
		if counts[a.ID] >= a.EventVersion {
			continue
		}

		now := time.Now().UTC()
		r := store.Row{
			"id":               uuid.NewString(),
			"event_type":       EventStatusChanged,
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
		if a.Amount != nil {
			r["amount"] = *a.Amount
		}
		if _, err := p.store.Insert(ctx, store.TableOutboxEvents, r); err != nil {
			p.log.Warn().Err(err).Str("request_id", a.ID).Msg("failed to synthesize catch-up event")
			continue
		}
		synthesized++
	}

	if synthesized > 0 {
		p.log.Info().Int("events", synthesized).Msg("reconcile synthesized catch-up outbox events")
	}
	return synthesized, nil
}
