package outbox

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/wardline/wallet-backend/internal/store"
)

// ErrDeadLetterNotFound means the dead letter no longer exists; the retry is
// a no-op in that case.
var ErrDeadLetterNotFound = errors.New("dead-lettered event not found")

// Sender delivers one event to the push transport. The transport itself is
// out of scope here; LogSender ships as the reference implementation.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// LogSender logs events instead of delivering them.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, ev Event) error {
	s.Log.Info().
		Str("event_id", ev.ID).
		Str("event_type", ev.EventType).
		Str("request_id", ev.RequestID).
		Str("new_status", ev.NewStatus).
		Msg("outbox event dispatched")
	return nil
}

// DispatchResult summarizes one dispatch run.
type DispatchResult struct {
	Selected     int  `json:"selected"`
	Dispatched   int  `json:"dispatched"`
	DeadLettered int  `json:"dead_lettered"`
	DryRun       bool `json:"dry_run"`
}

// Dispatcher drains pending outbox events through a Sender.
type Dispatcher struct {
	store  store.Store
	sender Sender
	log    zerolog.Logger
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(s store.Store, sender Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: s, sender: sender, log: log}
}

// DispatchPending delivers up to max undispatched events, oldest first.
// Delivery failures park the event in the dead-letter store; the run
// continues. With dryRun the selection is reported but nothing is sent.
func (d *Dispatcher) DispatchPending(ctx context.Context, max int, dryRun bool) (*DispatchResult, error) {
	if max <= 0 {
		max = viper.GetInt("outbox_dispatch_batch")
	}
	if max <= 0 {
		max = 100
	}

	rows, err := d.store.Select(ctx, store.TableOutboxEvents, store.Query{
		Filters: []store.Filter{store.Eq("dispatched", false)},
		OrderBy: "created_at",
		Limit:   max,
	})
	if err != nil {
		return nil, errors.Wrap(err, "selecting pending outbox events")
	}

	var events []Event
	if err := store.DecodeRows(rows, &events); err != nil {
		return nil, err
	}

	result := &DispatchResult{Selected: len(events), DryRun: dryRun}
	if dryRun {
		return result, nil
	}

	for _, ev := range events {
		if err := d.sender.Send(ctx, ev); err != nil {
			d.log.Warn().Err(err).Str("event_id", ev.ID).Msg("outbox delivery failed, dead-lettering")
			d.deadLetter(ctx, ev, err)
			result.DeadLettered++
		} else {
			result.Dispatched++
		}
		d.markDispatched(ctx, ev.ID)
	}
	return result, nil
}

// RetryDeadLetter re-sends one dead-lettered event. It succeeds only if the
// event still exists in the dead-letter store, and removes it on success.
func (d *Dispatcher) RetryDeadLetter(ctx context.Context, id string) error {
	row, err := store.SelectOne(ctx, d.store, store.TableOutboxDeadLetters,
		store.Where(store.Eq("id", id)))
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeadLetterNotFound
	}
	if err != nil {
		return errors.Wrap(err, "reading dead letter")
	}

	var dl DeadLetter
	if err := store.DecodeRow(row, &dl); err != nil {
		return err
	}

	if err := d.sender.Send(ctx, dl.event()); err != nil {
		// Leave the dead letter in place for another attempt.
		_, updErr := d.store.Update(ctx, store.TableOutboxDeadLetters,
			store.Where(store.Eq("id", id)),
			store.Row{
				"failure_reason": err.Error(),
				"failed_at":      store.FormatTime(time.Now().UTC()),
			})
		if updErr != nil {
			d.log.Warn().Err(updErr).Str("event_id", id).Msg("failed to record dead letter retry failure")
		}
		return errors.Wrap(err, "re-sending dead-lettered event")
	}

	if err := d.store.Delete(ctx, store.TableOutboxDeadLetters, store.Where(store.Eq("id", id))); err != nil {
		return errors.Wrap(err, "removing delivered dead letter")
	}
	return nil
}

// markDispatched flags the event so it is never picked up again. Events that
// failed delivery live on in the dead-letter store only.
func (d *Dispatcher) markDispatched(ctx context.Context, id string) {
	_, err := d.store.Update(ctx, store.TableOutboxEvents,
		store.Where(store.Eq("id", id)),
		store.Row{
			"dispatched":    true,
			"dispatched_at": store.FormatTime(time.Now().UTC()),
		})
	if err != nil {
		d.log.Warn().Err(err).Str("event_id", id).Msg("failed to mark outbox event dispatched")
	}
}

func (d *Dispatcher) deadLetter(ctx context.Context, ev Event, cause error) {
	now := time.Now().UTC()
	r := store.Row{
		"id":               ev.ID,
		"event_type":       ev.EventType,
		"request_id":       ev.RequestID,
		"new_status":       ev.NewStatus,
		"ward_address":     ev.WardAddress,
		"guardian_address": ev.GuardianAddress,
		"action":           ev.Action,
		"token":            ev.Token,
		"event_version":    ev.EventVersion,
		"failure_reason":   cause.Error(),
		"failed_at":        store.FormatTime(now),
		"created_at":       store.FormatTime(ev.CreatedAt),
	}
	if ev.PrevStatus != nil {
		r["prev_status"] = *ev.PrevStatus
	}
	if ev.Amount != nil {
		r["amount"] = *ev.Amount
	}

	if _, err := d.store.Upsert(ctx, store.TableOutboxDeadLetters, r, "id"); err != nil {
		d.log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to dead-letter outbox event")
	}
}
