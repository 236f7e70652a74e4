package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardline/wallet-backend/internal/store"
	"github.com/wardline/wallet-backend/internal/ward"
)

func sampleApproval(id string, status ward.Status, version int64) ward.Approval {
	amount := "1000"
	return ward.Approval{
		ID:              id,
		WardAddress:     "0xward",
		GuardianAddress: "0xguardian",
		Action:          "transfer",
		Token:           "ETH",
		Amount:          &amount,
		Status:          status,
		EventVersion:    version,
		CreatedAt:       time.Now().UTC(),
	}
}

// recordingSender collects sent events; fail lists event ids to reject.
type recordingSender struct {
	sent []Event
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, ev Event) error {
	if s.fail[ev.ID] {
		return errors.New("push transport unavailable")
	}
	s.sent = append(s.sent, ev)
	return nil
}

func TestProducerEnqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("created and status changed events", func(t *testing.T) {
		m := store.NewMemoryStore()
		p := NewProducer(m, zerolog.Nop())

		p.RequestCreated(ctx, sampleApproval("req-1", ward.StatusPendingWardSig, 1))
		p.StatusChanged(ctx, sampleApproval("req-1", ward.StatusPendingGuardian, 2), ward.StatusPendingWardSig)

		rows, err := m.Select(ctx, store.TableOutboxEvents, store.Query{OrderBy: "event_version"})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		var events []Event
		require.NoError(t, store.DecodeRows(rows, &events))
		assert.Equal(t, EventCreated, events[0].EventType)
		assert.Nil(t, events[0].PrevStatus)
		assert.Equal(t, EventStatusChanged, events[1].EventType)
		require.NotNil(t, events[1].PrevStatus)
		assert.Equal(t, string(ward.StatusPendingWardSig), *events[1].PrevStatus)
		assert.False(t, events[0].Dispatched)
	})

	t.Run("enqueue failure is swallowed", func(t *testing.T) {
		m := store.NewMemoryStore()
		m.FailTables[store.TableOutboxEvents] = errors.New("disk full")
		p := NewProducer(m, zerolog.Nop())

		// Must not panic or surface the error; the state write already committed.
		p.RequestCreated(ctx, sampleApproval("req-1", ward.StatusPendingWardSig, 1))
		assert.Equal(t, 0, m.Count(store.TableOutboxEvents))
	})
}

func TestDispatchPending(t *testing.T) {
	ctx := context.Background()

	seed := func(m *store.MemoryStore, ids ...string) {
		p := NewProducer(m, zerolog.Nop())
		for _, id := range ids {
			p.RequestCreated(ctx, sampleApproval(id, ward.StatusPendingWardSig, 1))
		}
	}

	t.Run("delivers and marks dispatched", func(t *testing.T) {
		m := store.NewMemoryStore()
		seed(m, "req-1", "req-2")
		sender := &recordingSender{}
		d := NewDispatcher(m, sender, zerolog.Nop())

		result, err := d.DispatchPending(ctx, 0, false)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Selected)
		assert.Equal(t, 2, result.Dispatched)
		assert.Zero(t, result.DeadLettered)
		assert.Len(t, sender.sent, 2)

		// A second run finds nothing left.
		result, err = d.DispatchPending(ctx, 0, false)
		require.NoError(t, err)
		assert.Zero(t, result.Selected)
	})

	t.Run("dry run selects without sending", func(t *testing.T) {
		m := store.NewMemoryStore()
		seed(m, "req-1")
		sender := &recordingSender{}
		d := NewDispatcher(m, sender, zerolog.Nop())

		result, err := d.DispatchPending(ctx, 0, true)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Selected)
		assert.True(t, result.DryRun)
		assert.Empty(t, sender.sent)

		// The events are still pending afterwards.
		result, err = d.DispatchPending(ctx, 0, false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Dispatched)
	})

	t.Run("delivery failure dead-letters and continues", func(t *testing.T) {
		m := store.NewMemoryStore()
		seed(m, "req-1", "req-2")

		rows, err := m.Select(ctx, store.TableOutboxEvents, store.Query{})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		failID := rows[0]["id"].(string)

		sender := &recordingSender{fail: map[string]bool{failID: true}}
		d := NewDispatcher(m, sender, zerolog.Nop())

		result, err := d.DispatchPending(ctx, 0, false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Dispatched)
		assert.Equal(t, 1, result.DeadLettered)

		assert.Equal(t, 1, m.Count(store.TableOutboxDeadLetters))

		// Failed events are not retried by the batch path.
		result, err = d.DispatchPending(ctx, 0, false)
		require.NoError(t, err)
		assert.Zero(t, result.Selected)
	})

	t.Run("respects max", func(t *testing.T) {
		m := store.NewMemoryStore()
		seed(m, "req-1", "req-2", "req-3")
		d := NewDispatcher(m, &recordingSender{}, zerolog.Nop())

		result, err := d.DispatchPending(ctx, 2, false)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Selected)
	})
}

func TestRetryDeadLetter(t *testing.T) {
	ctx := context.Background()

	parkOne := func(t *testing.T, m *store.MemoryStore) string {
		t.Helper()
		p := NewProducer(m, zerolog.Nop())
		p.RequestCreated(ctx, sampleApproval("req-1", ward.StatusPendingWardSig, 1))

		rows, err := m.Select(ctx, store.TableOutboxEvents, store.Query{})
		require.NoError(t, err)
		id := rows[0]["id"].(string)

		d := NewDispatcher(m, &recordingSender{fail: map[string]bool{id: true}}, zerolog.Nop())
		_, err = d.DispatchPending(ctx, 0, false)
		require.NoError(t, err)
		require.Equal(t, 1, m.Count(store.TableOutboxDeadLetters))
		return id
	}

	t.Run("success removes the dead letter", func(t *testing.T) {
		m := store.NewMemoryStore()
		id := parkOne(t, m)

		sender := &recordingSender{}
		d := NewDispatcher(m, sender, zerolog.Nop())
		require.NoError(t, d.RetryDeadLetter(ctx, id))
		assert.Len(t, sender.sent, 1)
		assert.Zero(t, m.Count(store.TableOutboxDeadLetters))
	})

	t.Run("failure keeps it with an updated reason", func(t *testing.T) {
		m := store.NewMemoryStore()
		id := parkOne(t, m)

		d := NewDispatcher(m, &recordingSender{fail: map[string]bool{id: true}}, zerolog.Nop())
		err := d.RetryDeadLetter(ctx, id)
		require.Error(t, err)
		assert.Equal(t, 1, m.Count(store.TableOutboxDeadLetters))

		row, err := store.SelectOne(ctx, m, store.TableOutboxDeadLetters, store.Where(store.Eq("id", id)))
		require.NoError(t, err)
		assert.Contains(t, row["failure_reason"], "push transport unavailable")
	})

	t.Run("missing dead letter", func(t *testing.T) {
		m := store.NewMemoryStore()
		d := NewDispatcher(m, &recordingSender{}, zerolog.Nop())
		err := d.RetryDeadLetter(ctx, "nope")
		assert.ErrorIs(t, err, ErrDeadLetterNotFound)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	approvalRow := func(a ward.Approval) store.Row {
		return store.Row{
			"id":               a.ID,
			"ward_address":     a.WardAddress,
			"guardian_address": a.GuardianAddress,
			"action":           a.Action,
			"token":            a.Token,
			"status":           string(a.Status),
			"event_version":    a.EventVersion,
			"created_at":       store.FormatTime(a.CreatedAt),
			"updated_at":       store.FormatTime(a.CreatedAt),
		}
	}

	t.Run("synthesizes one catch-up event per lagging request", func(t *testing.T) {
		m := store.NewMemoryStore()
		p := NewProducer(m, zerolog.Nop())

		// req-1 is fully accounted for: version 1, one event.
		complete := sampleApproval("req-1", ward.StatusPendingWardSig, 1)
		m.Seed(store.TableWardApprovals, approvalRow(complete))
		p.RequestCreated(ctx, complete)

		// req-2 reached version 3 but only its created event made it.
		lagging := sampleApproval("req-2", ward.StatusApproved, 3)
		m.Seed(store.TableWardApprovals, approvalRow(lagging))
		p.RequestCreated(ctx, sampleApproval("req-2", ward.StatusPendingWardSig, 1))

		n, err := p.Reconcile(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		rows, err := m.Select(ctx, store.TableOutboxEvents, store.Query{
			Filters: []store.Filter{store.Eq("request_id", "req-2"), store.Eq("dispatched", false)},
		})
		require.NoError(t, err)

		var events []Event
		require.NoError(t, store.DecodeRows(rows, &events))
		require.Len(t, events, 2)

		var catchUp *Event
		for i := range events {
			if events[i].EventType == EventStatusChanged {
				catchUp = &events[i]
			}
		}
		require.NotNil(t, catchUp)
		assert.Equal(t, string(ward.StatusApproved), catchUp.NewStatus, "carries the current status")
		assert.EqualValues(t, 3, catchUp.EventVersion)
	})

	t.Run("nothing to do", func(t *testing.T) {
		m := store.NewMemoryStore()
		p := NewProducer(m, zerolog.Nop())

		complete := sampleApproval("req-1", ward.StatusPendingWardSig, 1)
		m.Seed(store.TableWardApprovals, approvalRow(complete))
		p.RequestCreated(ctx, complete)

		n, err := p.Reconcile(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
