package ward

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardline/wallet-backend/internal/store"
)

func boolPtr(b bool) *bool       { return &b }
func strPtr(s string) *string    { return &s }
func statusPtr(s Status) *Status { return &s }

func validInput() CreateInput {
	return CreateInput{
		WardAddress:        "0xward",
		GuardianAddress:    "0xguardian",
		Action:             "transfer",
		Token:              "ETH",
		Amount:             strPtr("1000"),
		Recipient:          strPtr("0xrecipient"),
		CallsJSON:          `[{"to":"0xrecipient"}]`,
		Nonce:              "7",
		ResourceBoundsJSON: `{"l1_gas":{}}`,
		TxHash:             "0xhash",
		WardSigJSON:        `["r","s"]`,
		NeedsWard2FA:       boolPtr(false),
		NeedsGuardian:      boolPtr(true),
		NeedsGuardian2FA:   boolPtr(false),
	}
}

// eventRecorder captures sink calls for assertions.
type eventRecorder struct {
	created []Approval
	changed []struct {
		approval Approval
		prev     Status
	}
}

func (r *eventRecorder) RequestCreated(_ context.Context, a Approval) {
	r.created = append(r.created, a)
}

func (r *eventRecorder) StatusChanged(_ context.Context, a Approval, prev Status) {
	r.changed = append(r.changed, struct {
		approval Approval
		prev     Status
	}{a, prev})
}

func newTestService(m *store.MemoryStore) (*Service, *eventRecorder) {
	rec := &eventRecorder{}
	return NewService(m, rec, zerolog.Nop()), rec
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("persists at version 1", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, rec := newTestService(m)

		a, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, StatusPendingWardSig, a.Status)
		assert.EqualValues(t, 1, a.EventVersion)
		assert.Nil(t, a.RespondedAt)
		assert.Equal(t, 1, m.Count(store.TableWardApprovals))
		require.Len(t, rec.created, 1)
		assert.Equal(t, a.ID, rec.created[0].ID)
	})

	t.Run("honors non-terminal initial status", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)

		in := validInput()
		in.InitialStatus = statusPtr(StatusPendingGuardian)
		a, err := svc.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, StatusPendingGuardian, a.Status)
	})

	t.Run("rejects terminal initial status", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)

		in := validInput()
		in.InitialStatus = statusPtr(StatusApproved)
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)

		in := validInput()
		in.TxHash = ""
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)

		in = validInput()
		in.NeedsGuardian = nil
		_, err = svc.Create(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestUpdateTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("full guardian flow bumps the version each hop", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, rec := newTestService(m)

		a, err := svc.Create(ctx, validInput())
		require.NoError(t, err)

		a, err = svc.Update(ctx, a.ID, UpdateInput{Status: statusPtr(StatusPendingGuardian)})
		require.NoError(t, err)
		assert.Equal(t, StatusPendingGuardian, a.Status)
		assert.EqualValues(t, 2, a.EventVersion)
		assert.Nil(t, a.RespondedAt)

		a, err = svc.Update(ctx, a.ID, UpdateInput{
			Status:          statusPtr(StatusApproved),
			GuardianSigJSON: strPtr(`["r2","s2"]`),
			FinalTxHash:     strPtr("0xfinal"),
		})
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, a.Status)
		assert.EqualValues(t, 3, a.EventVersion)
		require.NotNil(t, a.RespondedAt)
		require.NotNil(t, a.FinalTxHash)
		assert.Equal(t, "0xfinal", *a.FinalTxHash)

		require.Len(t, rec.changed, 2)
		assert.Equal(t, StatusPendingWardSig, rec.changed[0].prev)
		assert.Equal(t, StatusPendingGuardian, rec.changed[1].prev)
	})

	t.Run("responded_at is set once", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)

		a, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
		a, err = svc.Update(ctx, a.ID, UpdateInput{Status: statusPtr(StatusRejected)})
		require.NoError(t, err)
		require.NotNil(t, a.RespondedAt)
		first := *a.RespondedAt

		// Non-status patches on a terminal row leave responded_at alone.
		a, err = svc.Update(ctx, a.ID, UpdateInput{ErrorMessage: strPtr("user declined")})
		require.NoError(t, err)
		require.NotNil(t, a.RespondedAt)
		assert.Equal(t, first, *a.RespondedAt)
	})

	t.Run("illegal transition is rejected", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)

		a, err := svc.Create(ctx, validInput())
		require.NoError(t, err)

		// gas_error is only reachable from pending_guardian.
		_, err = svc.Update(ctx, a.ID, UpdateInput{Status: statusPtr(StatusGasError)})
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("no exit from a terminal state", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)

		a, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
		_, err = svc.Update(ctx, a.ID, UpdateInput{Status: statusPtr(StatusRejected)})
		require.NoError(t, err)

		_, err = svc.Update(ctx, a.ID, UpdateInput{Status: statusPtr(StatusApproved)})
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("unknown status fails validation", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)

		a, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
		_, err = svc.Update(ctx, a.ID, UpdateInput{Status: statusPtr(Status("signed"))})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing id", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)
		_, err := svc.Update(ctx, "nope", UpdateInput{Status: statusPtr(StatusApproved)})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// raceStore simulates a concurrent writer: right before the service's
// conditioned update lands, another transition bumps the version once.
type raceStore struct {
	*store.MemoryStore
	interfered bool
}

func (r *raceStore) Update(ctx context.Context, table string, q store.Query, patch store.Row) ([]store.Row, error) {
	if table == store.TableWardApprovals && !r.interfered && len(q.Filters) > 1 {
		r.interfered = true
		_, err := r.MemoryStore.Update(ctx, table,
			store.Where(q.Filters[0]),
			store.Row{"status": string(StatusRejected), "event_version": int64(2),
				"responded_at": store.FormatTime(time.Now().UTC())})
		if err != nil {
			return nil, err
		}
	}
	return r.MemoryStore.Update(ctx, table, q, patch)
}

func TestUpdateVersionRace(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()
	rs := &raceStore{MemoryStore: m}
	rec := &eventRecorder{}
	svc := NewService(rs, rec, zerolog.Nop())

	a, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	// The guardian rejects in between; this approval attempt loses the race.
	got, err := svc.Update(ctx, a.ID, UpdateInput{Status: statusPtr(StatusApproved)})
	require.NoError(t, err, "a lost race is not an error")
	assert.Equal(t, StatusRejected, got.Status, "the winning row is returned")
	assert.EqualValues(t, 2, got.EventVersion)
	assert.Empty(t, rec.changed, "no event for a write that never landed")
}

func TestList(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, svc *Service, status Status) *Approval {
		t.Helper()
		a, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
		if status == StatusPendingWardSig {
			return a
		}
		steps := map[Status][]Status{
			StatusPendingGuardian: {StatusPendingGuardian},
			StatusApproved:        {StatusApproved},
			StatusRejected:        {StatusRejected},
		}[status]
		for _, st := range steps {
			a, err = svc.Update(ctx, a.ID, UpdateInput{Status: statusPtr(st)})
			require.NoError(t, err)
		}
		return a
	}

	t.Run("defaults to pending when a party is named", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)
		seed(t, svc, StatusPendingWardSig)
		seed(t, svc, StatusPendingGuardian)
		seed(t, svc, StatusApproved)
		seed(t, svc, StatusRejected)

		out, err := svc.List(ctx, ListOptions{Ward: "0xward"})
		require.NoError(t, err)
		require.Len(t, out, 2)
		for _, a := range out {
			assert.Contains(t, []Status{StatusPendingWardSig, StatusPendingGuardian}, a.Status)
		}
	})

	t.Run("include_all lifts the default", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)
		seed(t, svc, StatusPendingWardSig)
		seed(t, svc, StatusApproved)

		out, err := svc.List(ctx, ListOptions{Guardian: "0xguardian", IncludeAll: true})
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("explicit statuses win over the default", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)
		seed(t, svc, StatusPendingWardSig)
		seed(t, svc, StatusRejected)

		out, err := svc.List(ctx, ListOptions{Ward: "0xward", Statuses: []Status{StatusRejected}})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, StatusRejected, out[0].Status)
	})

	t.Run("updated_after filters strictly newer rows", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)
		a := seed(t, svc, StatusPendingWardSig)

		cutoff := a.UpdatedAt.Add(time.Second)
		out, err := svc.List(ctx, ListOptions{Ward: "0xward", UpdatedAfter: &cutoff})
		require.NoError(t, err)
		assert.Empty(t, out)

		cutoff = a.UpdatedAt.Add(-time.Second)
		out, err = svc.List(ctx, ListOptions{Ward: "0xward", UpdatedAfter: &cutoff})
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})

	t.Run("no filters returns everything", func(t *testing.T) {
		m := store.NewMemoryStore()
		svc, _ := newTestService(m)
		seed(t, svc, StatusPendingWardSig)
		seed(t, svc, StatusApproved)

		out, err := svc.List(ctx, ListOptions{})
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})
}

func TestStatusTable(t *testing.T) {
	assert.True(t, StatusPendingWardSig.CanTransition(StatusApproved))
	assert.True(t, StatusPendingWardSig.CanTransition(StatusPendingGuardian))
	assert.False(t, StatusPendingWardSig.CanTransition(StatusFailed))
	assert.False(t, StatusPendingWardSig.CanTransition(StatusGasError))
	assert.True(t, StatusPendingGuardian.CanTransition(StatusGasError))
	assert.False(t, StatusApproved.CanTransition(StatusRejected))
	assert.False(t, StatusExpired.CanTransition(StatusPendingWardSig))

	for _, s := range []Status{StatusApproved, StatusRejected, StatusFailed, StatusGasError, StatusExpired} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, StatusPendingWardSig.IsTerminal())
	assert.False(t, StatusPendingGuardian.IsTerminal())
	assert.False(t, Status("signed").IsValid())
}
