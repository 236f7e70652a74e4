// Package ward implements the multi-party approval state machine: a ward's
// transaction that may require a guardian decision and second-device
// confirmations before it is released. Status-changing writes are guarded by
// optimistic concurrency on the row's event_version.
package ward

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/wardline/wallet-backend/internal/store"
)

var (
	// ErrNotFound means the approval id does not exist.
	ErrNotFound = errors.New("ward approval not found")
	// ErrValidation covers malformed or missing input; surfaced before any mutation.
	ErrValidation = errors.New("invalid ward approval input")
	// ErrIllegalTransition means the requested status is not reachable from
	// the stored status. Caller-supplied statuses are never trusted blindly.
	ErrIllegalTransition = errors.New("illegal status transition")
)

// EventSink receives lifecycle events after the state write commits. Delivery
// is best-effort: implementations log and swallow their own failures.
type EventSink interface {
	RequestCreated(ctx context.Context, a Approval)
	StatusChanged(ctx context.Context, a Approval, prev Status)
}

// ListOptions narrows List.
type ListOptions struct {
	Ward         string
	Guardian     string
	Statuses     []Status
	IncludeAll   bool
	UpdatedAfter *time.Time
	Limit        int
	Offset       int
}

const (
	// DefaultListLimit and MaxListLimit bound the List page size.
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Service is the ward approval state machine over the store adapter.
type Service struct {
	store  store.Store
	events EventSink
	log    zerolog.Logger
}

// NewService wires the state machine. events may be nil when no outbox is
// attached (tests).
func NewService(s store.Store, events EventSink, log zerolog.Logger) *Service {
	return &Service{store: s, events: events, log: log}
}

// Create validates and persists a new approval request at event_version 1,
// then emits a "created" outbox event.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Approval, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	status := StatusPendingWardSig
	if in.InitialStatus != nil {
		status = *in.InitialStatus
	}

	now := time.Now().UTC()
	a := Approval{
		ID:                 uuid.NewString(),
		WardAddress:        in.WardAddress,
		GuardianAddress:    in.GuardianAddress,
		Action:             in.Action,
		Token:              in.Token,
		Amount:             in.Amount,
		AmountUnit:         in.AmountUnit,
		Recipient:          in.Recipient,
		CallsJSON:          in.CallsJSON,
		Nonce:              in.Nonce,
		ResourceBoundsJSON: in.ResourceBoundsJSON,
		TxHash:             in.TxHash,
		WardSigJSON:        in.WardSigJSON,
		NeedsWard2FA:       *in.NeedsWard2FA,
		NeedsGuardian:      *in.NeedsGuardian,
		NeedsGuardian2FA:   *in.NeedsGuardian2FA,
		Status:             status,
		EventVersion:       1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if _, err := s.store.Insert(ctx, store.TableWardApprovals, row(a)); err != nil {
		return nil, errors.Wrap(err, "persisting ward approval")
	}

	if s.events != nil {
		s.events.RequestCreated(ctx, a)
	}
	return &a, nil
}

// Get returns one approval by id.
func (s *Service) Get(ctx context.Context, id string) (*Approval, error) {
	r, err := store.SelectOne(ctx, s.store, store.TableWardApprovals, store.Where(store.Eq("id", id)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading ward approval")
	}
	var a Approval
	if err := store.DecodeRow(r, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns approvals ordered by updated_at descending. When a ward or
// guardian is named without an explicit status and IncludeAll is false, only
// the two pending statuses are returned.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Approval, error) {
	var filters []store.Filter
	if opts.Ward != "" {
		filters = append(filters, store.Eq("ward_address", opts.Ward))
	}
	if opts.Guardian != "" {
		filters = append(filters, store.Eq("guardian_address", opts.Guardian))
	}

	statuses := opts.Statuses
	if len(statuses) == 0 && !opts.IncludeAll && (opts.Ward != "" || opts.Guardian != "") {
		statuses = pendingStatuses
	}
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, st := range statuses {
			values[i] = string(st)
		}
		filters = append(filters, store.In("status", values...))
	}
	if opts.UpdatedAfter != nil {
		filters = append(filters, store.Gt("updated_at", *opts.UpdatedAfter))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = viper.GetInt("ward_approvals_default_limit")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if maxLimit := viper.GetInt("ward_approvals_max_limit"); maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	} else if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.store.Select(ctx, store.TableWardApprovals, store.Query{
		Filters:    filters,
		OrderBy:    "updated_at",
		Descending: true,
		Limit:      limit,
		Offset:     opts.Offset,
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing ward approvals")
	}

	var out []Approval
	if err := store.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a patch to one approval. When the patch changes the status,
// the write is a single conditioned update on (id, event_version): at most
// one writer wins each version. The loser's patch is discarded and the
// current (winning) row is returned with no error; callers inspect the
// returned status and version to re-decide.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Approval, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Status != nil && !in.Status.IsValid() {
		return nil, errors.Wrapf(ErrValidation, "unknown status %q", *in.Status)
	}

	patch := in.patchRow()
	statusChanging := in.Status != nil && *in.Status != current.Status

	if !statusChanging {
		if len(patch) == 0 {
			return current, nil
		}
		patch["updated_at"] = store.FormatTime(time.Now().UTC())
		rows, err := s.store.Update(ctx, store.TableWardApprovals,
			store.Where(store.Eq("id", id)), patch)
		if err != nil {
			return nil, errors.Wrap(err, "updating ward approval")
		}
		if len(rows) == 0 {
			return nil, ErrNotFound
		}
		return decodeOne(rows[0])
	}

	next := *in.Status
	if !current.Status.CanTransition(next) {
		return nil, errors.Wrapf(ErrIllegalTransition, "%s -> %s", current.Status, next)
	}

	now := time.Now().UTC()
	patch["status"] = string(next)
	patch["event_version"] = current.EventVersion + 1
	patch["updated_at"] = store.FormatTime(now)
	if next.IsTerminal() && current.RespondedAt == nil {
		respondedAt := now
		if in.RespondedAt != nil {
			respondedAt = in.RespondedAt.UTC()
		}
		patch["responded_at"] = store.FormatTime(respondedAt)
	}

	// The CAS: one conditioned write at the store, never read-then-write.
	rows, err := s.store.Update(ctx, store.TableWardApprovals,
		store.Where(store.Eq("id", id), store.Eq("event_version", current.EventVersion)),
		patch)
	if err != nil {
		return nil, errors.Wrap(err, "updating ward approval")
	}

	if len(rows) == 0 {
		// Another writer won this version. Surface the winning state.
		s.log.Info().Str("id", id).Int64("expected_version", current.EventVersion).
			Msg("ward approval update lost the version race, returning current row")
		return s.Get(ctx, id)
	}

	updated, err := decodeOne(rows[0])
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.StatusChanged(ctx, *updated, current.Status)
	}
	return updated, nil
}

func decodeOne(r store.Row) (*Approval, error) {
	var a Approval
	if err := store.DecodeRow(r, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func validateCreate(in CreateInput) error {
	required := []struct {
		name  string
		empty bool
	}{
		{"ward_address", in.WardAddress == ""},
		{"guardian_address", in.GuardianAddress == ""},
		{"action", in.Action == ""},
		{"token", in.Token == ""},
		{"calls_json", in.CallsJSON == ""},
		{"nonce", in.Nonce == ""},
		{"resource_bounds_json", in.ResourceBoundsJSON == ""},
		{"tx_hash", in.TxHash == ""},
		{"ward_sig_json", in.WardSigJSON == ""},
		{"needs_ward_2fa", in.NeedsWard2FA == nil},
		{"needs_guardian", in.NeedsGuardian == nil},
		{"needs_guardian_2fa", in.NeedsGuardian2FA == nil},
	}
	for _, f := range required {
		if f.empty {
			return errors.Wrapf(ErrValidation, "missing %s", f.name)
		}
	}
	if in.InitialStatus != nil {
		st := *in.InitialStatus
		if st != StatusPendingWardSig && st != StatusPendingGuardian {
			return errors.Wrapf(ErrValidation, "initial_status must be non-terminal, got %q", st)
		}
	}
	return nil
}
