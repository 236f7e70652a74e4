// Package approval implements the single-party (2FA) approval lifecycle: a
// wallet asks its own second trusted device to confirm an action. Unlike the
// ward machine there is no multi-party branching and no version field;
// updates are last-write-wins. The lower contention makes that tolerable,
// but it is a known gap, not a guarantee.
package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/wardline/wallet-backend/internal/store"
)

var (
	// ErrNotFound means the approval id does not exist.
	ErrNotFound = errors.New("approval request not found")
	// ErrValidation covers malformed or missing input.
	ErrValidation = errors.New("invalid approval request input")
)

// Status is the lifecycle state of a 2FA approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
	StatusExpired  Status = "expired"
)

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether s ends the request's lifecycle.
func (s Status) IsTerminal() bool {
	return s.IsValid() && s != StatusPending
}

// Request is a single-party approval awaiting the second device's decision.
type Request struct {
	ID                 string     `json:"id"`
	WalletAddress      string     `json:"wallet_address"`
	Action             string     `json:"action"`
	Token              string     `json:"token"`
	Amount             *string    `json:"amount"`
	Recipient          *string    `json:"recipient"`
	CallsJSON          string     `json:"calls_json"`
	SignatureJSON      string     `json:"signature_json"`
	Nonce              string     `json:"nonce"`
	ResourceBoundsJSON string     `json:"resource_bounds_json"`
	TxHash             string     `json:"tx_hash"`
	Status             Status     `json:"status"`
	FinalTxHash        *string    `json:"final_tx_hash,omitempty"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	RespondedAt        *time.Time `json:"responded_at"`
}

// CreateInput carries the POST /approvals body.
type CreateInput struct {
	WalletAddress      string  `json:"wallet_address"`
	Action             string  `json:"action"`
	Token              string  `json:"token"`
	Amount             *string `json:"amount"`
	Recipient          *string `json:"recipient"`
	CallsJSON          string  `json:"calls_json"`
	SignatureJSON      string  `json:"signature_json"`
	Nonce              string  `json:"nonce"`
	ResourceBoundsJSON string  `json:"resource_bounds_json"`
	TxHash             string  `json:"tx_hash"`
}

// UpdateInput carries the PATCH /approvals/:id body.
type UpdateInput struct {
	Status       *Status `json:"status"`
	FinalTxHash  *string `json:"final_tx_hash"`
	ErrorMessage *string `json:"error_message"`
}

// ListOptions narrows List.
type ListOptions struct {
	Wallet   string
	Statuses []Status
	Limit    int
	Offset   int
}

// Service is the 2FA approval lifecycle over the store adapter.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

// NewService wires the lifecycle.
func NewService(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log}
}

// Create validates and persists a new pending approval request.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	required := []struct {
		name  string
		empty bool
	}{
		{"wallet_address", in.WalletAddress == ""},
		{"action", in.Action == ""},
		{"token", in.Token == ""},
		{"calls_json", in.CallsJSON == ""},
		{"signature_json", in.SignatureJSON == ""},
		{"nonce", in.Nonce == ""},
		{"resource_bounds_json", in.ResourceBoundsJSON == ""},
		{"tx_hash", in.TxHash == ""},
	}
	for _, f := range required {
		if f.empty {
			return nil, errors.Wrapf(ErrValidation, "missing %s", f.name)
		}
	}

	now := time.Now().UTC()
	req := Request{
		ID:                 uuid.NewString(),
		WalletAddress:      in.WalletAddress,
		Action:             in.Action,
		Token:              in.Token,
		Amount:             in.Amount,
		Recipient:          in.Recipient,
		CallsJSON:          in.CallsJSON,
		SignatureJSON:      in.SignatureJSON,
		Nonce:              in.Nonce,
		ResourceBoundsJSON: in.ResourceBoundsJSON,
		TxHash:             in.TxHash,
		Status:             StatusPending,
		CreatedAt:          now,
	}

	r := store.Row{
		"id":                   req.ID,
		"wallet_address":       req.WalletAddress,
		"action":               req.Action,
		"token":                req.Token,
		"calls_json":           req.CallsJSON,
		"signature_json":       req.SignatureJSON,
		"nonce":                req.Nonce,
		"resource_bounds_json": req.ResourceBoundsJSON,
		"tx_hash":              req.TxHash,
		"status":               string(req.Status),
		"created_at":           store.FormatTime(now),
		"responded_at":         nil,
	}
	if req.Amount != nil {
		r["amount"] = *req.Amount
	}
	if req.Recipient != nil {
		r["recipient"] = *req.Recipient
	}

	if _, err := s.store.Insert(ctx, store.TableApprovals, r); err != nil {
		return nil, errors.Wrap(err, "persisting approval request")
	}
	return &req, nil
}

// Get returns one request by id.
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	r, err := store.SelectOne(ctx, s.store, store.TableApprovals, store.Where(store.Eq("id", id)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading approval request")
	}
	var req Request
	if err := store.DecodeRow(r, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests for a wallet, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Request, error) {
	var filters []store.Filter
	if opts.Wallet != "" {
		filters = append(filters, store.Eq("wallet_address", opts.Wallet))
	}
	if len(opts.Statuses) > 0 {
		values := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			values[i] = string(st)
		}
		filters = append(filters, store.In("status", values...))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.store.Select(ctx, store.TableApprovals, store.Query{
		Filters:    filters,
		OrderBy:    "created_at",
		Descending: true,
		Limit:      limit,
		Offset:     opts.Offset,
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing approval requests")
	}

	var out []Request
	if err := store.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a patch to one request. Writes are unconditioned
// (last-write-wins); a terminal status sets responded_at once.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Request, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := store.Row{}
	if in.FinalTxHash != nil {
		patch["final_tx_hash"] = *in.FinalTxHash
	}
	if in.ErrorMessage != nil {
		patch["error_message"] = *in.ErrorMessage
	}
	if in.Status != nil {
		if !in.Status.IsValid() {
			return nil, errors.Wrapf(ErrValidation, "unknown status %q", *in.Status)
		}
		patch["status"] = string(*in.Status)
		if in.Status.IsTerminal() && current.RespondedAt == nil {
			patch["responded_at"] = store.FormatTime(time.Now().UTC())
		}
	}
	if len(patch) == 0 {
		return current, nil
	}

	rows, err := s.store.Update(ctx, store.TableApprovals, store.Where(store.Eq("id", id)), patch)
	if err != nil {
		return nil, errors.Wrap(err, "updating approval request")
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	var req Request
	if err := store.DecodeRow(rows[0], &req); err != nil {
		return nil, err
	}
	return &req, nil
}
