package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wardline/wallet-backend/internal/approval"
)

// HandleCreateApproval handles POST /approvals (single-party 2FA requests).
func (s *Server) HandleCreateApproval(w http.ResponseWriter, r *http.Request) {
	var in approval.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := s.Approvals.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleListApprovals handles GET /approvals. Defaults to the caller's own
// wallet when no wallet param is given.
func (s *Server) HandleListApprovals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	wallet := q.Get("wallet")
	if wallet == "" {
		wallet = CallerWallet(r.Context())
	}

	opts := approval.ListOptions{
		Wallet: wallet,
		Limit:  intParam(q.Get("limit"), 0),
		Offset: intParam(q.Get("offset"), 0),
	}
	for _, raw := range q["status"] {
		for _, st := range strings.Split(raw, ",") {
			st = strings.TrimSpace(st)
			if st != "" {
				opts.Statuses = append(opts.Statuses, approval.Status(st))
			}
		}
	}

	requests, err := s.Approvals.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if requests == nil {
		requests = []approval.Request{}
	}
	writeJSON(w, http.StatusOK, requests)
}

// HandlePatchApproval handles PATCH /approvals/{id}.
func (s *Server) HandlePatchApproval(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var in approval.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := s.Approvals.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
