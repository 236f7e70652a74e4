package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wardline/wallet-backend/internal/ward"
)

// HandleCreateWardApproval handles POST /ward-approvals.
func (s *Server) HandleCreateWardApproval(w http.ResponseWriter, r *http.Request) {
	var in ward.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := s.Wards.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleListWardApprovals handles GET /ward-approvals. status may repeat or
// be comma-separated; with a ward/guardian filter and no explicit status,
// only pending rows are returned unless include_all is truthy.
func (s *Server) HandleListWardApprovals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := ward.ListOptions{
		Ward:       q.Get("ward"),
		Guardian:   q.Get("guardian"),
		IncludeAll: isTruthy(q.Get("include_all")),
		Limit:      intParam(q.Get("limit"), 0),
		Offset:     intParam(q.Get("offset"), 0),
	}

	for _, raw := range q["status"] {
		for _, st := range strings.Split(raw, ",") {
			st = strings.TrimSpace(st)
			if st != "" {
				opts.Statuses = append(opts.Statuses, ward.Status(st))
			}
		}
	}

	if after := q.Get("updated_after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			http.Error(w, "Invalid updated_after timestamp", http.StatusBadRequest)
			return
		}
		opts.UpdatedAfter = &t
	}

	approvals, err := s.Wards.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if approvals == nil {
		approvals = []ward.Approval{}
	}
	writeJSON(w, http.StatusOK, approvals)
}

// HandleGetWardApproval handles GET /ward-approvals/{id}.
func (s *Server) HandleGetWardApproval(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := s.Wards.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandlePatchWardApproval handles PATCH /ward-approvals/{id}. A lost version
// race is not an error: the winning row comes back with 200 and the caller
// re-decides from its status and version.
func (s *Server) HandlePatchWardApproval(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var in ward.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := s.Wards.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func intParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
