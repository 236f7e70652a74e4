package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// HandleDispatchOutbox handles POST /outbox/dispatch, the batch "dispatch
// pending events" operation of the external dispatcher contract.
func (s *Server) HandleDispatchOutbox(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Max    int  `json:"max"`
		DryRun bool `json:"dry_run"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := s.Dispatcher.DispatchPending(r.Context(), body.Max, body.DryRun)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleRetryDeadLetter handles POST /outbox/dead-letters/{id}/retry. It
// succeeds only if the event still exists in the dead-letter store.
func (s *Server) HandleRetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.Dispatcher.RetryDeadLetter(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dispatched"})
}
