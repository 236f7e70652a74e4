package api

import (
	"net/http"
)

// HandleActivity handles GET /activity?wallet=&limit=&offset=.
func (s *Server) HandleActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	wallet := q.Get("wallet")
	if wallet == "" {
		wallet = CallerWallet(r.Context())
	}
	if wallet == "" {
		http.Error(w, "wallet parameter required", http.StatusBadRequest)
		return
	}

	feed, err := s.Activity.Feed(r.Context(), wallet,
		intParam(q.Get("limit"), 0), intParam(q.Get("offset"), 0))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}
