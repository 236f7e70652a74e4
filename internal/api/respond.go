package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/wardline/wallet-backend/internal/approval"
	"github.com/wardline/wallet-backend/internal/outbox"
	"github.com/wardline/wallet-backend/internal/ward"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto status codes: validation 400,
// not-found 404, illegal transition 409, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ward.ErrValidation), errors.Is(err, approval.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ward.ErrNotFound), errors.Is(err, approval.ErrNotFound),
		errors.Is(err, outbox.ErrDeadLetterNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ward.ErrIllegalTransition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
