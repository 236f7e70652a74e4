package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/wardline/wallet-backend/internal/activity"
	"github.com/wardline/wallet-backend/internal/approval"
	"github.com/wardline/wallet-backend/internal/outbox"
	"github.com/wardline/wallet-backend/internal/ward"
)

// Server exposes the approval workflow and activity feed over HTTP.
type Server struct {
	Wards      *ward.Service
	Approvals  *approval.Service
	Activity   *activity.Service
	Dispatcher *outbox.Dispatcher

	log    zerolog.Logger
	server *http.Server
}

// NewServer wires the handlers and middleware chain.
func NewServer(wards *ward.Service, approvals *approval.Service, feed *activity.Service,
	dispatcher *outbox.Dispatcher, log zerolog.Logger, port int) *Server {
	s := &Server{
		Wards:      wards,
		Approvals:  approvals,
		Activity:   feed,
		Dispatcher: dispatcher,
		log:        log,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/ward-approvals", s.protected(s.HandleCreateWardApproval)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ward-approvals", s.protected(s.HandleListWardApprovals)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ward-approvals/{id}", s.protected(s.HandleGetWardApproval)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/ward-approvals/{id}", s.protected(s.HandlePatchWardApproval)).Methods(http.MethodPatch, http.MethodOptions)

	r.HandleFunc("/approvals", s.protected(s.HandleCreateApproval)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/approvals", s.protected(s.HandleListApprovals)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/approvals/{id}", s.protected(s.HandlePatchApproval)).Methods(http.MethodPatch, http.MethodOptions)

	r.HandleFunc("/activity", s.protected(s.HandleActivity)).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/outbox/dispatch", s.protected(s.HandleDispatchOutbox)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/outbox/dead-letters/{id}/retry", s.protected(s.HandleRetryDeadLetter)).Methods(http.MethodPost, http.MethodOptions)

	return r
}

// protected applies the standard middleware chain to a handler.
func (s *Server) protected(h http.HandlerFunc) http.HandlerFunc {
	return ApplyMiddleware(h,
		s.JWTMiddleware,
		JSONContentTypeMiddleware,
		MetricsMiddleware,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		CORSMiddleware,
	)
}

// Start runs the HTTP server until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("api server listening")
	var err error
	if viper.GetBool("use_https") {
		err = s.server.ListenAndServeTLS(viper.GetString("cert_file"), viper.GetString("key_file"))
	} else {
		err = s.server.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
