// Package calls exposes the dispatcher's administrative REST surface: order
// entry, call lifecycle, the open pool and the claim audit log.
package calls

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noachFrank/DriverApp-sub001/core/arbiter"
	"github.com/noachFrank/DriverApp-sub001/core/arbiter/logging"
	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/core/registry"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
)

// Dispatcher is the slice of the arbiter the API needs.
type Dispatcher interface {
	CreateCall(ctx context.Context, call model.Call) (model.Call, error)
	CancelCall(ctx context.Context, rideID string) error
	ReleaseCall(ctx context.Context, rideID string) (model.Call, error)
	OpenCalls(ctx context.Context) ([]model.Call, error)
	ClaimLog(ctx context.Context, q logging.Query) ([]logging.Record, error)
}

// Config holds the API server settings.
type Config struct {
	Addr string `json:"addr"`
	// Token guards every /api route when non-empty. Requests must carry
	// "Authorization: Bearer <token>".
	Token string `json:"token"`
}

// Server routes REST requests to the dispatcher.
type Server struct {
	svc    Dispatcher
	token  string
	router *mux.Router
	log    logger.Logger
}

func NewServer(cfg Config, svc Dispatcher) *Server {
	s := &Server{
		svc:    svc,
		token:  cfg.Token,
		router: mux.NewRouter(),
		log:    logger.New("api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/calls/open", s.handleOpenCalls).Methods(http.MethodGet)
	api.HandleFunc("/calls", s.handleCreateCall).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id}/cancel", s.handleCancelCall).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id}/release", s.handleReleaseCall).Methods(http.MethodPost)
	api.HandleFunc("/claims/log", s.handleClaimLog).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleOpenCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := s.svc.OpenCalls(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if driverID := r.URL.Query().Get("driver_id"); driverID != "" {
		s.log.Debugf("open pool fetch driver_id=%s calls=%d", driverID, len(calls))
	}
	if calls == nil {
		calls = []model.Call{}
	}
	writeJSON(w, http.StatusOK, calls)
}

type createCallRequest struct {
	ID         string               `json:"id"`
	AssignedTo string               `json:"assigned_to"`
	Attributes model.CallAttributes `json:"attributes"`
}

func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	call := model.Call{ID: req.ID, AssignedTo: req.AssignedTo, Attributes: req.Attributes}
	created, err := s.svc.CreateCall(r.Context(), call)
	if err != nil {
		if errors.Is(err, arbiter.ErrCallExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleCancelCall(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.svc.CancelCall(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReleaseCall(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	call, err := s.svc.ReleaseCall(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Server) handleClaimLog(w http.ResponseWriter, r *http.Request) {
	q := logging.Query{}
	if v := r.URL.Query().Get("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.Start = t
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.End = t
		}
	}
	q.RideID = r.URL.Query().Get("ride_id")
	q.DriverID = r.URL.Query().Get("driver_id")
	records, err := s.svc.ClaimLog(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []logging.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
