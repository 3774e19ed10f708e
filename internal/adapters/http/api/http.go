// Package api exposes the ledger, roster and aggregates over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/review"
	"github.com/okian/tipjar/internal/domain/types"
	"github.com/okian/tipjar/pkg/logger"
)

const (
	maxBodyBytes           = 1 << 20
	defaultMaxLeaderboard  = 100
	defaultRecentTipsLimit = 10
)

// Directory registers and resolves identities.
type Directory interface {
	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

// RosterService maintains business rosters.
type RosterService interface {
	AddWorkerToBusiness(ctx context.Context, ownerID, workerEmail string) (model.RosterEntry, error)
	ListWorkersForBusiness(ctx context.Context, ownerID string) ([]string, error)
}

// TipService drives tips through payment and review.
type TipService interface {
	SubmitTip(ctx context.Context, sub review.TipSubmission) (model.Tip, error)
	SubmitReview(ctx context.Context, sub review.ReviewSubmission) (review.ReviewOutcome, error)
}

// TipReader reads the ledger.
type TipReader interface {
	GetTip(ctx context.Context, tipID string) (model.Tip, error)
	ListTipsForWorker(ctx context.Context, workerID string) ([]model.Tip, error)
}

// AggregateReader computes aggregates and dashboards.
type AggregateReader interface {
	WorkerAggregate(ctx context.Context, workerID string) (types.WorkerAggregate, error)
	BusinessAggregate(ctx context.Context, ownerID string) (types.BusinessAggregate, error)
	Leaderboard(ctx context.Context, ownerID string, limit int) ([]types.LeaderboardEntry, error)
	WorkerDashboard(ctx context.Context, workerID string, recent int) (types.WorkerDashboard, error)
	BusinessDashboard(ctx context.Context, ownerID string) (types.BusinessDashboard, error)
}

// Dependencies bundles the collaborators the handlers call.
type Dependencies struct {
	Directory  Directory
	Roster     RosterService
	Tips       TipService
	Ledger     TipReader
	Aggregates AggregateReader
	Stats      StatsProvider
	Pinger     Pinger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLeaderboardLimit caps the leaderboard limit parameter.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLeaderboard = n
		}
	}
}

// WithRecentTipsLimit sets how many tips the worker dashboard shows.
func WithRecentTipsLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.recentTips = n
		}
	}
}

// Server wires HTTP routes for the tipping API.
type Server struct {
	deps           Dependencies
	maxLeaderboard int
	recentTips     int

	health *HealthHandler
	log    logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		maxLeaderboard: defaultMaxLeaderboard,
		recentTips:     defaultRecentTipsLimit,
		health:         NewHealthHandler(deps.Pinger),
		log:            logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /healthz", "healthz", s.health.HandleHealth)
	route("GET /stats", "stats", s.handleStats)

	route("POST /workers", "register_worker", s.handleRegisterWorker)
	route("POST /owners", "register_owner", s.handleRegisterOwner)
	route("GET /workers/{workerID}", "get_worker", s.handleGetWorker)

	route("POST /businesses/{ownerID}/workers", "add_worker", s.handleAddWorker)
	route("GET /businesses/{ownerID}/workers", "list_workers", s.handleListWorkers)

	route("POST /tips", "record_tip", s.handleRecordTip)
	route("GET /tips/{tipID}", "get_tip", s.handleGetTip)
	route("POST /tips/{tipID}/review", "review_tip", s.handleReviewTip)
	route("POST /workers/{workerID}/reviews", "review_worker", s.handleReviewWorker)
	route("GET /workers/{workerID}/tips", "list_tips", s.handleListTips)

	route("GET /workers/{workerID}/aggregate", "worker_aggregate", s.handleWorkerAggregate)
	route("GET /workers/{workerID}/dashboard", "worker_dashboard", s.handleWorkerDashboard)
	route("GET /businesses/{ownerID}/aggregate", "business_aggregate", s.handleBusinessAggregate)
	route("GET /businesses/{ownerID}/dashboard", "business_dashboard", s.handleBusinessDashboard)
	route("GET /businesses/{ownerID}/leaderboard", "leaderboard", s.handleLeaderboard)
}

// Handler returns mux wrapped with request id propagation.
func (s *Server) Handler(mux *http.ServeMux) http.Handler {
	return RequestIDMiddleware(mux)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps an error kind onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, model.ErrUpstream):
		return http.StatusBadGateway, "upstream_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err with its mapped status. Server-side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.Int("status", status),
			logger.Error(err))
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		err = Wrap(op, err)
	}
	writeError(w, status, code, err)
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
