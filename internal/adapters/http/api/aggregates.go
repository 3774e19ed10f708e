package api

import (
	"errors"
	"net/http"
	"strconv"
)

// handleWorkerAggregate handles GET /workers/{workerID}/aggregate.
func (s *Server) handleWorkerAggregate(w http.ResponseWriter, r *http.Request) {
	const op = "api.worker_aggregate"
	agg, err := s.deps.Aggregates.WorkerAggregate(r.Context(), r.PathValue("workerID"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// handleWorkerDashboard handles GET /workers/{workerID}/dashboard.
func (s *Server) handleWorkerDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.worker_dashboard"
	d, err := s.deps.Aggregates.WorkerDashboard(r.Context(), r.PathValue("workerID"), s.recentTips)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleBusinessAggregate handles GET /businesses/{ownerID}/aggregate.
func (s *Server) handleBusinessAggregate(w http.ResponseWriter, r *http.Request) {
	const op = "api.business_aggregate"
	agg, err := s.deps.Aggregates.BusinessAggregate(r.Context(), r.PathValue("ownerID"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// handleBusinessDashboard handles GET /businesses/{ownerID}/dashboard.
func (s *Server) handleBusinessDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.business_dashboard"
	d, err := s.deps.Aggregates.BusinessDashboard(r.Context(), r.PathValue("ownerID"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleLeaderboard handles GET /businesses/{ownerID}/leaderboard?limit=N.
// Without a limit the whole roster is ranked, up to the configured maximum.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard"
	n := s.maxLeaderboard
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			s.fail(w, r, op, WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		if n > s.maxLeaderboard {
			writeError(w, http.StatusBadRequest, "limit_exceeded",
				WrapKind(op, ErrBadRequest, errors.New("limit exceeds "+strconv.Itoa(s.maxLeaderboard))))
			return
		}
	}
	entries, err := s.deps.Aggregates.Leaderboard(r.Context(), r.PathValue("ownerID"), n)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
