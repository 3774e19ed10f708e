package api

import (
	"net/http"
	"strings"
	"time"
)

type addWorkerRequest struct {
	Email string `json:"email"`
}

type rosterEntryResponse struct {
	OwnerID   string    `json:"owner_id"`
	WorkerID  string    `json:"worker_id"`
	CreatedAt time.Time `json:"created_at"`
}

type rosterResponse struct {
	OwnerID   string   `json:"owner_id"`
	WorkerIDs []string `json:"worker_ids"`
}

// handleAddWorker handles POST /businesses/{ownerID}/workers.
func (s *Server) handleAddWorker(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_worker"
	var req addWorkerRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.fail(w, r, op, NewKind(op, ErrBadRequest))
		return
	}
	entry, err := s.deps.Roster.AddWorkerToBusiness(r.Context(), r.PathValue("ownerID"), req.Email)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, rosterEntryResponse{
		OwnerID:   entry.OwnerID,
		WorkerID:  entry.WorkerID,
		CreatedAt: entry.CreatedAt,
	})
}

// handleListWorkers handles GET /businesses/{ownerID}/workers.
func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_workers"
	ownerID := r.PathValue("ownerID")
	ids, err := s.deps.Roster.ListWorkersForBusiness(r.Context(), ownerID)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rosterResponse{OwnerID: ownerID, WorkerIDs: ids})
}
