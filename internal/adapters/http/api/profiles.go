package api

import (
	"net/http"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/types"
)

type registerWorkerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PayoutID string `json:"payout_id"`
}

type registerOwnerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	BusinessName string `json:"business_name"`
}

// handleRegisterWorker handles POST /workers.
func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_worker"
	var req registerWorkerRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.register(w, r, op, model.Profile{
		Role:     model.RoleWorker,
		Name:     req.Name,
		Email:    req.Email,
		PayoutID: req.PayoutID,
	})
}

// handleRegisterOwner handles POST /owners.
func (s *Server) handleRegisterOwner(w http.ResponseWriter, r *http.Request) {
	const op = "api.register_owner"
	var req registerOwnerRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.register(w, r, op, model.Profile{
		Role:         model.RoleOwner,
		Name:         req.Name,
		Email:        req.Email,
		BusinessName: req.BusinessName,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, op string, p model.Profile) {
	if err := p.Validate(); err != nil {
		s.fail(w, r, op, err)
		return
	}
	created, err := s.deps.Directory.CreateProfile(r.Context(), p)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.NewProfile(created))
}

// handleGetWorker handles GET /workers/{workerID}.
func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_worker"
	p, err := s.deps.Directory.GetProfile(r.Context(), r.PathValue("workerID"))
	if err == nil && p.Role != model.RoleWorker {
		err = model.ErrWorkerNotFound
	}
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewProfile(p))
}
