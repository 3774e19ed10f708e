package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/review"
	"github.com/okian/tipjar/internal/domain/types"
)

// tipRequest accepts the amount as a JSON number or a decimal string.
type tipRequest struct {
	WorkerID     string          `json:"worker_id"`
	Amount       decimal.Decimal `json:"amount"`
	CustomerName string          `json:"customer_name"`
	PaymentRef   string          `json:"payment_ref"`
}

type reviewRequest struct {
	CustomerName string  `json:"customer_name"`
	Rating       *int    `json:"rating"`
	Review       *string `json:"review"`
}

type reviewResponse struct {
	Tip          types.Tip         `json:"tip"`
	Visibility   review.Visibility `json:"visibility"`
	Published    bool              `json:"published"`
	PublishError string            `json:"publish_error,omitempty"`
}

// handleRecordTip handles POST /tips.
func (s *Server) handleRecordTip(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_tip"
	var req tipRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	tip, err := s.deps.Tips.SubmitTip(r.Context(), review.TipSubmission{
		WorkerID:     req.WorkerID,
		Amount:       req.Amount,
		CustomerName: req.CustomerName,
		PaymentRef:   req.PaymentRef,
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.NewTip(tip))
}

// handleGetTip handles GET /tips/{tipID}.
func (s *Server) handleGetTip(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_tip"
	tip, err := s.deps.Ledger.GetTip(r.Context(), r.PathValue("tipID"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewTip(tip))
}

// handleReviewTip handles POST /tips/{tipID}/review.
func (s *Server) handleReviewTip(w http.ResponseWriter, r *http.Request) {
	const op = "api.review_tip"
	var req reviewRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.review(w, r, op, req, review.ReviewSubmission{TipID: r.PathValue("tipID")})
}

// handleReviewWorker handles POST /workers/{workerID}/reviews. The review
// lands on the customer's most recent tip to the worker.
func (s *Server) handleReviewWorker(w http.ResponseWriter, r *http.Request) {
	const op = "api.review_worker"
	var req reviewRequest
	if err := decode(w, r, op, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.review(w, r, op, req, review.ReviewSubmission{
		WorkerID:     r.PathValue("workerID"),
		CustomerName: req.CustomerName,
	})
}

func (s *Server) review(w http.ResponseWriter, r *http.Request, op string, req reviewRequest, sub review.ReviewSubmission) {
	if req.Rating == nil {
		s.fail(w, r, op, model.ErrInvalidRating)
		return
	}
	sub.Rating = *req.Rating
	sub.Review = req.Review

	out, err := s.deps.Tips.SubmitReview(r.Context(), sub)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	resp := reviewResponse{
		Tip:        types.NewTip(out.Tip),
		Visibility: out.Visibility,
		Published:  out.Published,
	}
	if out.PublishError != nil {
		resp.PublishError = out.PublishError.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListTips handles GET /workers/{workerID}/tips.
func (s *Server) handleListTips(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_tips"
	tips, err := s.deps.Ledger.ListTipsForWorker(r.Context(), r.PathValue("workerID"))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewTips(tips))
}
