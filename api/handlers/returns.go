package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anshgupta/storekart-backend/api/middleware"
	"github.com/anshgupta/storekart-backend/api/responses"
	"github.com/anshgupta/storekart-backend/api/validators"
	returnsvc "github.com/anshgupta/storekart-backend/internal/returns"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
)

// ReturnCreate files a return claim for one item of a delivered order.
func ReturnCreate(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload createReturnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Create(r.Context(), returnsvc.CreateParams{
			UserID:      userID,
			OrderID:     payload.OrderID,
			OrderItemID: payload.OrderItemID,
			Reason:      payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReturnResponse(req))
	}
}

// ReturnGet returns one of the caller's return claims.
func ReturnGet(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		requestID, err := uuid.Parse(chi.URLParam(r, "returnID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return id"))
			return
		}

		req, err := svc.GetForUser(r.Context(), userID, requestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(req))
	}
}

// ReturnList returns the caller's claims, newest first.
func ReturnList(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		reqs, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnListResponse(reqs))
	}
}

// ReturnListPending lists claims awaiting review. Ops only.
func ReturnListPending(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := svc.ListPending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnListResponse(reqs))
	}
}

// ReturnApprove resolves a claim in the customer's favor. Ops only.
func ReturnApprove(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reviewReturn(svc, logg, svc.Approve)
}

// ReturnReject resolves a claim against the customer. Ops only.
func ReturnReject(svc returnsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return reviewReturn(svc, logg, svc.Reject)
}

func reviewReturn(svc returnsvc.Service, logg *logger.Logger, fn func(ctx context.Context, requestID uuid.UUID, reviewer, note string) (*models.ReturnRequest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := uuid.Parse(chi.URLParam(r, "returnID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return id"))
			return
		}

		var payload reviewReturnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := fn(r.Context(), requestID, "ops", payload.Note)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newReturnResponse(req))
	}
}

type createReturnRequest struct {
	OrderID     uuid.UUID `json:"order_id" validate:"required"`
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
	Reason      string    `json:"reason" validate:"required"`
}

type reviewReturnRequest struct {
	Note string `json:"note"`
}

type returnResponse struct {
	ID           uuid.UUID        `json:"id"`
	OrderID      uuid.UUID        `json:"order_id"`
	OrderItemID  uuid.UUID        `json:"order_item_id"`
	Status       string           `json:"status"`
	Reason       string           `json:"reason"`
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
	ReviewNote   *string          `json:"review_note,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
}

func newReturnResponse(req *models.ReturnRequest) returnResponse {
	return returnResponse{
		ID:           req.ID,
		OrderID:      req.OrderID,
		OrderItemID:  req.OrderItemID,
		Status:       req.Status.String(),
		Reason:       req.Reason,
		RefundAmount: req.RefundAmount,
		ReviewNote:   req.ReviewNote,
		CreatedAt:    req.CreatedAt,
		ResolvedAt:   req.ResolvedAt,
	}
}

func newReturnListResponse(reqs []models.ReturnRequest) []returnResponse {
	out := make([]returnResponse, 0, len(reqs))
	for i := range reqs {
		out = append(out, newReturnResponse(&reqs[i]))
	}
	return out
}
