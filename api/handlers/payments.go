package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/anshgupta/storekart-backend/api/middleware"
	"github.com/anshgupta/storekart-backend/api/responses"
	"github.com/anshgupta/storekart-backend/api/validators"
	paymentsvc "github.com/anshgupta/storekart-backend/internal/payments"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/anshgupta/storekart-backend/pkg/types"
)

// PaymentInitiate creates a gateway order for the client checkout widget.
func PaymentInitiate(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gwOrder, err := svc.Initiate(r.Context(), paymentsvc.InitiateParams{
			UserID:  userID,
			Amount:  payload.Amount,
			Receipt: payload.Receipt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"gateway_order_id": gwOrder.ID,
			"amount_paise":     gwOrder.Amount,
			"currency":         gwOrder.Currency,
		})
	}
}

// PaymentVerify reconciles a gateway payment callback into an order. A
// signature mismatch still returns the created order so the client can
// resume payment.
func PaymentVerify(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.VerifyAndReconcile(r.Context(), paymentsvc.CallbackParams{
			UserID:         userID,
			GatewayOrderID: payload.GatewayOrderID,
			PaymentID:      payload.PaymentID,
			Signature:      payload.Signature,
			RawMethod:      payload.PaymentMethod,
			Address:        payload.ShippingAddress,
			CouponCode:     payload.CouponCode,
		})
		if err != nil {
			// a mismatch error carries the created order id in its details
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// SavedCardList returns the caller's persisted card tokens.
func SavedCardList(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		cards, err := svc.ListSavedCards(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]savedCardResponse, 0, len(cards))
		for _, card := range cards {
			out = append(out, savedCardResponse{
				TokenID:   card.TokenID,
				Last4:     card.Last4,
				Network:   card.Network,
				Preferred: card.Preferred,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

type initiatePaymentRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Receipt string          `json:"receipt"`
}

type verifyPaymentRequest struct {
	GatewayOrderID  string        `json:"gateway_order_id" validate:"required"`
	PaymentID       string        `json:"payment_id" validate:"required"`
	Signature       string        `json:"signature" validate:"required"`
	PaymentMethod   string        `json:"payment_method"`
	CouponCode      string        `json:"coupon_code"`
	ShippingAddress types.Address `json:"shipping_address" validate:"required"`
}

type savedCardResponse struct {
	TokenID   string  `json:"token_id"`
	Last4     *string `json:"last4,omitempty"`
	Network   *string `json:"network,omitempty"`
	Preferred bool    `json:"preferred"`
}
