package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/anshgupta/storekart-backend/api/middleware"
	"github.com/anshgupta/storekart-backend/api/responses"
	"github.com/anshgupta/storekart-backend/api/validators"
	ordersvc "github.com/anshgupta/storekart-backend/internal/orders"
	"github.com/anshgupta/storekart-backend/pkg/logger"
)

// CouponValidate dry-runs a coupon against the caller's current cart and
// returns the totals checkout would produce. Nothing is persisted.
func CouponValidate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.QuoteCoupon(r.Context(), userID, payload.Code, payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := couponQuoteResponse{
			Valid:          true,
			Subtotal:       quote.Totals.Subtotal,
			CouponDiscount: quote.Totals.CouponDiscount,
			PlatformFee:    quote.Totals.PlatformFee,
			TaxAmount:      quote.Totals.TaxAmount,
			ShippingCost:   quote.Totals.ShippingCost,
			TotalAmount:    quote.Totals.TotalAmount,
		}
		if quote.Coupon != nil {
			resp.Code = quote.Coupon.Code
		}
		responses.WriteSuccess(w, resp)
	}
}

type validateCouponRequest struct {
	Code          string `json:"code" validate:"required"`
	PaymentMethod string `json:"payment_method"`
}

type couponQuoteResponse struct {
	Valid          bool            `json:"valid"`
	Code           string          `json:"code,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}
