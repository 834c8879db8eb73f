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
	ordersvc "github.com/anshgupta/storekart-backend/internal/orders"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/anshgupta/storekart-backend/pkg/types"
)

// OrderCreate checks out the caller's cart. COD orders confirm
// immediately; gateway methods should go through the payment callback
// instead, so this endpoint rejects them.
func OrderCreate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if enums.NormalizePaymentMethod(payload.PaymentMethod).RequiresGateway() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "online payment orders are created through the gateway callback"))
			return
		}

		order, err := svc.Create(r.Context(), ordersvc.CreateParams{
			UserID:     userID,
			Address:    payload.ShippingAddress,
			CouponCode: payload.CouponCode,
			RawMethod:  payload.PaymentMethod,
			Actor:      "user",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// OrderGet returns one of the caller's orders with its items.
func OrderGet(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.GetForUser(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderList returns the caller's orders, newest first.
func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		orders, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderCancel cancels a pending or confirmed order and releases its stock.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		// ownership before mutation
		if _, err := svc.GetForUser(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orderID, "user")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderCompletePayment resumes payment on a pending order with a fresh
// gateway signature.
func OrderCompletePayment(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var payload completePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.GetForUser(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CompletePayment(r.Context(), ordersvc.CompletePaymentParams{
			OrderID:   orderID,
			PaymentID: payload.PaymentID,
			Signature: payload.Signature,
			Actor:     "user",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderHistory returns the order's append-only audit trail.
func OrderHistory(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		if _, err := svc.GetForUser(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.History(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]historyResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, historyResponse{
				Status:        row.Status.String(),
				PaymentStatus: row.PaymentStatus.String(),
				Actor:         row.Actor,
				Note:          row.Note,
				At:            row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// OrderShip moves a confirmed order into fulfillment. Ops only.
func OrderShip(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, svc.Ship)
}

// OrderDeliver marks a shipped order delivered. Ops only.
func OrderDeliver(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(svc, logg, svc.Deliver)
}

func orderTransition(svc ordersvc.Service, logg *logger.Logger, fn func(ctx context.Context, orderID uuid.UUID, actor string) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := fn(r.Context(), orderID, "ops")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type createOrderRequest struct {
	PaymentMethod   string        `json:"payment_method" validate:"required"`
	CouponCode      string        `json:"coupon_code"`
	ShippingAddress types.Address `json:"shipping_address" validate:"required"`
}

type completePaymentRequest struct {
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type orderResponse struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentMethod string    `json:"payment_method"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	CouponCode       *string `json:"coupon_code,omitempty"`
	GatewayOrderID   *string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string `json:"gateway_payment_id,omitempty"`

	ShippingAddress types.Address       `json:"shipping_address"`
	Items           []orderItemResponse `json:"items"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type orderItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type historyResponse struct {
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Actor         string    `json:"actor"`
	Note          string    `json:"note"`
	At            time.Time `json:"at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		})
	}
	return orderResponse{
		ID:               order.ID,
		Status:           order.Status.String(),
		PaymentStatus:    order.PaymentStatus.String(),
		PaymentMethod:    order.PaymentMethod.String(),
		Subtotal:         order.Subtotal,
		CouponDiscount:   order.CouponDiscount,
		PlatformFee:      order.PlatformFee,
		TaxAmount:        order.TaxAmount,
		ShippingCost:     order.ShippingCost,
		TotalAmount:      order.TotalAmount,
		CouponCode:       order.CouponCode,
		GatewayOrderID:   order.GatewayOrderID,
		GatewayPaymentID: order.GatewayPaymentID,
		ShippingAddress:  order.ShippingAddress,
		Items:            items,
		CreatedAt:        order.CreatedAt,
		ConfirmedAt:      order.ConfirmedAt,
		ShippedAt:        order.ShippedAt,
		DeliveredAt:      order.DeliveredAt,
		CancelledAt:      order.CancelledAt,
	}
}
