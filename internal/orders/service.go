// Package orders owns the order state machine. Fulfillment status and
// payment status move on independent axes; every transition appends one
// audit row. Monetary totals are frozen at creation and never recomputed.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/anshgupta/storekart-backend/internal/cart"
	"github.com/anshgupta/storekart-backend/internal/coupons"
	"github.com/anshgupta/storekart-backend/internal/inventory"
	"github.com/anshgupta/storekart-backend/internal/pricing"
	"github.com/anshgupta/storekart-backend/internal/settings"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/anshgupta/storekart-backend/pkg/metrics"
	"github.com/anshgupta/storekart-backend/pkg/money"
	"github.com/anshgupta/storekart-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type signatureVerifier interface {
	VerifySignature(orderID, paymentID, signature string) bool
}

type confirmationNotifier interface {
	NotifyOrderConfirmed(ctx context.Context, order *models.Order)
}

// CreateParams is one checkout attempt against the user's current cart.
type CreateParams struct {
	UserID     uuid.UUID
	Address    types.Address
	CouponCode string
	RawMethod  string

	// Gateway fields are set when the reconciler creates the order off a
	// payment callback. PaymentVerified means the signature matched; a
	// gateway-method order without verification lands in the
	// pending/pending retry path and keeps its stock undecremented.
	GatewayOrderID   *string
	GatewayPaymentID *string
	PaymentVerified  bool

	Actor string
}

// CompletePaymentParams resumes payment on a pending order.
type CompletePaymentParams struct {
	OrderID   uuid.UUID
	PaymentID string
	Signature string
	Actor     string
}

// ServiceParams groups dependencies for the order service.
type ServiceParams struct {
	Tx            txRunner
	OrderRepo     *Repository
	CartService   cart.Service
	CouponService coupons.Service
	Ledger        *inventory.Ledger
	Settings      settings.Service
	Verifier      signatureVerifier
	Logger        *logger.Logger

	// Optional collaborators.
	Notifier confirmationNotifier
	Metrics  *metrics.Registry
}

// CouponQuote is a dry-run application of a coupon against the user's
// current cart. Nothing is persisted and no usage is recorded.
type CouponQuote struct {
	Coupon *models.Coupon
	Totals pricing.Totals
}

// Service drives the order lifecycle.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Order, error)
	QuoteCoupon(ctx context.Context, userID uuid.UUID, code, rawMethod string) (*CouponQuote, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor string) (*models.Order, error)
	CompletePayment(ctx context.Context, params CompletePaymentParams) (*models.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID, actor string) (*models.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID, actor string) (*models.Order, error)
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

type service struct {
	tx         txRunner
	orderRepo  *Repository
	cartSvc    cart.Service
	couponSvc  coupons.Service
	ledger     *inventory.Ledger
	settings   settings.Service
	verifier   signatureVerifier
	logg       *logger.Logger
	notifier   confirmationNotifier
	collectors *metrics.Registry
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner is required")
	}
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repo is required")
	}
	if params.CartService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart service is required")
	}
	if params.CouponService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon service is required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory ledger is required")
	}
	if params.Settings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settings service is required")
	}
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "signature verifier is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		tx:         params.Tx,
		orderRepo:  params.OrderRepo,
		cartSvc:    params.CartService,
		couponSvc:  params.CouponService,
		ledger:     params.Ledger,
		settings:   params.Settings,
		verifier:   params.Verifier,
		logg:       params.Logger,
		notifier:   params.Notifier,
		collectors: params.Metrics,
	}, nil
}

// Create turns the user's cart into an order in one transaction. Any
// failure leaves no order, no items and no stock mutation behind.
func (s *service) Create(ctx context.Context, params CreateParams) (*models.Order, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if err := params.Address.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	method := enums.NormalizePaymentMethod(params.RawMethod)

	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if method == enums.PaymentMethodCOD && !snap.CODEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery is currently disabled")
	}
	if method.RequiresGateway() && !snap.GatewayEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "online payment is currently disabled")
	}
	if params.CouponCode != "" && !snap.CouponsEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeCouponIneligible, "coupons are currently disabled")
	}

	// stock is decremented at creation except on the signature-failure
	// retry path, where complete_payment takes it later
	decrementNow := !method.RequiresGateway() || params.PaymentVerified

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartSvc := s.cartSvc.WithTx(tx)
		couponSvc := s.couponSvc.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		userCart, err := cartSvc.GetCart(ctx, params.UserID)
		if err != nil {
			return err
		}
		if len(userCart.Lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		totals, coupon, err := s.priceCart(ctx, couponSvc, userCart, params, method, snap)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		order = buildOrder(params, method, totals, coupon, now)
		order.Items = buildItems(userCart, decrementNow)

		if decrementNow {
			for _, line := range userCart.Lines {
				target := inventory.LineTarget{ProductID: line.Item.ProductID, VariantID: line.Item.VariantID}
				if err := ledger.Reserve(ctx, target, line.Item.Quantity); err != nil {
					return err
				}
			}
		}

		if err := orderRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		// usage counts only for orders born confirmed (or COD pending
		// payment), never on the signature-failure path
		if coupon != nil && order.CouponUsageRecorded {
			if err := couponSvc.RecordUsage(ctx, coupon.ID); err != nil {
				return err
			}
		}

		if err := cartSvc.Clear(ctx, params.UserID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.collectors != nil {
		s.collectors.OrdersCreated.WithLabelValues(method.String(), order.Status.String()).Inc()
		if order.CouponUsageRecorded {
			s.collectors.CouponRedemptions.Inc()
		}
	}
	if order.Status == enums.OrderStatusConfirmed {
		s.notifyConfirmed(ctx, order)
	}
	return order, nil
}

// Cancel releases stock and closes the order. Only pending and confirmed
// orders can be cancelled; the transition itself is guarded by a
// conditional update so concurrent calls cannot double-release.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		loaded, err := s.loadOrder(ctx, orderRepo, orderID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		moved, err := orderRepo.TransitionStatus(ctx, orderID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed},
			map[string]any{
				"status":       enums.OrderStatusCancelled.String(),
				"cancelled_at": now,
				"updated_at":   now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled from its current state").
				WithDetails(map[string]any{"order_id": orderID, "status": loaded.Status.String()})
		}

		// the claim reads the committed flag, not the snapshot loaded
		// above, so a payment completion landing mid-cancel still gets
		// its stock given back
		for i := range loaded.Items {
			item := &loaded.Items[i]
			claimed, err := orderRepo.ClaimItemDecrement(ctx, item.ID, false)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item released")
			}
			if !claimed {
				continue
			}
			target := inventory.LineTarget{ProductID: item.ProductID, VariantID: item.VariantID}
			if err := ledger.Release(ctx, target, item.Quantity); err != nil {
				return err
			}
			item.StockDecremented = false
		}

		loaded.Status = enums.OrderStatusCancelled
		loaded.CancelledAt = &now
		if err := orderRepo.AppendHistory(ctx, historyRow(loaded, actor, "order cancelled")); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history")
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.collectors != nil {
		s.collectors.OrdersCancelled.Inc()
	}
	return order, nil
}

// CompletePayment re-verifies the gateway signature, takes any stock not
// yet decremented and marks the order paid and confirmed. Totals frozen at
// creation are reused untouched.
func (s *service) CompletePayment(ctx context.Context, params CompletePaymentParams) (*models.Order, error) {
	if params.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		couponSvc := s.couponSvc.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		loaded, err := s.loadOrder(ctx, orderRepo, params.OrderID)
		if err != nil {
			return err
		}
		if loaded.PaymentStatus != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not pending").
				WithDetails(map[string]any{"order_id": loaded.ID, "payment_status": loaded.PaymentStatus.String()})
		}
		if loaded.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
		}

		if loaded.PaymentMethod.RequiresGateway() {
			if loaded.GatewayOrderID == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "order has no gateway order id")
			}
			if params.PaymentID == "" || params.Signature == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "payment id and signature are required")
			}
			if !s.verifier.VerifySignature(*loaded.GatewayOrderID, params.PaymentID, params.Signature) {
				return pkgerrors.New(pkgerrors.CodeSignatureMismatch, "payment signature verification failed").
					WithDetails(map[string]any{"order_id": loaded.ID})
			}
		}

		for i := range loaded.Items {
			item := &loaded.Items[i]
			claimed, err := orderRepo.ClaimItemDecrement(ctx, item.ID, true)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item decremented")
			}
			if !claimed {
				continue
			}
			target := inventory.LineTarget{ProductID: item.ProductID, VariantID: item.VariantID}
			if err := ledger.Reserve(ctx, target, item.Quantity); err != nil {
				return err
			}
			item.StockDecremented = true
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"payment_status": enums.PaymentStatusPaid.String(),
			"updated_at":     now,
		}
		loaded.PaymentStatus = enums.PaymentStatusPaid
		if loaded.Status == enums.OrderStatusPending {
			updates["status"] = enums.OrderStatusConfirmed.String()
			updates["confirmed_at"] = now
			loaded.Status = enums.OrderStatusConfirmed
			loaded.ConfirmedAt = &now
		}
		if params.PaymentID != "" {
			updates["gateway_payment_id"] = params.PaymentID
			loaded.GatewayPaymentID = &params.PaymentID
		}

		recordUsage := loaded.CouponID != nil && !loaded.CouponUsageRecorded
		if recordUsage {
			if err := couponSvc.RecordUsage(ctx, *loaded.CouponID); err != nil {
				// payment is already taken at this point; a lost race on
				// the usage cap must not unwind it
				if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
					s.logg.Warn(s.logg.WithOrderID(ctx, loaded.ID.String()), "coupon usage cap hit after payment, skipping usage record")
					recordUsage = false
				} else {
					return err
				}
			}
		}
		if recordUsage {
			updates["coupon_usage_recorded"] = true
			loaded.CouponUsageRecorded = true
		}

		// the guarded update backs out everything above (stock claims,
		// reservations, usage record) if a cancellation committed after
		// the load; cancellation stays irreversible
		moved, err := orderRepo.MarkPaid(ctx, loaded.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed state during payment completion").
				WithDetails(map[string]any{"order_id": loaded.ID})
		}
		if err := orderRepo.AppendHistory(ctx, historyRow(loaded, params.Actor, "payment completed")); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history")
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyConfirmed(ctx, order)
	return order, nil
}

// QuoteCoupon validates a coupon against the user's current cart and
// returns the totals checkout would produce with it applied.
func (s *service) QuoteCoupon(ctx context.Context, userID uuid.UUID, code, rawMethod string) (*CouponQuote, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.CouponsEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeCouponIneligible, "coupons are currently disabled")
	}

	userCart, err := s.cartSvc.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(userCart.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	method := enums.NormalizePaymentMethod(rawMethod)
	totals, coupon, err := s.priceCart(ctx, s.couponSvc, userCart, CreateParams{
		UserID:     userID,
		CouponCode: code,
	}, method, snap)
	if err != nil {
		return nil, err
	}
	return &CouponQuote{Coupon: coupon, Totals: totals}, nil
}

// Ship moves a confirmed order into fulfillment.
func (s *service) Ship(ctx context.Context, orderID uuid.UUID, actor string) (*models.Order, error) {
	return s.transition(ctx, orderID, actor,
		[]enums.OrderStatus{enums.OrderStatusConfirmed},
		enums.OrderStatusShipped, "shipped_at", "order shipped")
}

// Deliver closes fulfillment and starts the return window.
func (s *service) Deliver(ctx context.Context, orderID uuid.UUID, actor string) (*models.Order, error) {
	return s.transition(ctx, orderID, actor,
		[]enums.OrderStatus{enums.OrderStatusShipped},
		enums.OrderStatusDelivered, "delivered_at", "order delivered")
}

// GetByID loads an order with its items.
func (s *service) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.loadOrder(ctx, s.orderRepo, orderID)
}

// GetForUser loads an order and enforces ownership.
func (s *service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.orderRepo, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListForUser returns the user's orders, newest first.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	out, err := s.orderRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return out, nil
}

// History returns the append-only audit trail.
func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	rows, err := s.orderRepo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list history")
	}
	return rows, nil
}

func (s *service) transition(ctx context.Context, orderID uuid.UUID, actor string, from []enums.OrderStatus, to enums.OrderStatus, timestampCol, note string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		loaded, err := s.loadOrder(ctx, orderRepo, orderID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		moved, err := orderRepo.TransitionStatus(ctx, orderID, from, map[string]any{
			"status":     to.String(),
			timestampCol: now,
			"updated_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid order transition").
				WithDetails(map[string]any{"order_id": orderID, "from": loaded.Status.String(), "to": to.String()})
		}

		loaded.Status = to
		switch to {
		case enums.OrderStatusShipped:
			loaded.ShippedAt = &now
		case enums.OrderStatusDelivered:
			loaded.DeliveredAt = &now
		}
		if err := orderRepo.AppendHistory(ctx, historyRow(loaded, actor, note)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history")
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) loadOrder(ctx context.Context, repo *Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// priceCart runs coupon eligibility and the totals computation for the
// resolved cart.
func (s *service) priceCart(ctx context.Context, couponSvc coupons.Service, userCart cart.Cart, params CreateParams, method enums.PaymentMethod, snap settings.Snapshot) (pricing.Totals, *models.Coupon, error) {
	if params.CouponCode == "" {
		totals, err := pricing.ComputeTotals(userCart.Subtotal, method, decimal.Zero, snap)
		return totals, nil, err
	}

	coupon, err := couponSvc.FindByCode(ctx, params.CouponCode)
	if err != nil {
		return pricing.Totals{}, nil, err
	}
	usable, reason, err := couponSvc.CanBeUsedBy(ctx, coupon, params.UserID)
	if err != nil {
		return pricing.Totals{}, nil, err
	}
	if !usable {
		return pricing.Totals{}, nil, pkgerrors.New(pkgerrors.CodeCouponIneligible, reason).
			WithDetails(map[string]any{"coupon_code": coupon.Code})
	}

	if coupon.Kind == enums.CouponKindSeller {
		// seller coupons discount the fee+tax component, never the
		// product subtotal
		pre, err := pricing.ComputeTotals(userCart.Subtotal, method, decimal.Zero, snap)
		if err != nil {
			return pricing.Totals{}, nil, err
		}
		base := money.Round2(pre.PlatformFee.Add(pre.TaxAmount))
		discount, err := couponSvc.CalculateDiscount(coupon, base, nil)
		if err != nil {
			return pricing.Totals{}, nil, err
		}
		pre.CouponDiscount = discount
		pre.TotalAmount = money.Round2(pre.Subtotal.
			Add(pre.TaxAmount).
			Add(pre.PlatformFee).
			Add(pre.ShippingCost).
			Sub(discount))
		return pre, coupon, nil
	}

	var vendorScoped *decimal.Decimal
	if coupon.VendorID != nil {
		scoped := decimal.Zero
		for _, line := range userCart.Lines {
			if line.Product.VendorID == *coupon.VendorID {
				scoped = money.Round2(scoped.Add(line.LineTotal))
			}
		}
		vendorScoped = &scoped
	}
	discount, err := couponSvc.CalculateDiscount(coupon, userCart.Subtotal, vendorScoped)
	if err != nil {
		return pricing.Totals{}, nil, err
	}
	totals, err := pricing.ComputeTotals(userCart.Subtotal, method, discount, snap)
	return totals, coupon, err
}

func (s *service) notifyConfirmed(ctx context.Context, order *models.Order) {
	if s.notifier == nil || order == nil {
		return
	}
	s.notifier.NotifyOrderConfirmed(ctx, order)
}

func buildOrder(params CreateParams, method enums.PaymentMethod, totals pricing.Totals, coupon *models.Coupon, now time.Time) *models.Order {
	order := &models.Order{
		UserID:          params.UserID,
		PaymentMethod:   method,
		RawMethod:       params.RawMethod,
		Subtotal:        totals.Subtotal,
		CouponDiscount:  totals.CouponDiscount,
		PlatformFee:     totals.PlatformFee,
		TaxAmount:       totals.TaxAmount,
		ShippingCost:    totals.ShippingCost,
		TotalAmount:     totals.TotalAmount,
		ShippingAddress: params.Address,
		GatewayOrderID:  params.GatewayOrderID,
	}
	if coupon != nil {
		order.CouponID = &coupon.ID
		code := coupon.Code
		order.CouponCode = &code
	}

	switch {
	case !method.RequiresGateway():
		// COD and unmapped methods need no upfront verification
		order.Status = enums.OrderStatusConfirmed
		order.PaymentStatus = enums.PaymentStatusPending
		order.ConfirmedAt = &now
	case params.PaymentVerified:
		order.Status = enums.OrderStatusConfirmed
		order.PaymentStatus = enums.PaymentStatusPaid
		order.ConfirmedAt = &now
		order.GatewayPaymentID = params.GatewayPaymentID
	default:
		// checkout intent is preserved even when verification failed
		order.Status = enums.OrderStatusPending
		order.PaymentStatus = enums.PaymentStatusPending
	}

	order.CouponUsageRecorded = coupon != nil && order.Status == enums.OrderStatusConfirmed

	actor := params.Actor
	if actor == "" {
		actor = "user"
	}
	order.History = []models.OrderStatusHistory{{
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Actor:         actor,
		Note:          "order created",
	}}
	return order
}

func buildItems(userCart cart.Cart, decremented bool) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(userCart.Lines))
	for _, line := range userCart.Lines {
		item := models.OrderItem{
			ProductID:        line.Item.ProductID,
			VariantID:        line.Item.VariantID,
			Name:             line.Product.Name,
			UnitPrice:        line.UnitPrice,
			Quantity:         line.Item.Quantity,
			LineTotal:        line.LineTotal,
			StockDecremented: decremented,
		}
		if line.Variant != nil {
			item.Color = line.Variant.Color
			item.Size = line.Variant.Size
			item.Pattern = line.Variant.Pattern
		}
		items = append(items, item)
	}
	return items
}

func historyRow(order *models.Order, actor, note string) *models.OrderStatusHistory {
	if actor == "" {
		actor = "system"
	}
	return &models.OrderStatusHistory{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Actor:         actor,
		Note:          note,
	}
}
