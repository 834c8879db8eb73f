// Package payments reconciles gateway callbacks against orders. The
// reconciler is the only component that talks to the payment gateway; the
// order state machine stays gateway-agnostic.
package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anshgupta/storekart-backend/internal/orders"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/anshgupta/storekart-backend/pkg/metrics"
	"github.com/anshgupta/storekart-backend/pkg/money"
	"github.com/anshgupta/storekart-backend/pkg/razorpay"
	"github.com/anshgupta/storekart-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	currencyINR        = "INR"
	idempotencyScope   = "payment"
	idempotencyTTL     = 24 * time.Hour
	defaultRawMethod   = "razorpay"
	verificationOK     = "success"
	verificationFailed = "signature_mismatch"
)

type gateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string, notes map[string]string) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	CreateCustomer(ctx context.Context, name, email, contact string) (*razorpay.Customer, error)
	FetchCustomer(ctx context.Context, customerID string) (*razorpay.Customer, error)
	FetchToken(ctx context.Context, customerID, tokenID string) (*razorpay.Token, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// InitiateParams starts a gateway checkout for an amount.
type InitiateParams struct {
	UserID  uuid.UUID
	Amount  decimal.Decimal
	Receipt string
}

// CallbackParams is the payload of a gateway payment callback.
type CallbackParams struct {
	UserID         uuid.UUID
	GatewayOrderID string
	PaymentID      string
	Signature      string
	RawMethod      string
	Address        types.Address
	CouponCode     string
}

// ServiceParams groups dependencies for the payment reconciler.
type ServiceParams struct {
	Gateway   gateway
	Repo      *Repository
	Orders    orders.Service
	OrderRepo *orders.Repository
	Logger    *logger.Logger

	// Optional collaborators.
	Idempotency idempotencyStore
	Metrics     *metrics.Registry
}

// Service reconciles payments and manages gateway identities and tokens.
type Service interface {
	Initiate(ctx context.Context, params InitiateParams) (*razorpay.Order, error)
	VerifyAndReconcile(ctx context.Context, params CallbackParams) (*models.Order, error)
	ListSavedCards(ctx context.Context, userID uuid.UUID) ([]models.SavedCard, error)
}

type service struct {
	gateway    gateway
	repo       *Repository
	orders     orders.Service
	orderRepo  *orders.Repository
	logg       *logger.Logger
	idem       idempotencyStore
	collectors *metrics.Registry
}

// NewService builds a payment reconciler with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway client is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payments repo is required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order service is required")
	}
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repo is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		gateway:    params.Gateway,
		repo:       params.Repo,
		orders:     params.Orders,
		orderRepo:  params.OrderRepo,
		logg:       params.Logger,
		idem:       params.Idempotency,
		collectors: params.Metrics,
	}, nil
}

// Initiate creates a gateway order for the amount, reusing the user's
// stable gateway identity. The identity is keyed to the user, never to the
// shipping details entered at checkout.
func (s *service) Initiate(ctx context.Context, params InitiateParams) (*razorpay.Order, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	customerID, err := s.ensureCustomer(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	receipt := params.Receipt
	if receipt == "" {
		receipt = "rcpt_" + uuid.NewString()[:13]
	}
	gwOrder, err := s.gateway.CreateOrder(ctx, money.ToPaise(params.Amount), currencyINR, receipt, map[string]string{
		"customer_id": customerID,
		"user_id":     params.UserID.String(),
	})
	if err != nil {
		s.countGatewayError()
		return nil, err
	}
	return gwOrder, nil
}

// VerifyAndReconcile turns a payment callback into an order exactly once.
// A replay for a gateway order that already has an order returns that
// order untouched; a signature mismatch still creates the order on the
// pending retry path and surfaces the mismatch with the order id.
func (s *service) VerifyAndReconcile(ctx context.Context, params CallbackParams) (*models.Order, error) {
	if params.GatewayOrderID == "" || params.PaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and payment id are required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"gateway_order_id": params.GatewayOrderID,
		"payment_id":       params.PaymentID,
	})

	// replays resolve against the existing order before anything else;
	// the unique index on gateway_order_id is the authority
	if order, err := s.existingOrder(ctx, params); order != nil || err != nil {
		return order, err
	}

	// redis guard absorbs fast double-submits racing the DB lookup
	if s.idem != nil {
		key := s.idem.IdempotencyKey(idempotencyScope, params.GatewayOrderID+":"+params.PaymentID)
		fresh, err := s.idem.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), idempotencyTTL)
		if err != nil {
			s.logg.Warn(ctx, "idempotency guard unavailable, relying on db uniqueness")
		} else if !fresh {
			if order, err := s.existingOrder(ctx, params); order != nil || err != nil {
				return order, err
			}
		}
	}

	verified := s.gateway.VerifySignature(params.GatewayOrderID, params.PaymentID, params.Signature)

	rawMethod := params.RawMethod
	if rawMethod == "" {
		rawMethod = defaultRawMethod
	}

	createParams := orders.CreateParams{
		UserID:          params.UserID,
		Address:         params.Address,
		CouponCode:      params.CouponCode,
		RawMethod:       rawMethod,
		GatewayOrderID:  &params.GatewayOrderID,
		PaymentVerified: verified,
		Actor:           "gateway",
	}
	if verified {
		createParams.GatewayPaymentID = &params.PaymentID
	}

	order, err := s.orders.Create(ctx, createParams)
	if err != nil {
		// the race the redis guard cannot close: a concurrent callback
		// created the order first and the unique index rejected ours
		if existing, lookupErr := s.existingOrder(ctx, params); existing != nil && lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}

	if !verified {
		s.countVerification(verificationFailed)
		return order, pkgerrors.New(pkgerrors.CodeSignatureMismatch, "payment signature verification failed").
			WithDetails(map[string]any{"order_id": order.ID})
	}

	s.countVerification(verificationOK)
	s.saveTokenBestEffort(ctx, params.UserID, params.PaymentID)
	return order, nil
}

// ListSavedCards returns the user's persisted tokens.
func (s *service) ListSavedCards(ctx context.Context, userID uuid.UUID) ([]models.SavedCard, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cards, err := s.repo.ListSavedCards(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list saved cards")
	}
	return cards, nil
}

// existingOrder resolves a callback against an already-created order. A
// paid order is simply returned; a pending one gets the payment completion
// retried with the incoming signature.
func (s *service) existingOrder(ctx context.Context, params CallbackParams) (*models.Order, error) {
	order, err := s.orderRepo.FindByGatewayOrderID(ctx, params.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by gateway order id")
	}

	if order.PaymentStatus == enums.PaymentStatusPaid {
		return order, nil
	}

	completed, err := s.orders.CompletePayment(ctx, orders.CompletePaymentParams{
		OrderID:   order.ID,
		PaymentID: params.PaymentID,
		Signature: params.Signature,
		Actor:     "gateway",
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeSignatureMismatch) {
			s.countVerification(verificationFailed)
			return order, err
		}
		return nil, err
	}

	s.countVerification(verificationOK)
	s.saveTokenBestEffort(ctx, order.UserID, params.PaymentID)
	return completed, nil
}

// ensureCustomer returns the user's gateway customer id, creating or
// healing the mapping as needed.
func (s *service) ensureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	stored, err := s.repo.FindGatewayCustomer(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gateway customer")
	}

	if stored != nil {
		if _, err := s.gateway.FetchCustomer(ctx, stored.CustomerID); err == nil {
			return stored.CustomerID, nil
		} else if !errors.Is(err, razorpay.ErrNotFound) {
			s.countGatewayError()
			return "", err
		}
		// the gateway no longer knows this identity; fall through and
		// recreate it
		s.logg.Warn(s.logg.WithField(ctx, "customer_id", stored.CustomerID), "stored gateway customer vanished, recreating")
	}

	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	contact := ""
	if user.Phone != nil {
		contact = *user.Phone
	}
	customer, err := s.gateway.CreateCustomer(ctx, user.Name, user.Email, contact)
	if err != nil {
		s.countGatewayError()
		return "", err
	}

	if err := s.repo.SaveGatewayCustomer(ctx, &models.GatewayCustomer{
		UserID:     userID,
		CustomerID: customer.ID,
	}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist gateway customer")
	}
	return customer.ID, nil
}

// saveTokenBestEffort persists a card token after re-verifying it with the
// gateway. Nothing here may fail the surrounding reconciliation; every
// failure is only logged.
func (s *service) saveTokenBestEffort(ctx context.Context, userID uuid.UUID, paymentID string) {
	var errs error

	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		s.logg.Warn(ctx, "token save skipped, payment fetch failed")
		return
	}
	if payment.TokenID == "" || payment.CustomerID == "" {
		return
	}

	token, err := s.gateway.FetchToken(ctx, payment.CustomerID, payment.TokenID)
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if !tokenActive(token.Status) {
		s.logg.Warn(s.logg.WithField(ctx, "token_status", token.Status), "gateway token not active, discarding")
		return
	}

	if errs == nil {
		hasPreferred, err := s.repo.HasPreferredCard(ctx, userID)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			card := &models.SavedCard{
				UserID:            userID,
				TokenID:           token.ID,
				GatewayCustomerID: payment.CustomerID,
				Preferred:         !hasPreferred,
			}
			if token.Card.Last4 != "" {
				card.Last4 = &token.Card.Last4
			}
			if token.Card.Network != "" {
				card.Network = &token.Card.Network
			}
			errs = multierr.Append(errs, s.repo.UpsertSavedCard(ctx, card))
		}
	}

	if errs != nil {
		s.logg.Error(ctx, "best-effort token save failed", errs)
	}
}

func tokenActive(status string) bool {
	switch strings.ToLower(status) {
	case "active", "activated":
		return true
	default:
		return false
	}
}

func (s *service) countVerification(outcome string) {
	if s.collectors != nil {
		s.collectors.PaymentVerification.WithLabelValues(outcome).Inc()
	}
}

func (s *service) countGatewayError() {
	if s.collectors != nil {
		s.collectors.GatewayErrors.Inc()
	}
}
