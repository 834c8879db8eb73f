// Package returns handles post-delivery return claims. A claim is filed
// against a single order item within a fixed window after delivery and is
// reviewed into an approved or rejected terminal state.
package returns

import (
	"context"
	"errors"
	"time"

	"github.com/anshgupta/storekart-backend/internal/orders"
	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReturnWindow is how long after delivery an item stays returnable.
const ReturnWindow = 10 * 24 * time.Hour

// CreateParams files a return claim for one item of a delivered order.
type CreateParams struct {
	UserID      uuid.UUID
	OrderID     uuid.UUID
	OrderItemID uuid.UUID
	Reason      string
}

// ServiceParams groups dependencies for the returns service.
type ServiceParams struct {
	Repo      *Repository
	OrderRepo *orders.Repository
	Logger    *logger.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service exposes return filing and review.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.ReturnRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID, reviewer string, note string) (*models.ReturnRequest, error)
	Reject(ctx context.Context, requestID uuid.UUID, reviewer string, note string) (*models.ReturnRequest, error)
	GetForUser(ctx context.Context, userID, requestID uuid.UUID) (*models.ReturnRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ReturnRequest, error)
	ListPending(ctx context.Context) ([]models.ReturnRequest, error)
}

type service struct {
	repo      *Repository
	orderRepo *orders.Repository
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a returns service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "returns repo is required")
	}
	if params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order repo is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		orderRepo: params.OrderRepo,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Create files a return claim. The order must be delivered, the item must
// belong to it, the window must still be open and the item must not already
// have a claim.
func (s *service) Create(ctx context.Context, params CreateParams) (*models.ReturnRequest, error) {
	if params.UserID == uuid.Nil || params.OrderID == uuid.Nil || params.OrderItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user, order and order item ids are required")
	}
	if params.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a return reason is required")
	}

	order, err := s.orderRepo.FindByID(ctx, params.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.UserID != params.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusDelivered || order.DeliveredAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be returned")
	}

	deadline := order.DeliveredAt.Add(ReturnWindow)
	if s.now().After(deadline) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return window has closed").
			WithDetails(map[string]any{
				"delivered_at": order.DeliveredAt,
				"deadline":     deadline,
			})
	}

	item := findItem(order, params.OrderItemID)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
	}

	req := &models.ReturnRequest{
		OrderID:     order.ID,
		OrderItemID: item.ID,
		UserID:      params.UserID,
		Reason:      params.Reason,
		Status:      enums.ReturnStatusPending,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		// the unique index on order_item_id rejects a second claim
		if pkgerrors.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a return was already requested for this item")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return request")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"return_id": req.ID,
		"order_id":  order.ID,
	}), "return request filed")
	return req, nil
}

// Approve resolves a pending claim in the customer's favor. The refund is
// the line total frozen at checkout, never the product's current price.
func (s *service) Approve(ctx context.Context, requestID uuid.UUID, reviewer, note string) (*models.ReturnRequest, error) {
	req, err := s.findPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	item := findItem(order, req.OrderItemID)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "return references a missing order item")
	}

	resolvedAt := s.now()
	updates := map[string]any{
		"status":        enums.ReturnStatusApproved,
		"refund_amount": item.LineTotal,
		"resolved_at":   resolvedAt,
	}
	if note != "" {
		updates["review_note"] = note
	}
	if err := s.resolve(ctx, req, updates); err != nil {
		return nil, err
	}

	if err := s.orderRepo.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Actor:         reviewer,
		Note:          "return approved",
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}

	return s.repo.FindByID(ctx, req.ID)
}

// Reject resolves a pending claim against the customer.
func (s *service) Reject(ctx context.Context, requestID uuid.UUID, reviewer, note string) (*models.ReturnRequest, error) {
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a rejection needs a review note")
	}
	req, err := s.findPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.resolve(ctx, req, map[string]any{
		"status":      enums.ReturnStatusRejected,
		"review_note": note,
		"resolved_at": s.now(),
	}); err != nil {
		return nil, err
	}

	if err := s.orderRepo.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:       req.OrderID,
		Status:        enums.OrderStatusDelivered,
		PaymentStatus: enums.PaymentStatusPaid,
		Actor:         reviewer,
		Note:          "return rejected",
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}

	return s.repo.FindByID(ctx, req.ID)
}

// GetForUser loads a request scoped to its owner.
func (s *service) GetForUser(ctx context.Context, userID, requestID uuid.UUID) (*models.ReturnRequest, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	if req.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
	}
	return req, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ReturnRequest, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	reqs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list return requests")
	}
	return reqs, nil
}

func (s *service) ListPending(ctx context.Context) ([]models.ReturnRequest, error) {
	reqs, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending returns")
	}
	return reqs, nil
}

func (s *service) findPending(ctx context.Context, requestID uuid.UUID) (*models.ReturnRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "return request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
	}
	if req.Status != enums.ReturnStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "return request already resolved").
			WithDetails(map[string]any{"status": req.Status})
	}
	return req, nil
}

func (s *service) resolve(ctx context.Context, req *models.ReturnRequest, updates map[string]any) error {
	moved, err := s.repo.Resolve(ctx, req.ID, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve return request")
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "return request already resolved")
	}
	return nil
}

func findItem(order *models.Order, itemID uuid.UUID) *models.OrderItem {
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return &order.Items[i]
		}
	}
	return nil
}
