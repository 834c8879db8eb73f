package orders

import (
	"context"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository encapsulates order persistence. History rows are append-only;
// nothing here updates or deletes them.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create persists the order together with its items and initial history row.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads an order with its items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).
		Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByGatewayOrderID loads the order a gateway callback refers to.
func (r *Repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "gateway_order_id = ?", gatewayOrderID).
		Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListForUser returns the user's orders, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).
		Error; err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionStatus flips the fulfillment status only when the order is
// still in one of the allowed source states. The bool reports whether the
// row moved, which is what makes concurrent transitions safe without
// explicit row locks.
func (r *Repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error) {
	sources := make([]string, 0, len(from))
	for _, s := range from {
		sources = append(sources, s.String())
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, sources).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPaid applies the payment-completion columns only while payment is
// still pending and the order was not cancelled in the meantime. The bool
// reports whether the row moved; a miss means a concurrent transition won.
func (r *Repository) MarkPaid(ctx context.Context, orderID uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND status <> ?",
			orderID, enums.PaymentStatusPending.String(), enums.OrderStatusCancelled.String()).
		UpdateColumns(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendHistory adds one audit row for a transition.
func (r *Repository) AppendHistory(ctx context.Context, row *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ListHistory returns the audit trail oldest first.
func (r *Repository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimItemDecrement flips stock_decremented to the given value only when
// the row currently holds the opposite, reporting whether this call owns
// the flip. Reserve/release decisions key off the claim, not off a possibly
// stale in-memory flag, so a payment completion and a cancellation racing
// on the same line settle on exactly one stock mutation each way.
func (r *Repository) ClaimItemDecrement(ctx context.Context, itemID uuid.UUID, decremented bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND stock_decremented = ?", itemID, !decremented).
		UpdateColumn("stock_decremented", decremented)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
