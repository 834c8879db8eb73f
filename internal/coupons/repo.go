package coupons

import (
	"context"
	"strings"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository encapsulates coupon persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a coupon repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByCode loads a coupon by its code, case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		Where("LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).
		First(&coupon).
		Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// FindByID loads a coupon by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).First(&coupon, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// CountCompletedOrdersWithCoupon counts the user's orders that redeemed the
// coupon. Cancelled orders and orders that never recorded the usage do not
// count against the per-user cap.
func (r *Repository) CountCompletedOrdersWithCoupon(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("coupon_id = ? AND user_id = ? AND coupon_usage_recorded = ? AND status <> ?",
			couponID, userID, true, enums.OrderStatusCancelled.String()).
		Count(&count).
		Error
	return count, err
}

// IncrementUsage bumps used_count if the global cap still has room. The
// returned bool reports whether the increment happened.
func (r *Repository) IncrementUsage(ctx context.Context, couponID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
