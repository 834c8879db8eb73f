package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Eligibility failure reasons, surfaced to the caller verbatim.
const (
	ReasonInactive      = "coupon is inactive"
	ReasonNotStarted    = "coupon is not yet valid"
	ReasonExpired       = "coupon has expired"
	ReasonGlobalCapHit  = "coupon usage limit reached"
	ReasonPerUserCapHit = "coupon already used the maximum number of times"
)

// ServiceParams groups dependencies for the coupon service.
type ServiceParams struct {
	Repo *Repository

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service exposes coupon eligibility, discount computation and usage
// recording. Discount computation is pure; RecordUsage is the only write.
type Service interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	CanBeUsedBy(ctx context.Context, coupon *models.Coupon, userID uuid.UUID) (bool, string, error)
	CalculateDiscount(coupon *models.Coupon, baseAmount decimal.Decimal, vendorScopedAmount *decimal.Decimal) (decimal.Decimal, error)
	RecordUsage(ctx context.Context, couponID uuid.UUID) error
	WithTx(tx *gorm.DB) Service
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds a coupon service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon repo is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, now: now}, nil
}

// WithTx rebinds the service to a transaction.
func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

// FindByCode resolves a coupon code to its row.
func (s *service) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	return coupon, nil
}

// CanBeUsedBy runs the validity checks in order and short-circuits on the
// first failure. The returned reason is empty when the coupon is usable.
func (s *service) CanBeUsedBy(ctx context.Context, coupon *models.Coupon, userID uuid.UUID) (bool, string, error) {
	if coupon == nil {
		return false, "", pkgerrors.New(pkgerrors.CodeValidation, "coupon is required")
	}
	if userID == uuid.Nil {
		return false, "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	if !coupon.IsActive {
		return false, ReasonInactive, nil
	}

	now := s.now()
	if now.Before(coupon.ValidFrom) {
		return false, ReasonNotStarted, nil
	}
	if now.After(coupon.ValidUntil) {
		return false, ReasonExpired, nil
	}

	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return false, ReasonGlobalCapHit, nil
	}

	if coupon.PerUserLimit != nil {
		used, err := s.repo.CountCompletedOrdersWithCoupon(ctx, coupon.ID, userID)
		if err != nil {
			return false, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usage")
		}
		if used >= int64(*coupon.PerUserLimit) {
			return false, ReasonPerUserCapHit, nil
		}
	}

	return true, "", nil
}

// CalculateDiscount computes the discount amount against the given base.
// Product coupons discount the product subtotal (or only the scoped
// vendor's lines, passed as vendorScopedAmount). Seller coupons discount
// the fee+tax component; the caller passes that sum as baseAmount. The
// result never exceeds the base.
func (s *service) CalculateDiscount(coupon *models.Coupon, baseAmount decimal.Decimal, vendorScopedAmount *decimal.Decimal) (decimal.Decimal, error) {
	if coupon == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "coupon is required")
	}
	if baseAmount.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "base amount must not be negative")
	}

	base := money.Round2(baseAmount)
	if coupon.Kind != enums.CouponKindSeller && coupon.VendorID != nil {
		if vendorScopedAmount == nil {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "vendor scoped amount is required for vendor coupons")
		}
		base = money.Round2(*vendorScopedAmount)
		if base.IsZero() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponIneligible, "no eligible items for this coupon").
				WithDetails(map[string]any{"coupon_code": coupon.Code})
		}
		if base.IsNegative() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "vendor scoped amount must not be negative")
		}
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = money.Percent(base, coupon.DiscountValue)
		if coupon.MaxDiscount != nil {
			discount = money.Min(discount, money.Round2(*coupon.MaxDiscount))
		}
	case enums.DiscountTypeFixed:
		discount = money.Min(money.Round2(coupon.DiscountValue), base)
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown discount type").
			WithDetails(map[string]any{"discount_type": string(coupon.DiscountType)})
	}

	return money.Min(money.NonNegative(discount), base), nil
}

// RecordUsage bumps the coupon's global usage counter. It is called only
// after an order is durably created in a confirmed or COD-pending state.
func (s *service) RecordUsage(ctx context.Context, couponID uuid.UUID) error {
	if couponID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon id is required")
	}
	bumped, err := s.repo.IncrementUsage(ctx, couponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !bumped {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")
	}
	return nil
}
