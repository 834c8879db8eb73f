package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anshgupta/storekart-backend/pkg/enums"
)

// Coupon is a discount code. UsedCount only moves forward on orders whose
// payment was confirmed (or created as COD pending); failed attempts never
// touch it.
type Coupon struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	Kind          enums.CouponKind   `gorm:"column:kind;type:text;not null;default:'product'"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MaxDiscount   *decimal.Decimal   `gorm:"column:max_discount;type:numeric(12,2)"`
	VendorID      *uuid.UUID         `gorm:"column:vendor_id;type:uuid;index"`
	UsageLimit    *int               `gorm:"column:usage_limit"`
	PerUserLimit  *int               `gorm:"column:per_user_limit"`
	UsedCount     int                `gorm:"column:used_count;not null;default:0"`
	ValidFrom     time.Time          `gorm:"column:valid_from;not null"`
	ValidUntil    time.Time          `gorm:"column:valid_until;not null"`
	IsActive      bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
