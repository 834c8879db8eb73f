package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anshgupta/storekart-backend/pkg/enums"
	"github.com/anshgupta/storekart-backend/pkg/types"
)

// Order freezes the totals computed at checkout. The monetary snapshot is
// never recomputed, even when pricing settings change afterwards. Status and
// PaymentStatus are independent axes driven by the order state machine.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	RawMethod     string              `gorm:"column:raw_method;not null"`

	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CouponDiscount decimal.Decimal `gorm:"column:coupon_discount;type:numeric(12,2);not null;default:0"`
	PlatformFee    decimal.Decimal `gorm:"column:platform_fee;type:numeric(12,2);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0"`
	ShippingCost   decimal.Decimal `gorm:"column:shipping_cost;type:numeric(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`

	CouponID            *uuid.UUID `gorm:"column:coupon_id;type:uuid;index"`
	CouponCode          *string    `gorm:"column:coupon_code"`
	CouponUsageRecorded bool       `gorm:"column:coupon_usage_recorded;not null;default:false"`

	GatewayOrderID   *string `gorm:"column:gateway_order_id;uniqueIndex"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id"`

	ShippingAddress types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`

	Items   []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
