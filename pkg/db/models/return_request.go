package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anshgupta/storekart-backend/pkg/enums"
)

// ReturnRequest is a customer's return claim against a delivered order
// item, reviewable within a fixed window after delivery.
type ReturnRequest struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID  uuid.UUID          `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex"`
	UserID       uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Reason       string             `gorm:"column:reason;not null"`
	Status       enums.ReturnStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RefundAmount *decimal.Decimal   `gorm:"column:refund_amount;type:numeric(12,2)"`
	ReviewNote   *string            `gorm:"column:review_note"`
	ResolvedAt   *time.Time         `gorm:"column:resolved_at"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *ReturnRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
