package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Variant carries the purchasable price and stock for a product option.
// IsInStock is derived from StockQty and is only ever written together
// with a stock quantity change.
type Variant struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	Color     *string          `gorm:"column:color"`
	Size      *string          `gorm:"column:size"`
	Pattern   *string          `gorm:"column:pattern"`
	Price     decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	OldPrice  *decimal.Decimal `gorm:"column:old_price;type:numeric(12,2)"`
	StockQty  int              `gorm:"column:stock_qty;not null;default:0"`
	IsInStock bool             `gorm:"column:is_in_stock;not null;default:false"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Variant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
