package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable item. When variants exist, price and stock live on
// the variant rows and the product-level fields are informational only.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	VendorID    uuid.UUID        `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name        string           `gorm:"column:name;not null"`
	SKU         string           `gorm:"column:sku;not null;uniqueIndex"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	OldPrice    *decimal.Decimal `gorm:"column:old_price;type:numeric(12,2)"`
	StockQty    int              `gorm:"column:stock_qty;not null;default:0"`
	IsInStock   bool             `gorm:"column:is_in_stock;not null;default:false"`
	HasVariants bool             `gorm:"column:has_variants;not null;default:false"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []Variant        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
