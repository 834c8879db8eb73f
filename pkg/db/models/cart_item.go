package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one line in a user's single active cart. A product with
// variants must be carted through one of its variant rows.
type CartItem struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index:idx_cart_user_line,unique"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index:idx_cart_user_line,unique"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid;index:idx_cart_user_line,unique"`
	Quantity  int        `gorm:"column:quantity;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
