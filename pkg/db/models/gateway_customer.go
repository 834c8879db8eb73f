package models

import (
	"time"

	"github.com/google/uuid"
)

// GatewayCustomer pins a user's identity on the payment gateway. The
// mapping is created once and reused on every checkout so the gateway
// identity stays stable regardless of the shipping details entered.
type GatewayCustomer struct {
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	CustomerID string    `gorm:"column:customer_id;not null;uniqueIndex"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
