package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SavedCard stores a gateway-issued card token. Rows are upserted keyed by
// TokenID so callback replays cannot duplicate them, and only tokens the
// gateway reported as active are ever persisted.
type SavedCard struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	TokenID           string    `gorm:"column:token_id;not null;uniqueIndex"`
	GatewayCustomerID string    `gorm:"column:gateway_customer_id;not null"`
	Last4             *string   `gorm:"column:last4"`
	Network           *string   `gorm:"column:network"`
	Preferred         bool      `gorm:"column:preferred;not null;default:false"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *SavedCard) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
