package payments

import (
	"context"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository encapsulates gateway-customer and saved-card persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a payments repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindUser loads the user a gateway identity is created for.
func (r *Repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindGatewayCustomer returns the stored gateway identity for a user.
func (r *Repository) FindGatewayCustomer(ctx context.Context, userID uuid.UUID) (*models.GatewayCustomer, error) {
	var row models.GatewayCustomer
	if err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveGatewayCustomer persists or replaces the user's gateway identity.
func (r *Repository) SaveGatewayCustomer(ctx context.Context, row *models.GatewayCustomer) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"customer_id", "updated_at"}),
		}).
		Create(row).
		Error
}

// UpsertSavedCard inserts or refreshes a token keyed by token_id. The
// preferred flag is only written at insert time; replays never flip an
// existing preference.
func (r *Repository) UpsertSavedCard(ctx context.Context, card *models.SavedCard) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"gateway_customer_id", "last4", "network", "updated_at"}),
		}).
		Create(card).
		Error
}

// HasPreferredCard reports whether the user already has a default token.
func (r *Repository) HasPreferredCard(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SavedCard{}).
		Where("user_id = ? AND preferred = ?", userID, true).
		Count(&count).
		Error
	return count > 0, err
}

// ListSavedCards returns the user's saved tokens, preferred first.
func (r *Repository) ListSavedCards(ctx context.Context, userID uuid.UUID) ([]models.SavedCard, error) {
	var cards []models.SavedCard
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("preferred DESC, created_at ASC").
		Find(&cards).
		Error; err != nil {
		return nil, err
	}
	return cards, nil
}
