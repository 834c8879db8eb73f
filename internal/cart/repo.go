package cart

import (
	"context"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository encapsulates cart persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindLine loads the user's line for a product/variant pair if present.
func (r *Repository) FindLine(ctx context.Context, userID, productID uuid.UUID, variantID *uuid.UUID) (*models.CartItem, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}

	var item models.CartItem
	if err := query.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByID loads a line owned by the user.
func (r *Repository) FindByID(ctx context.Context, userID, lineID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		First(&item, "id = ? AND user_id = ?", lineID, userID).
		Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListForUser returns the user's cart lines, oldest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).
		Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Create inserts a new line.
func (r *Repository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateQuantity overwrites a line's quantity.
func (r *Repository) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", lineID).
		UpdateColumn("quantity", quantity).
		Error
}

// Delete removes a line.
func (r *Repository) Delete(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.CartItem{}, "id = ?", lineID).
		Error
}

// DeleteAllForUser empties the user's cart.
func (r *Repository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.CartItem{}, "user_id = ?", userID).
		Error
}
