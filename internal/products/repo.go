// Package products holds read access to the live catalog. Order lines
// freeze price and attributes at checkout; nothing here is consulted for
// an order after creation.
package products

import (
	"context"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository encapsulates catalog reads.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a product repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads a product row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariant loads a variant and checks it belongs to the product.
func (r *Repository) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := r.db.WithContext(ctx).
		First(&variant, "id = ? AND product_id = ?", variantID, productID).
		Error; err != nil {
		return nil, err
	}
	return &variant, nil
}
