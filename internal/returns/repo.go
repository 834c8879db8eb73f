package returns

import (
	"context"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists return requests.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, req *models.ReturnRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByOrderItem returns the request filed against an order item, if any.
func (r *Repository) FindByOrderItem(ctx context.Context, orderItemID uuid.UUID) (*models.ReturnRequest, error) {
	var req models.ReturnRequest
	if err := r.db.WithContext(ctx).First(&req, "order_item_id = ?", orderItemID).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ReturnRequest, error) {
	var reqs []models.ReturnRequest
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reqs).
		Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *Repository) ListPending(ctx context.Context) ([]models.ReturnRequest, error) {
	var reqs []models.ReturnRequest
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.ReturnStatusPending).
		Order("created_at ASC").
		Find(&reqs).
		Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// Resolve moves a pending request to a terminal status. The status guard in
// the WHERE clause makes concurrent reviews settle on exactly one outcome.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", id, enums.ReturnStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
