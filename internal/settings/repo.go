package settings

import (
	"context"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	"github.com/anshgupta/storekart-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository encapsulates settings persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a settings repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Find returns the stored setting row for a key.
func (r *Repository) Find(ctx context.Context, key enums.SettingKey) (*models.Setting, error) {
	var row models.Setting
	if err := r.db.WithContext(ctx).
		Where("key = ?", key.String()).
		First(&row).
		Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindAll loads every stored setting keyed by name.
func (r *Repository) FindAll(ctx context.Context) (map[enums.SettingKey]string, error) {
	var rows []models.Setting
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.SettingKey]string, len(rows))
	for _, row := range rows {
		out[enums.SettingKey(row.Key)] = row.Value
	}
	return out, nil
}

// Upsert writes a setting value, inserting or overwriting in place.
func (r *Repository) Upsert(ctx context.Context, key enums.SettingKey, value string) error {
	row := models.Setting{Key: key.String(), Value: value}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).
		Error
}
