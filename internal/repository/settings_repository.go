package repository

import (
	"context"
	"errors"

	"cell-broadcast/internal/domain/provider"
	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresSettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

func (r *PostgresSettingsRepository) Get(ctx context.Context, serviceID uuid.UUID) (provider.ServiceBroadcastSettings, error) {
	var s provider.ServiceBroadcastSettings
	err := r.db.WithContext(ctx).Where("service_id = ?", serviceID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return provider.ServiceBroadcastSettings{}, broadcast_errors.ErrNotFound
		}
		return provider.ServiceBroadcastSettings{}, err
	}
	return s, nil
}

func (r *PostgresSettingsRepository) ListServices(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&provider.ServiceBroadcastSettings{}).
		Pluck("service_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresSettingsRepository) Upsert(ctx context.Context, s *provider.ServiceBroadcastSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"channel", "provider", "updated_at"}),
		}).
		Create(s).Error
}
