package repository

import (
	"context"
	"errors"

	"cell-broadcast/internal/domain/history"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresHistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

func (r *PostgresHistoryRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PostgresHistoryRepository) Latest(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (*history.BroadcastMessageHistory, error) {
	var h history.BroadcastMessageHistory
	err := r.handle(tx).WithContext(ctx).
		Where("broadcast_message_id = ?", messageID).
		Order("version DESC").
		First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

func (r *PostgresHistoryRepository) CreateSnapshot(ctx context.Context, tx *gorm.DB, h *history.BroadcastMessageHistory) error {
	return r.handle(tx).WithContext(ctx).Create(h).Error
}

func (r *PostgresHistoryRepository) ListSnapshots(ctx context.Context, messageID uuid.UUID) ([]history.BroadcastMessageHistory, error) {
	var snapshots []history.BroadcastMessageHistory
	err := r.db.WithContext(ctx).
		Where("broadcast_message_id = ?", messageID).
		Order("version ASC").
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *PostgresHistoryRepository) CreateEditReason(ctx context.Context, tx *gorm.DB, reason *history.BroadcastMessageEditReason) error {
	return r.handle(tx).WithContext(ctx).Create(reason).Error
}

func (r *PostgresHistoryRepository) CountForMessage(ctx context.Context, messageID uuid.UUID) (int64, int64, error) {
	var snapshots, reasons int64
	err := r.db.WithContext(ctx).
		Model(&history.BroadcastMessageHistory{}).
		Where("broadcast_message_id = ?", messageID).
		Count(&snapshots).Error
	if err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).
		Model(&history.BroadcastMessageEditReason{}).
		Where("broadcast_message_id = ?", messageID).
		Count(&reasons).Error
	if err != nil {
		return 0, 0, err
	}
	return snapshots, reasons, nil
}

func (r *PostgresHistoryRepository) DeleteForMessage(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (int64, int64, error) {
	db := r.handle(tx).WithContext(ctx)
	res := db.Delete(&history.BroadcastMessageHistory{}, "broadcast_message_id = ?", messageID)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	snapshots := res.RowsAffected
	res = db.Delete(&history.BroadcastMessageEditReason{}, "broadcast_message_id = ?", messageID)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	return snapshots, res.RowsAffected, nil
}
