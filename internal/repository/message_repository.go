package repository

import (
	"context"
	"errors"
	"time"

	"cell-broadcast/internal/domain/broadcast"
	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PostgresMessageRepository) Create(ctx context.Context, tx *gorm.DB, m *broadcast.BroadcastMessage) error {
	res := r.handle(tx).WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return broadcast_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (broadcast.BroadcastMessage, error) {
	var m broadcast.BroadcastMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return broadcast.BroadcastMessage{}, broadcast_errors.ErrNotFound
		}
		return broadcast.BroadcastMessage{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) UpdateStatusGuarded(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to broadcast.Status, set map[string]any, now time.Time) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": now}
	for k, v := range set {
		updates[k] = v
	}
	res := r.handle(tx).WithContext(ctx).
		Model(&broadcast.BroadcastMessage{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// editableColumns are the fields an operator may change pre-broadcast.
var editableColumns = []string{"content", "reference", "areas", "duration", "starts_at", "finishes_at", "updated_at"}

func (r *PostgresMessageRepository) SaveEditableGuarded(ctx context.Context, tx *gorm.DB, m *broadcast.BroadcastMessage) (bool, error) {
	pre := []broadcast.Status{broadcast.StatusDraft, broadcast.StatusPendingApproval, broadcast.StatusRejected}
	res := r.handle(tx).WithContext(ctx).
		Model(&broadcast.BroadcastMessage{}).
		Where("id = ? AND status IN ?", m.ID, pre).
		Select(editableColumns).
		Updates(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresMessageRepository) ListExpired(ctx context.Context, now time.Time) ([]broadcast.BroadcastMessage, error) {
	var messages []broadcast.BroadcastMessage
	err := r.db.WithContext(ctx).
		Where("status = ? AND finishes_at IS NOT NULL AND finishes_at < ?", broadcast.StatusBroadcasting, now).
		Order("finishes_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) ListOutstanding(ctx context.Context, now time.Time) ([]broadcast.BroadcastMessage, error) {
	var messages []broadcast.BroadcastMessage
	err := r.db.WithContext(ctx).
		Where("finished_govuk_acknowledged = ?", false).
		Where(
			r.db.Where("status IN ?", []broadcast.Status{broadcast.StatusCancelled, broadcast.StatusCompleted}).
				Or("status = ? AND finishes_at IS NOT NULL AND finishes_at < ?", broadcast.StatusBroadcasting, now),
		).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) MarkAcknowledged(ctx context.Context, id uuid.UUID, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&broadcast.BroadcastMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{"finished_govuk_acknowledged": true, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return broadcast_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) ListPurgeCandidates(ctx context.Context, serviceID uuid.UUID, olderThan time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&broadcast.BroadcastMessage{}).
		Where("service_id = ? AND created_at < ? AND status <> ?", serviceID, olderThan, broadcast.StatusTechnicalFailure).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresMessageRepository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int64, error) {
	res := r.handle(tx).WithContext(ctx).Delete(&broadcast.BroadcastMessage{}, "id = ?", id)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
