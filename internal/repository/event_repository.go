package repository

import (
	"context"
	"errors"

	"cell-broadcast/internal/domain/event"
	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresEventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PostgresEventRepository) Create(ctx context.Context, tx *gorm.DB, e *event.BroadcastEvent) error {
	res := r.handle(tx).WithContext(ctx).Create(e)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return broadcast_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresEventRepository) GetByID(ctx context.Context, id uuid.UUID) (event.BroadcastEvent, error) {
	var e event.BroadcastEvent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return event.BroadcastEvent{}, broadcast_errors.ErrNotFound
		}
		return event.BroadcastEvent{}, err
	}
	return e, nil
}

func (r *PostgresEventRepository) ListByMessage(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) ([]event.BroadcastEvent, error) {
	var events []event.BroadcastEvent
	err := r.handle(tx).WithContext(ctx).
		Where("broadcast_message_id = ?", messageID).
		Order("sent_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PostgresEventRepository) ResolveMessageByEvents(ctx context.Context, ids []uuid.UUID) (uuid.UUID, error) {
	if len(ids) == 0 {
		return uuid.Nil, broadcast_errors.ErrNotFound
	}
	var e event.BroadcastEvent
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("sent_at ASC").
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, broadcast_errors.ErrNotFound
		}
		return uuid.Nil, err
	}
	return e.BroadcastMessageID, nil
}

func (r *PostgresEventRepository) CountForMessage(ctx context.Context, messageID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&event.BroadcastEvent{}).
		Where("broadcast_message_id = ?", messageID).
		Count(&count).Error
	return count, err
}

func (r *PostgresEventRepository) DeleteForMessage(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (int64, error) {
	res := r.handle(tx).WithContext(ctx).
		Delete(&event.BroadcastEvent{}, "broadcast_message_id = ?", messageID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
