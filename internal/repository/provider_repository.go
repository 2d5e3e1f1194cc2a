package repository

import (
	"context"
	"errors"
	"time"

	"cell-broadcast/internal/domain/provider"
	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const counterID = 1

type PostgresProviderRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &PostgresProviderRepository{db: db}
}

func (r *PostgresProviderRepository) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PostgresProviderRepository) CreateMessage(ctx context.Context, tx *gorm.DB, pm *provider.BroadcastProviderMessage) error {
	res := r.handle(tx).WithContext(ctx).Create(pm)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return broadcast_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresProviderRepository) GetMessage(ctx context.Context, id uuid.UUID) (provider.BroadcastProviderMessage, error) {
	var pm provider.BroadcastProviderMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&pm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return provider.BroadcastProviderMessage{}, broadcast_errors.ErrNotFound
		}
		return provider.BroadcastProviderMessage{}, err
	}
	return pm, nil
}

func (r *PostgresProviderRepository) FindByEventAndProvider(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, p provider.Provider) (provider.BroadcastProviderMessage, error) {
	var pm provider.BroadcastProviderMessage
	err := r.handle(tx).WithContext(ctx).
		Where("broadcast_event_id = ? AND provider = ?", eventID, p).
		First(&pm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return provider.BroadcastProviderMessage{}, broadcast_errors.ErrNotFound
		}
		return provider.BroadcastProviderMessage{}, err
	}
	return pm, nil
}

func (r *PostgresProviderRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]provider.BroadcastProviderMessage, error) {
	var pms []provider.BroadcastProviderMessage
	err := r.db.WithContext(ctx).
		Where("broadcast_event_id = ?", eventID).
		Order("provider ASC").
		Find(&pms).Error
	if err != nil {
		return nil, err
	}
	return pms, nil
}

func (r *PostgresProviderRepository) ApplyCallback(ctx context.Context, id uuid.UUID, status provider.DeliveryStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&provider.BroadcastProviderMessage{}).
		Where("id = ? AND status = ?", id, provider.StatusSending).
		Updates(map[string]any{"status": status, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresProviderRepository) EnsureCounter(ctx context.Context) error {
	counter := provider.SequenceCounter{ID: counterID, Value: 0}
	return r.db.WithContext(ctx).FirstOrCreate(&counter, provider.SequenceCounter{ID: counterID}).Error
}

// AllocateSequence bumps the single counter row and reads the new value
// within the same handle. Under postgres the row stays locked until the
// surrounding transaction commits, so concurrent allocations serialize.
func (r *PostgresProviderRepository) AllocateSequence(ctx context.Context, tx *gorm.DB) (int64, error) {
	db := r.handle(tx).WithContext(ctx)
	res := db.Model(&provider.SequenceCounter{}).
		Where("id = ?", counterID).
		Update("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, broadcast_errors.ErrNotFound
	}
	var counter provider.SequenceCounter
	if err := db.Where("id = ?", counterID).First(&counter).Error; err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (r *PostgresProviderRepository) CreateMessageNumber(ctx context.Context, tx *gorm.DB, providerMessageID uuid.UUID, number int64) error {
	n := provider.BroadcastProviderMessageNumber{
		BroadcastProviderMessageID: providerMessageID,
		Number:                     number,
	}
	res := r.handle(tx).WithContext(ctx).Create(&n)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return broadcast_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresProviderRepository) GetMessageNumber(ctx context.Context, providerMessageID uuid.UUID) (int64, error) {
	var n provider.BroadcastProviderMessageNumber
	err := r.db.WithContext(ctx).
		Where("broadcast_provider_message_id = ?", providerMessageID).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, broadcast_errors.ErrNotFound
		}
		return 0, err
	}
	return n.Number, nil
}

const providerMessagesForBroadcast = `
	SELECT id FROM broadcast_provider_messages
	WHERE broadcast_event_id IN (
		SELECT id FROM broadcast_events WHERE broadcast_message_id = ?
	)`

func (r *PostgresProviderRepository) CountMessagesForBroadcast(ctx context.Context, messageID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM ("+providerMessagesForBroadcast+") AS pm", messageID).
		Scan(&count).Error
	return count, err
}

func (r *PostgresProviderRepository) CountNumbersForBroadcast(ctx context.Context, messageID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM broadcast_provider_message_numbers WHERE broadcast_provider_message_id IN ("+providerMessagesForBroadcast+")", messageID).
		Scan(&count).Error
	return count, err
}

func (r *PostgresProviderRepository) DeleteMessagesForBroadcast(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (int64, error) {
	res := r.handle(tx).WithContext(ctx).
		Exec("DELETE FROM broadcast_provider_messages WHERE broadcast_event_id IN (SELECT id FROM broadcast_events WHERE broadcast_message_id = ?)", messageID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresProviderRepository) DeleteNumbersForBroadcast(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (int64, error) {
	res := r.handle(tx).WithContext(ctx).
		Exec("DELETE FROM broadcast_provider_message_numbers WHERE broadcast_provider_message_id IN ("+providerMessagesForBroadcast+")", messageID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
