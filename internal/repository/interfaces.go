package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/domain/event"
	"cell-broadcast/internal/domain/history"
	"cell-broadcast/internal/domain/provider"
)

// Methods that must join a caller-owned transaction take tx; nil falls back
// to the repository's own handle.

type MessageRepository interface {
	Create(ctx context.Context, tx *gorm.DB, m *broadcast.BroadcastMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (broadcast.BroadcastMessage, error)

	// UpdateStatusGuarded moves a message from one status to another,
	// applying extra column updates in the same statement. Returns false
	// when a concurrent transition already moved the message off `from`.
	UpdateStatusGuarded(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to broadcast.Status, set map[string]any, now time.Time) (bool, error)

	// SaveEditableGuarded persists the message's editable fields only
	// while the row is still pre-broadcast. Returns false when a
	// concurrent transition has frozen the message; the status column
	// itself is never written.
	SaveEditableGuarded(ctx context.Context, tx *gorm.DB, m *broadcast.BroadcastMessage) (bool, error)

	ListExpired(ctx context.Context, now time.Time) ([]broadcast.BroadcastMessage, error)
	ListOutstanding(ctx context.Context, now time.Time) ([]broadcast.BroadcastMessage, error)
	MarkAcknowledged(ctx context.Context, id uuid.UUID, now time.Time) error

	ListPurgeCandidates(ctx context.Context, serviceID uuid.UUID, olderThan time.Time) ([]uuid.UUID, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) (int64, error)
}

type EventRepository interface {
	Create(ctx context.Context, tx *gorm.DB, e *event.BroadcastEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (event.BroadcastEvent, error)
	// ListByMessage returns all events for a message ordered by sent_at
	// ascending, id as a deterministic tiebreak.
	ListByMessage(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) ([]event.BroadcastEvent, error)
	// ResolveMessageByEvents returns the owning message id of the first
	// event found among the given ids.
	ResolveMessageByEvents(ctx context.Context, ids []uuid.UUID) (uuid.UUID, error)

	CountForMessage(ctx context.Context, messageID uuid.UUID) (int64, error)
	DeleteForMessage(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (int64, error)
}

type ProviderRepository interface {
	CreateMessage(ctx context.Context, tx *gorm.DB, pm *provider.BroadcastProviderMessage) error
	GetMessage(ctx context.Context, id uuid.UUID) (provider.BroadcastProviderMessage, error)
	FindByEventAndProvider(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, p provider.Provider) (provider.BroadcastProviderMessage, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]provider.BroadcastProviderMessage, error)

	// ApplyCallback writes a terminal delivery status. Returns false when
	// the record is no longer in the sending state.
	ApplyCallback(ctx context.Context, id uuid.UUID, status provider.DeliveryStatus, now time.Time) (bool, error)

	EnsureCounter(ctx context.Context) error
	// AllocateSequence hands out the next global message number. The
	// counter row update serializes concurrent allocators.
	AllocateSequence(ctx context.Context, tx *gorm.DB) (int64, error)
	CreateMessageNumber(ctx context.Context, tx *gorm.DB, providerMessageID uuid.UUID, number int64) error
	GetMessageNumber(ctx context.Context, providerMessageID uuid.UUID) (int64, error)

	CountMessagesForBroadcast(ctx context.Context, messageID uuid.UUID) (int64, error)
	CountNumbersForBroadcast(ctx context.Context, messageID uuid.UUID) (int64, error)
	DeleteMessagesForBroadcast(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (int64, error)
	DeleteNumbersForBroadcast(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (int64, error)
}

type HistoryRepository interface {
	// Latest returns the newest snapshot, or nil when none exists.
	Latest(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (*history.BroadcastMessageHistory, error)
	CreateSnapshot(ctx context.Context, tx *gorm.DB, h *history.BroadcastMessageHistory) error
	ListSnapshots(ctx context.Context, messageID uuid.UUID) ([]history.BroadcastMessageHistory, error)

	CreateEditReason(ctx context.Context, tx *gorm.DB, r *history.BroadcastMessageEditReason) error

	CountForMessage(ctx context.Context, messageID uuid.UUID) (int64, int64, error)
	DeleteForMessage(ctx context.Context, tx *gorm.DB, messageID uuid.UUID) (int64, int64, error)
}

type SettingsRepository interface {
	Get(ctx context.Context, serviceID uuid.UUID) (provider.ServiceBroadcastSettings, error)
	ListServices(ctx context.Context) ([]uuid.UUID, error)
	Upsert(ctx context.Context, s *provider.ServiceBroadcastSettings) error
}
