package event

import (
	"fmt"
	"time"

	"cell-broadcast/internal/domain/broadcast"

	"github.com/google/uuid"
)

// Type is the provider-facing instruction carried by an event.
type Type string

const (
	TypeAlert  Type = "alert"
	TypeUpdate Type = "update"
	TypeCancel Type = "cancel"
)

func (t Type) Valid() bool {
	return t == TypeAlert || t == TypeUpdate || t == TypeCancel
}

// BroadcastEvent is an append-only record of one dispatch-worthy transition.
// The transmitted fields are frozen copies, independent of later edits to
// the owning message.
type BroadcastEvent struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	BroadcastMessageID uuid.UUID `gorm:"type:uuid;not null;index"`

	SentAt      time.Time `gorm:"not null;index"`
	MessageType Type      `gorm:"type:varchar(10);not null"`

	TransmittedContent    string          `gorm:"type:text;not null"`
	TransmittedAreas      broadcast.Areas `gorm:"serializer:json;type:text"`
	TransmittedSender     string          `gorm:"type:text;not null"`
	TransmittedStartsAt   *time.Time
	TransmittedFinishesAt *time.Time
}

func (BroadcastEvent) TableName() string {
	return "broadcast_events"
}

// CAPTimeFormat renders timestamps per CAP 1.2 §3.3.2: the zone offset
// always carries a colon.
const CAPTimeFormat = "2006-01-02T15:04:05-07:00"

// Reference renders this event's CAP reference: {domain}/{event-id},{sent}.
func (e *BroadcastEvent) Reference(domain string) string {
	return fmt.Sprintf("%s/%s,%s", domain, e.ID, e.SentAt.Format(CAPTimeFormat))
}
