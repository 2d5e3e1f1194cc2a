package history

import (
	"time"

	"cell-broadcast/internal/domain/broadcast"

	"github.com/google/uuid"
)

// BroadcastMessageHistory is an append-only snapshot of a message's editable
// fields. A new row is written only when at least one tracked field differs
// from the latest snapshot.
type BroadcastMessageHistory struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	BroadcastMessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_message_version"`
	Version            int       `gorm:"not null;uniqueIndex:idx_message_version"`

	Reference *string         `gorm:"type:text"`
	Content   string          `gorm:"type:text;not null"`
	Areas     broadcast.Areas `gorm:"serializer:json;type:text"`
	Duration  time.Duration   `gorm:"default:0"`

	CreatedBy broadcast.Actor `gorm:"embedded;embeddedPrefix:created_by_"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (BroadcastMessageHistory) TableName() string {
	return "broadcast_message_history"
}

// Differs reports whether any tracked field changed relative to the message.
func (h *BroadcastMessageHistory) Differs(m *broadcast.BroadcastMessage) bool {
	if h.Content != m.Content || h.Duration != m.Duration {
		return true
	}
	if (h.Reference == nil) != (m.Reference == nil) {
		return true
	}
	if h.Reference != nil && m.Reference != nil && *h.Reference != *m.Reference {
		return true
	}
	return !areasEqual(h.Areas, m.Areas)
}

func areasEqual(a, b broadcast.Areas) bool {
	if len(a.IDs) != len(b.IDs) || len(a.SimplePolygons) != len(b.SimplePolygons) {
		return false
	}
	for i := range a.IDs {
		if a.IDs[i] != b.IDs[i] {
			return false
		}
	}
	for i := range a.SimplePolygons {
		if len(a.SimplePolygons[i]) != len(b.SimplePolygons[i]) {
			return false
		}
		for j := range a.SimplePolygons[i] {
			if len(a.SimplePolygons[i][j]) != len(b.SimplePolygons[i][j]) {
				return false
			}
			for k := range a.SimplePolygons[i][j] {
				if a.SimplePolygons[i][j][k] != b.SimplePolygons[i][j][k] {
					return false
				}
			}
		}
	}
	return true
}

// Snapshot freezes the message's editable fields at the given version.
func Snapshot(m *broadcast.BroadcastMessage, version int, by broadcast.Actor, at time.Time) *BroadcastMessageHistory {
	return &BroadcastMessageHistory{
		ID:                 uuid.New(),
		BroadcastMessageID: m.ID,
		Version:            version,
		Reference:          m.Reference,
		Content:            m.Content,
		Areas:              m.Areas,
		Duration:           m.Duration,
		CreatedBy:          by,
		CreatedAt:          at,
	}
}

// BroadcastMessageEditReason records an operator's free-text justification
// for an edit or rejection, carrying both the editor and the original
// submitter.
type BroadcastMessageEditReason struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BroadcastMessageID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Reason             string          `gorm:"type:text;not null"`
	SubmittedBy        uuid.UUID       `gorm:"type:uuid"`
	CreatedBy          broadcast.Actor `gorm:"embedded;embeddedPrefix:created_by_"`
	CreatedAt          time.Time       `gorm:"not null"`
}

func (BroadcastMessageEditReason) TableName() string {
	return "broadcast_message_edit_reasons"
}
