package broadcast

import (
	"time"

	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
)

// Areas names the targeted warning areas and carries their polygon rings.
// Each polygon is an ordered list of [lat, lng] vertices.
type Areas struct {
	IDs            []string      `json:"ids"`
	SimplePolygons [][][]float64 `json:"simple_polygons"`
}

// BroadcastMessage is the aggregate root of the broadcast lifecycle.
// A message is built either from a template reference or from free-form
// content plus a reference, never both.
type BroadcastMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ServiceID uuid.UUID `gorm:"type:uuid;not null;index"`

	TemplateID      *uuid.UUID `gorm:"type:uuid"`
	TemplateVersion *int
	Reference       *string `gorm:"type:text"`

	// Content is the rendered message text actually broadcast.
	Content string `gorm:"type:text;not null"`
	Areas   Areas  `gorm:"serializer:json;type:text"`

	Status   Status        `gorm:"type:varchar(20);not null;default:'draft';index"`
	Duration time.Duration `gorm:"default:0"`

	StartsAt   *time.Time
	FinishesAt *time.Time

	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
	ApprovedAt  *time.Time
	CancelledAt *time.Time

	CreatedBy   Actor `gorm:"embedded;embeddedPrefix:created_by_"`
	ApprovedBy  Actor `gorm:"embedded;embeddedPrefix:approved_by_"`
	CancelledBy Actor `gorm:"embedded;embeddedPrefix:cancelled_by_"`

	// Stubbed mirrors the owning service's training mode at creation time;
	// provider messages are recorded but never transmitted.
	Stubbed bool `gorm:"default:false"`

	FinishedGovukAcknowledged bool `gorm:"default:false"`
}

func (BroadcastMessage) TableName() string {
	return "broadcast_messages"
}

// Validate enforces the content-source invariant: exactly one of a template
// reference or free-form content+reference.
func (m *BroadcastMessage) Validate() error {
	fromTemplate := m.TemplateID != nil
	freeForm := m.Reference != nil
	if fromTemplate == freeForm {
		return broadcast_errors.ErrInvalidInput
	}
	if fromTemplate && m.TemplateVersion == nil {
		return broadcast_errors.ErrInvalidInput
	}
	if !m.Status.Valid() {
		return broadcast_errors.ErrInvalidInput
	}
	return nil
}

// Finished reports whether the message no longer needs airtime: cancelled,
// completed, or broadcasting past its finish time.
func (m *BroadcastMessage) Finished(now time.Time) bool {
	switch m.Status {
	case StatusCancelled, StatusCompleted:
		return true
	case StatusBroadcasting:
		return m.FinishesAt != nil && m.FinishesAt.Before(now)
	default:
		return false
	}
}
