package httpdto

import (
	"time"

	"cell-broadcast/internal/domain/broadcast"

	"github.com/google/uuid"
)

// ActorRequest identifies the acting user or API key; exactly one id is set.
type ActorRequest struct {
	UserID   *uuid.UUID `json:"user_id,omitempty"`
	APIKeyID *uuid.UUID `json:"api_key_id,omitempty"`
}

func (a ActorRequest) ToActor() broadcast.Actor {
	switch {
	case a.UserID != nil && a.APIKeyID == nil:
		return broadcast.UserActor(*a.UserID)
	case a.APIKeyID != nil && a.UserID == nil:
		return broadcast.APIKeyActor(*a.APIKeyID)
	default:
		return broadcast.Actor{}
	}
}

type CreateBroadcastRequest struct {
	ServiceID       uuid.UUID         `json:"service_id" binding:"required"`
	TemplateID      *uuid.UUID        `json:"template_id,omitempty"`
	TemplateVersion *int              `json:"template_version,omitempty"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Content         string            `json:"content,omitempty"`
	Reference       *string           `json:"reference,omitempty"`
	Areas           broadcast.Areas   `json:"areas"`
	DurationSeconds int64             `json:"duration_seconds,omitempty"`
	StartsAt        *time.Time        `json:"starts_at,omitempty"`
	FinishesAt      *time.Time        `json:"finishes_at,omitempty"`
	CreatedBy       ActorRequest      `json:"created_by" binding:"required"`
}

type TransitionRequest struct {
	Status broadcast.Status `json:"status" binding:"required"`
	Actor  ActorRequest     `json:"actor" binding:"required"`
	Reason string           `json:"reason,omitempty"`
}

type UpdateContentRequest struct {
	Content         *string          `json:"content,omitempty"`
	Reference       *string          `json:"reference,omitempty"`
	Areas           *broadcast.Areas `json:"areas,omitempty"`
	DurationSeconds *int64           `json:"duration_seconds,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Actor           ActorRequest     `json:"actor" binding:"required"`
}

type UpdateScheduleRequest struct {
	StartsAt   *time.Time   `json:"starts_at,omitempty"`
	FinishesAt *time.Time   `json:"finishes_at,omitempty"`
	Actor      ActorRequest `json:"actor" binding:"required"`
}

type CallbackRequest struct {
	Status string `json:"status" binding:"required"`
}
