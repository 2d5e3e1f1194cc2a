package broadcast

import "github.com/google/uuid"

// ActorType distinguishes human operators from API keys.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorAPIKey ActorType = "api_key"
)

// Actor identifies who performed an action: exactly one of a user id or an
// API-key id. The zero value means "nobody".
type Actor struct {
	Type ActorType `gorm:"column:type;type:varchar(10)" json:"type"`
	ID   uuid.UUID `gorm:"column:id;type:uuid" json:"id"`
}

func UserActor(id uuid.UUID) Actor {
	return Actor{Type: ActorUser, ID: id}
}

func APIKeyActor(id uuid.UUID) Actor {
	return Actor{Type: ActorAPIKey, ID: id}
}

func (a Actor) IsZero() bool {
	return a.ID == uuid.Nil
}

func (a Actor) Valid() bool {
	return !a.IsZero() && (a.Type == ActorUser || a.Type == ActorAPIKey)
}
