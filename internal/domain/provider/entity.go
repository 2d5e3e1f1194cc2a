package provider

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies a cell-broadcast network provider.
type Provider string

const (
	ProviderEE       Provider = "ee"
	ProviderVodafone Provider = "vodafone"
	ProviderThree    Provider = "three"
	ProviderO2       Provider = "o2"
)

// RequiresSequence reports whether the provider's CBC dialect demands a
// numeric message sequence. Only the IBAG-speaking appliance does.
func (p Provider) RequiresSequence() bool {
	return p == ProviderVodafone
}

// RestrictionAll means a service dispatches to every configured provider.
const RestrictionAll = "all"

// DeliveryStatus tracks one provider message through transmission.
type DeliveryStatus string

const (
	StatusSending          DeliveryStatus = "sending"
	StatusReturnedAck      DeliveryStatus = "returned-ack"
	StatusReturnedError    DeliveryStatus = "returned-error"
	StatusTechnicalFailure DeliveryStatus = "technical-failure"
)

// Terminal reports whether the status accepts no further callbacks.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusReturnedAck || s == StatusReturnedError || s == StatusTechnicalFailure
}

func (s DeliveryStatus) Valid() bool {
	return s == StatusSending || s.Terminal()
}

// BroadcastProviderMessage is one delivery record per (event, provider).
type BroadcastProviderMessage struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	BroadcastEventID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_event_provider"`
	Provider         Provider       `gorm:"type:varchar(20);not null;uniqueIndex:idx_event_provider"`
	Status           DeliveryStatus `gorm:"type:varchar(20);not null;default:'sending'"`
	CreatedAt        time.Time      `gorm:"not null"`
	UpdatedAt        time.Time
}

func (BroadcastProviderMessage) TableName() string {
	return "broadcast_provider_messages"
}

// BroadcastProviderMessageNumber attaches a globally monotonic sequence value
// to a provider message. Present only for sequence-requiring providers.
type BroadcastProviderMessageNumber struct {
	BroadcastProviderMessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Number                     int64     `gorm:"not null;uniqueIndex"`
}

func (BroadcastProviderMessageNumber) TableName() string {
	return "broadcast_provider_message_numbers"
}

// SequenceCounter is the single-row global allocator backing message numbers.
type SequenceCounter struct {
	ID    int   `gorm:"primaryKey"`
	Value int64 `gorm:"not null"`
}

func (SequenceCounter) TableName() string {
	return "broadcast_sequence_counter"
}

// Channel classifies a service's delivery channel.
type Channel string

const (
	ChannelSevere     Channel = "severe"
	ChannelGovernment Channel = "government"
	ChannelTest       Channel = "test"
	ChannelOperator   Channel = "operator"
)

// ServiceBroadcastSettings holds a broadcast-enabled service's channel and
// provider restriction, exactly one row per service.
type ServiceBroadcastSettings struct {
	ServiceID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Channel   Channel   `gorm:"type:varchar(20);not null"`
	// Provider is either RestrictionAll or one provider identifier.
	Provider  string    `gorm:"type:varchar(20);not null;default:'all'"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (ServiceBroadcastSettings) TableName() string {
	return "service_broadcast_settings"
}

// EligibleProviders resolves the restriction against the configured set.
func (s ServiceBroadcastSettings) EligibleProviders(configured []Provider) []Provider {
	if s.Provider == RestrictionAll || s.Provider == "" {
		return configured
	}
	for _, p := range configured {
		if string(p) == s.Provider {
			return []Provider{p}
		}
	}
	return nil
}
