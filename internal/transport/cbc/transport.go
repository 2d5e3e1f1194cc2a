// Package cbc defines the hand-off to the external cell-broadcast transport.
package cbc

import (
	"context"
	"time"

	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/domain/event"
	"cell-broadcast/internal/domain/provider"
	"cell-broadcast/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Payload is one fully-assembled provider instruction. The transport
// collaborator owns the wire encoding; delivery outcome arrives later via
// the provider callback endpoint.
type Payload struct {
	ProviderMessageID uuid.UUID         `json:"provider_message_id"`
	Provider          provider.Provider `json:"provider"`
	MessageType       event.Type        `json:"message_type"`
	Channel           provider.Channel  `json:"channel"`

	Content string          `json:"content"`
	Areas   broadcast.Areas `json:"areas"`
	Sender  string          `json:"sender"`

	StartsAt   *time.Time `json:"starts_at,omitempty"`
	FinishesAt *time.Time `json:"finishes_at,omitempty"`

	// References chains this instruction to every earlier delivery for the
	// same provider, oldest first. Empty for alerts.
	References []string `json:"references,omitempty"`

	// MessageNumber is set only for sequence-requiring providers.
	MessageNumber *int64 `json:"message_number,omitempty"`
}

// Transport accepts one payload per provider message, exactly once.
type Transport interface {
	Send(ctx context.Context, p Payload) error
}

// StubTransport logs instead of transmitting. Wired in development and in
// tests; training-mode services never reach a transport at all.
type StubTransport struct {
	log *logger.Logger
}

func NewStubTransport(log *logger.Logger) *StubTransport {
	return &StubTransport{log: log}
}

func (t *StubTransport) Send(ctx context.Context, p Payload) error {
	if t.log != nil {
		t.log.Logger.Info("stub transport send",
			zap.String("provider_message_id", p.ProviderMessageID.String()),
			zap.String("provider", string(p.Provider)),
			zap.String("message_type", string(p.MessageType)),
			zap.Int("references", len(p.References)),
		)
	}
	return nil
}
