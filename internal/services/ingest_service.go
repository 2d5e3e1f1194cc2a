package services

import (
	"context"

	"cell-broadcast/internal/cap"
	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/repository"
	"cell-broadcast/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IngestResult summarizes how an inbound CAP document was handled.
type IngestResult struct {
	Identifier         string     `json:"identifier"`
	MsgType            string     `json:"msg_type"`
	BroadcastMessageID *uuid.UUID `json:"broadcast_message_id,omitempty"`
}

// IngestService handles inbound CAP 1.2 documents. Cancel documents carry
// no message id, only a reference list; the target message is resolved by
// matching references against previously issued events.
type IngestService struct {
	events   repository.EventRepository
	messages *MessageService
	log      *logger.Logger
}

func NewIngestService(events repository.EventRepository, messages *MessageService, log *logger.Logger) *IngestService {
	return &IngestService{events: events, messages: messages, log: log}
}

func (s *IngestService) Ingest(ctx context.Context, data []byte, actor broadcast.Actor) (IngestResult, error) {
	doc, err := cap.Parse(data)
	if err != nil {
		return IngestResult{}, err
	}

	result := IngestResult{Identifier: doc.Identifier, MsgType: doc.MsgType}

	if doc.MsgType != cap.MsgTypeCancel {
		s.log.Logger.Info("ingested CAP document",
			zap.String("identifier", doc.Identifier),
			zap.String("msg_type", doc.MsgType))
		return result, nil
	}

	messageID, err := s.events.ResolveMessageByEvents(ctx, doc.ReferenceEventIDs())
	if err != nil {
		return IngestResult{}, err
	}
	result.BroadcastMessageID = &messageID

	if _, err := s.messages.Transition(ctx, messageID, broadcast.StatusCancelled, actor, ""); err != nil {
		return IngestResult{}, err
	}
	return result, nil
}
