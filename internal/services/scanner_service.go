package services

import (
	"context"
	"time"

	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/proxy"
	"cell-broadcast/internal/repository"
	"cell-broadcast/pkg/events"
	"cell-broadcast/pkg/logger"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FinishedBroadcast is the payload published for each finished message.
type FinishedBroadcast struct {
	BroadcastMessageID uuid.UUID        `json:"broadcast_message_id"`
	ServiceID          uuid.UUID        `json:"service_id"`
	Status             broadcast.Status `json:"status"`
	FinishesAt         *time.Time       `json:"finishes_at,omitempty"`
}

// ScannerService finds finished-but-unacknowledged messages and publishes
// them for the downstream feed. The acknowledgement flag is set by the ack
// endpoint, so an unacknowledged message is republished on the next scan
// and redelivery is harmless.
type ScannerService struct {
	messages      repository.MessageRepository
	serviceConfig proxy.ServiceConfig
	publisher     events.Publisher
	channel       string
	clock         clock.Clock
	log           *logger.Logger
}

func NewScannerService(
	messages repository.MessageRepository,
	serviceConfig proxy.ServiceConfig,
	publisher events.Publisher,
	channel string,
	clk clock.Clock,
	log *logger.Logger,
) *ScannerService {
	if clk == nil {
		clk = clock.New()
	}
	return &ScannerService{
		messages:      messages,
		serviceConfig: serviceConfig,
		publisher:     publisher,
		channel:       channel,
		clock:         clk,
		log:           log,
	}
}

// Outstanding returns finished, unacknowledged messages belonging to
// services whose owning organisation is live.
func (s *ScannerService) Outstanding(ctx context.Context) ([]broadcast.BroadcastMessage, error) {
	candidates, err := s.messages.ListOutstanding(ctx, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	out := make([]broadcast.BroadcastMessage, 0, len(candidates))
	for _, m := range candidates {
		info, err := s.serviceConfig.Info(ctx, m.ServiceID)
		if err != nil {
			return nil, err
		}
		if info.OrganisationLive {
			out = append(out, m)
		}
	}
	return out, nil
}

// PublishOutstanding pushes every outstanding message onto the feed channel
// and returns how many were published.
func (s *ScannerService) PublishOutstanding(ctx context.Context) (int, error) {
	outstanding, err := s.Outstanding(ctx)
	if err != nil {
		return 0, err
	}
	published := 0
	for i := range outstanding {
		m := &outstanding[i]
		err := s.publisher.Publish(ctx, s.channel, FinishedBroadcast{
			BroadcastMessageID: m.ID,
			ServiceID:          m.ServiceID,
			Status:             m.Status,
			FinishesAt:         m.FinishesAt,
		})
		if err != nil {
			s.log.Logger.Error("failed to publish finished broadcast",
				zap.String("broadcast_message_id", m.ID.String()),
				zap.Error(err))
			continue
		}
		published++
	}
	return published, nil
}
