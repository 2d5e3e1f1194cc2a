package services

import (
	"context"
	"time"

	"cell-broadcast/internal/repository"
	"cell-broadcast/pkg/logger"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PurgeCounts reports rows removed (or, in dry-run, that would be removed)
// per entity type.
type PurgeCounts struct {
	ProviderMessageNumbers int64 `json:"provider_message_numbers"`
	ProviderMessages       int64 `json:"provider_messages"`
	Events                 int64 `json:"events"`
	HistorySnapshots       int64 `json:"history_snapshots"`
	EditReasons            int64 `json:"edit_reasons"`
	Messages               int64 `json:"messages"`
}

func (c *PurgeCounts) add(other PurgeCounts) {
	c.ProviderMessageNumbers += other.ProviderMessageNumbers
	c.ProviderMessages += other.ProviderMessages
	c.Events += other.Events
	c.HistorySnapshots += other.HistorySnapshots
	c.EditReasons += other.EditReasons
	c.Messages += other.Messages
}

// PurgeService removes aged messages and every descendant row, strictly
// child-to-parent, one transaction per message. A failure rolls back only
// the failing message's cascade; earlier messages stay purged.
type PurgeService struct {
	db        *gorm.DB
	messages  repository.MessageRepository
	events    repository.EventRepository
	providers repository.ProviderRepository
	history   repository.HistoryRepository
	clock     clock.Clock
	log       *logger.Logger
}

func NewPurgeService(
	db *gorm.DB,
	messages repository.MessageRepository,
	events repository.EventRepository,
	providers repository.ProviderRepository,
	historyRepo repository.HistoryRepository,
	clk clock.Clock,
	log *logger.Logger,
) *PurgeService {
	if clk == nil {
		clk = clock.New()
	}
	return &PurgeService{
		db:        db,
		messages:  messages,
		events:    events,
		providers: providers,
		history:   historyRepo,
		clock:     clk,
		log:       log,
	}
}

// Purge removes every message of the service created before now-olderThan.
// Dry-run performs the same selection and counting without mutating data.
func (s *PurgeService) Purge(ctx context.Context, serviceID uuid.UUID, olderThan time.Duration, dryRun bool) (PurgeCounts, error) {
	threshold := s.clock.Now().UTC().Add(-olderThan)
	ids, err := s.messages.ListPurgeCandidates(ctx, serviceID, threshold)
	if err != nil {
		return PurgeCounts{}, err
	}

	var total PurgeCounts
	for _, id := range ids {
		var counts PurgeCounts
		if dryRun {
			counts, err = s.countMessage(ctx, id)
		} else {
			counts, err = s.purgeMessage(ctx, id)
		}
		if err != nil {
			return total, err
		}
		total.add(counts)
	}

	s.log.Logger.Info("purge finished",
		zap.String("service_id", serviceID.String()),
		zap.Bool("dry_run", dryRun),
		zap.Int64("messages", total.Messages),
		zap.Int64("events", total.Events),
		zap.Int64("provider_messages", total.ProviderMessages))
	return total, nil
}

func (s *PurgeService) countMessage(ctx context.Context, id uuid.UUID) (PurgeCounts, error) {
	var counts PurgeCounts
	var err error
	if counts.ProviderMessageNumbers, err = s.providers.CountNumbersForBroadcast(ctx, id); err != nil {
		return counts, err
	}
	if counts.ProviderMessages, err = s.providers.CountMessagesForBroadcast(ctx, id); err != nil {
		return counts, err
	}
	if counts.Events, err = s.events.CountForMessage(ctx, id); err != nil {
		return counts, err
	}
	if counts.HistorySnapshots, counts.EditReasons, err = s.history.CountForMessage(ctx, id); err != nil {
		return counts, err
	}
	counts.Messages = 1
	return counts, nil
}

func (s *PurgeService) purgeMessage(ctx context.Context, id uuid.UUID) (PurgeCounts, error) {
	var counts PurgeCounts
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if counts.ProviderMessageNumbers, err = s.providers.DeleteNumbersForBroadcast(ctx, tx, id); err != nil {
			return err
		}
		if counts.ProviderMessages, err = s.providers.DeleteMessagesForBroadcast(ctx, tx, id); err != nil {
			return err
		}
		if counts.Events, err = s.events.DeleteForMessage(ctx, tx, id); err != nil {
			return err
		}
		if counts.HistorySnapshots, counts.EditReasons, err = s.history.DeleteForMessage(ctx, tx, id); err != nil {
			return err
		}
		if counts.Messages, err = s.messages.Delete(ctx, tx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return PurgeCounts{}, err
	}
	return counts, nil
}
