package services

import (
	"context"
	"time"

	"cell-broadcast/internal/config"
	"cell-broadcast/internal/repository"
	"cell-broadcast/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Jobs runs the periodic background work: the expiry sweep, the
// outstanding-action scan, and the retention purge. All three rely on
// guarded updates, so they are safe alongside user-driven transitions.
type Jobs struct {
	c   *cron.Cron
	log *logger.Logger
}

func NewJobs(
	cfg config.JobsConfig,
	messages *MessageService,
	scanner *ScannerService,
	purge *PurgeService,
	settings repository.SettingsRepository,
	log *logger.Logger,
) (*Jobs, error) {
	c := cron.New()
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	if _, err := c.AddFunc(cfg.SweepSpec, func() {
		if _, err := messages.SweepExpired(context.Background()); err != nil {
			log.Logger.Error("expiry sweep failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(cfg.ScanSpec, func() {
		if _, err := scanner.PublishOutstanding(context.Background()); err != nil {
			log.Logger.Error("outstanding scan failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc(cfg.PurgeSpec, func() {
		ctx := context.Background()
		serviceIDs, err := settings.ListServices(ctx)
		if err != nil {
			log.Logger.Error("purge service listing failed", zap.Error(err))
			return
		}
		for _, serviceID := range serviceIDs {
			if _, err := purge.Purge(ctx, serviceID, retention, false); err != nil {
				log.Logger.Error("purge failed",
					zap.String("service_id", serviceID.String()),
					zap.Error(err))
			}
		}
	}); err != nil {
		return nil, err
	}

	return &Jobs{c: c, log: log}, nil
}

func (j *Jobs) Start() {
	j.c.Start()
}

func (j *Jobs) Stop() {
	ctx := j.c.Stop()
	<-ctx.Done()
}
