package services

import (
	"context"
	"fmt"
	"time"

	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/domain/event"
	"cell-broadcast/internal/domain/history"
	"cell-broadcast/internal/proxy"
	"cell-broadcast/internal/repository"
	"cell-broadcast/internal/transport/cbc"
	broadcast_errors "cell-broadcast/pkg/errors"
	"cell-broadcast/pkg/logger"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MessageService is the authoritative lifecycle controller for broadcast
// messages. Every status change, its event-log entry and its audit snapshot
// commit in one transaction; transport hand-off follows the commit.
type MessageService struct {
	db            *gorm.DB
	messages      repository.MessageRepository
	history       repository.HistoryRepository
	access        *proxy.AccessControl
	serviceConfig proxy.ServiceConfig
	templates     proxy.TemplateStore
	dispatch      *DispatchService
	clock         clock.Clock
	log           *logger.Logger
}

func NewMessageService(
	db *gorm.DB,
	messages repository.MessageRepository,
	historyRepo repository.HistoryRepository,
	access *proxy.AccessControl,
	serviceConfig proxy.ServiceConfig,
	templates proxy.TemplateStore,
	dispatch *DispatchService,
	clk clock.Clock,
	log *logger.Logger,
) *MessageService {
	if clk == nil {
		clk = clock.New()
	}
	return &MessageService{
		db:            db,
		messages:      messages,
		history:       historyRepo,
		access:        access,
		serviceConfig: serviceConfig,
		templates:     templates,
		dispatch:      dispatch,
		clock:         clk,
		log:           log,
	}
}

type CreateDraftInput struct {
	ServiceID       uuid.UUID
	TemplateID      *uuid.UUID
	TemplateVersion *int
	Personalisation map[string]string
	Content         string
	Reference       *string
	Areas           broadcast.Areas
	Duration        time.Duration
	StartsAt        *time.Time
	FinishesAt      *time.Time
	CreatedBy       broadcast.Actor
}

// CreateDraft builds a new message in draft. Template-backed messages are
// rendered through the template store, which enforces the encoding-aware
// content limit; free-form content goes through the same check.
func (s *MessageService) CreateDraft(ctx context.Context, in CreateDraftInput) (broadcast.BroadcastMessage, error) {
	if !in.CreatedBy.Valid() {
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidInput
	}

	content := in.Content
	if in.TemplateID != nil {
		if in.TemplateVersion == nil {
			return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidInput
		}
		rendered, err := s.templates.Render(ctx, *in.TemplateID, *in.TemplateVersion, in.Personalisation)
		if err != nil {
			return broadcast.BroadcastMessage{}, err
		}
		content = rendered
	} else if err := proxy.CheckContentLength(content); err != nil {
		return broadcast.BroadcastMessage{}, err
	}

	info, err := s.serviceConfig.Info(ctx, in.ServiceID)
	if err != nil {
		return broadcast.BroadcastMessage{}, err
	}

	now := s.clock.Now().UTC()
	m := broadcast.BroadcastMessage{
		ID:              uuid.New(),
		ServiceID:       in.ServiceID,
		TemplateID:      in.TemplateID,
		TemplateVersion: in.TemplateVersion,
		Reference:       in.Reference,
		Content:         content,
		Areas:           in.Areas,
		Status:          broadcast.StatusDraft,
		Duration:        in.Duration,
		StartsAt:        in.StartsAt,
		FinishesAt:      in.FinishesAt,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       in.CreatedBy,
		Stubbed:         info.TrainingMode,
	}
	if err := m.Validate(); err != nil {
		return broadcast.BroadcastMessage{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.messages.Create(ctx, tx, &m); err != nil {
			return err
		}
		return s.snapshotIfChanged(ctx, tx, &m, in.CreatedBy)
	})
	if err != nil {
		return broadcast.BroadcastMessage{}, err
	}
	return m, nil
}

func (s *MessageService) Get(ctx context.Context, id uuid.UUID) (broadcast.BroadcastMessage, error) {
	return s.messages.GetByID(ctx, id)
}

// Transition moves a message to the target status and runs the side effects
// the transition demands. The status write is guarded on the current status,
// so a concurrent transition surfaces as ErrInvalidTransition rather than a
// lost update.
func (s *MessageService) Transition(ctx context.Context, id uuid.UUID, target broadcast.Status, actor broadcast.Actor, reason string) (broadcast.BroadcastMessage, error) {
	if !target.Valid() || !actor.Valid() {
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidInput
	}
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return broadcast.BroadcastMessage{}, err
	}
	if !m.Status.CanTransitionTo(target) {
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidTransition
	}

	var payloads []cbc.Payload
	now := s.clock.Now().UTC()

	switch target {
	case broadcast.StatusPendingApproval, broadcast.StatusDraft, broadcast.StatusCompleted:
		err = s.guarded(ctx, nil, &m, target, nil)

	case broadcast.StatusRejected:
		if reason == "" {
			return broadcast.BroadcastMessage{}, broadcast_errors.ErrReasonRequired
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.guarded(ctx, tx, &m, target, nil); err != nil {
				return err
			}
			return s.history.CreateEditReason(ctx, tx, &history.BroadcastMessageEditReason{
				ID:                 uuid.New(),
				BroadcastMessageID: m.ID,
				Reason:             reason,
				SubmittedBy:        m.CreatedBy.ID,
				CreatedBy:          actor,
				CreatedAt:          now,
			})
		})

	case broadcast.StatusBroadcasting:
		if err := s.access.CanApprove(ctx, actor, m.ServiceID); err != nil {
			return broadcast.BroadcastMessage{}, err
		}
		info, ierr := s.serviceConfig.Info(ctx, m.ServiceID)
		if ierr != nil {
			return broadcast.BroadcastMessage{}, ierr
		}
		if !info.Active {
			return broadcast.BroadcastMessage{}, broadcast_errors.ErrPermissionDenied
		}
		// Settings are read before the transaction: fan-out must not pick
		// up a second pool connection while the transition holds one.
		settings, serr := s.serviceConfig.Settings(ctx, m.ServiceID)
		if serr != nil {
			return broadcast.BroadcastMessage{}, fmt.Errorf("broadcast settings for service %s: %w", m.ServiceID, serr)
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			set := map[string]any{
				"approved_at":      now,
				"approved_by_type": actor.Type,
				"approved_by_id":   actor.ID,
			}
			if err := s.guarded(ctx, tx, &m, target, set); err != nil {
				return err
			}
			e, err := s.dispatch.CreateEventTx(ctx, tx, &m, event.TypeAlert)
			if err != nil {
				return err
			}
			payloads, err = s.dispatch.FanOutTx(ctx, tx, &m, e, settings)
			return err
		})

	case broadcast.StatusCancelled:
		if err := s.access.CanCancel(ctx, actor, m.ServiceID); err != nil {
			return broadcast.BroadcastMessage{}, err
		}
		settings, serr := s.serviceConfig.Settings(ctx, m.ServiceID)
		if serr != nil {
			return broadcast.BroadcastMessage{}, fmt.Errorf("broadcast settings for service %s: %w", m.ServiceID, serr)
		}
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			set := map[string]any{
				"cancelled_at":      now,
				"cancelled_by_type": actor.Type,
				"cancelled_by_id":   actor.ID,
			}
			if err := s.guarded(ctx, tx, &m, target, set); err != nil {
				return err
			}
			e, err := s.dispatch.CreateEventTx(ctx, tx, &m, event.TypeCancel)
			if err != nil {
				return err
			}
			payloads, err = s.dispatch.FanOutTx(ctx, tx, &m, e, settings)
			return err
		})

	default:
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidTransition
	}

	if err != nil {
		return broadcast.BroadcastMessage{}, err
	}

	if len(payloads) > 0 {
		s.dispatch.Send(payloads, m.Stubbed)
	}

	s.log.Logger.Info("broadcast message transitioned",
		zap.String("broadcast_message_id", m.ID.String()),
		zap.String("to", string(target)))

	return s.messages.GetByID(ctx, id)
}

// guarded performs the status-guarded update and keeps the in-memory copy in
// step. Zero rows affected means someone else transitioned first.
func (s *MessageService) guarded(ctx context.Context, tx *gorm.DB, m *broadcast.BroadcastMessage, target broadcast.Status, set map[string]any) error {
	ok, err := s.messages.UpdateStatusGuarded(ctx, tx, m.ID, m.Status, target, set, s.clock.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return broadcast_errors.ErrInvalidTransition
	}
	m.Status = target
	return nil
}

type UpdateContentInput struct {
	Content   *string
	Reference *string
	Areas     *broadcast.Areas
	Duration  *time.Duration
	Reason    string
}

// UpdateContent edits the message's content fields. Only pre-broadcast
// messages are editable; live content is frozen.
func (s *MessageService) UpdateContent(ctx context.Context, id uuid.UUID, in UpdateContentInput, actor broadcast.Actor) (broadcast.BroadcastMessage, error) {
	if !actor.Valid() {
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidInput
	}
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return broadcast.BroadcastMessage{}, err
	}
	if !m.Status.PreBroadcast() {
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidState
	}

	if in.Content != nil {
		if m.TemplateID != nil {
			return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidInput
		}
		if err := proxy.CheckContentLength(*in.Content); err != nil {
			return broadcast.BroadcastMessage{}, err
		}
		m.Content = *in.Content
	}
	if in.Reference != nil {
		if m.TemplateID != nil {
			return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidInput
		}
		m.Reference = in.Reference
	}
	if in.Areas != nil {
		m.Areas = *in.Areas
	}
	if in.Duration != nil {
		m.Duration = *in.Duration
	}
	m.UpdatedAt = s.clock.Now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guarded on the pre-broadcast statuses: an approval landing after
		// the read above must not have its frozen content overwritten.
		ok, err := s.messages.SaveEditableGuarded(ctx, tx, &m)
		if err != nil {
			return err
		}
		if !ok {
			return broadcast_errors.ErrInvalidState
		}
		if err := s.snapshotIfChanged(ctx, tx, &m, actor); err != nil {
			return err
		}
		if in.Reason != "" {
			return s.history.CreateEditReason(ctx, tx, &history.BroadcastMessageEditReason{
				ID:                 uuid.New(),
				BroadcastMessageID: m.ID,
				Reason:             in.Reason,
				SubmittedBy:        m.CreatedBy.ID,
				CreatedBy:          actor,
				CreatedAt:          s.clock.Now().UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return broadcast.BroadcastMessage{}, err
	}
	return m, nil
}

// UpdateSchedule sets the broadcast window. Pre-broadcast only.
func (s *MessageService) UpdateSchedule(ctx context.Context, id uuid.UUID, startsAt, finishesAt *time.Time, actor broadcast.Actor) (broadcast.BroadcastMessage, error) {
	if !actor.Valid() {
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidInput
	}
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return broadcast.BroadcastMessage{}, err
	}
	if !m.Status.PreBroadcast() {
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidState
	}
	m.StartsAt = startsAt
	m.FinishesAt = finishesAt
	m.UpdatedAt = s.clock.Now().UTC()
	ok, err := s.messages.SaveEditableGuarded(ctx, nil, &m)
	if err != nil {
		return broadcast.BroadcastMessage{}, err
	}
	if !ok {
		return broadcast.BroadcastMessage{}, broadcast_errors.ErrInvalidState
	}
	return m, nil
}

// snapshotIfChanged writes a history row when any tracked field differs from
// the latest snapshot. Versions are per-message and monotonic.
func (s *MessageService) snapshotIfChanged(ctx context.Context, tx *gorm.DB, m *broadcast.BroadcastMessage, actor broadcast.Actor) error {
	latest, err := s.history.Latest(ctx, tx, m.ID)
	if err != nil {
		return err
	}
	if latest != nil && !latest.Differs(m) {
		return nil
	}
	version := 1
	if latest != nil {
		version = latest.Version + 1
	}
	return s.history.CreateSnapshot(ctx, tx, history.Snapshot(m, version, actor, s.clock.Now().UTC()))
}

// SweepExpired completes broadcasting messages whose finish time has passed.
// The guarded update means a user cancel that lands first always wins.
func (s *MessageService) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	expired, err := s.messages.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	completed := 0
	for i := range expired {
		ok, err := s.messages.UpdateStatusGuarded(ctx, nil, expired[i].ID, broadcast.StatusBroadcasting, broadcast.StatusCompleted, nil, now)
		if err != nil {
			return completed, err
		}
		if ok {
			completed++
		}
	}
	if completed > 0 {
		s.log.Logger.Info("expiry sweep completed messages", zap.Int("count", completed))
	}
	return completed, nil
}

// Acknowledge marks a finished message as published downstream. Idempotent:
// re-acknowledging is a no-op.
func (s *MessageService) Acknowledge(ctx context.Context, id uuid.UUID) error {
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m.FinishedGovukAcknowledged {
		return nil
	}
	now := s.clock.Now().UTC()
	if !m.Finished(now) {
		return broadcast_errors.ErrInvalidState
	}
	return s.messages.MarkAcknowledged(ctx, id, now)
}
