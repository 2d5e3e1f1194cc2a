package services

import (
	"context"
	"errors"
	"fmt"

	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/domain/event"
	"cell-broadcast/internal/domain/provider"
	"cell-broadcast/internal/geometry"
	"cell-broadcast/internal/repository"
	"cell-broadcast/internal/transport/cbc"
	broadcast_errors "cell-broadcast/pkg/errors"
	"cell-broadcast/pkg/logger"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DispatchService owns the broadcast event log and the per-provider delivery
// tracker. Event creation and fan-out always run inside the transaction of
// the status transition that triggered them; transport hand-off happens
// after commit, one fire-and-forget task per provider message.
type DispatchService struct {
	db        *gorm.DB
	events    repository.EventRepository
	providers repository.ProviderRepository
	transport cbc.Transport
	clock     clock.Clock
	log       *logger.Logger

	domain     string
	sender     string
	configured []provider.Provider
}

func NewDispatchService(
	db *gorm.DB,
	events repository.EventRepository,
	providers repository.ProviderRepository,
	transport cbc.Transport,
	clk clock.Clock,
	log *logger.Logger,
	domain, sender string,
	configured []provider.Provider,
) *DispatchService {
	if clk == nil {
		clk = clock.New()
	}
	return &DispatchService{
		db:         db,
		events:     events,
		providers:  providers,
		transport:  transport,
		clock:      clk,
		log:        log,
		domain:     domain,
		sender:     sender,
		configured: configured,
	}
}

// CreateEventTx appends one event to the message's log, freezing the
// content, areas, sender and schedule as they stand right now.
func (d *DispatchService) CreateEventTx(ctx context.Context, tx *gorm.DB, m *broadcast.BroadcastMessage, t event.Type) (*event.BroadcastEvent, error) {
	if !t.Valid() {
		return nil, broadcast_errors.ErrInvalidInput
	}
	e := &event.BroadcastEvent{
		ID:                    uuid.New(),
		BroadcastMessageID:    m.ID,
		SentAt:                d.clock.Now().UTC(),
		MessageType:           t,
		TransmittedContent:    m.Content,
		TransmittedAreas:      m.Areas,
		TransmittedSender:     d.sender,
		TransmittedStartsAt:   m.StartsAt,
		TransmittedFinishesAt: m.FinishesAt,
	}
	if err := d.events.Create(ctx, tx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// FanOutTx creates one provider message per eligible provider and assembles
// the transport payloads. Settings are resolved by the caller before the
// transaction opens; a mid-transaction lookup would need a second pool
// connection. For update/cancel events the reference chain over all earlier
// events is a hard precondition per provider.
func (d *DispatchService) FanOutTx(ctx context.Context, tx *gorm.DB, m *broadcast.BroadcastMessage, e *event.BroadcastEvent, settings provider.ServiceBroadcastSettings) ([]cbc.Payload, error) {
	eligible := settings.EligibleProviders(d.configured)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: no eligible provider for service %s", broadcast_errors.ErrInvalidInput, m.ServiceID)
	}

	// Every event already in the log predates this one; an equal sent_at
	// (clock granularity) still means an earlier instruction that must be
	// referenced, never skipped.
	var earlier []event.BroadcastEvent
	if e.MessageType != event.TypeAlert {
		all, err := d.events.ListByMessage(ctx, tx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, prev := range all {
			if prev.ID != e.ID {
				earlier = append(earlier, prev)
			}
		}
	}

	areas := broadcast.Areas{
		IDs:            e.TransmittedAreas.IDs,
		SimplePolygons: geometry.Normalize(e.TransmittedAreas.SimplePolygons),
	}

	payloads := make([]cbc.Payload, 0, len(eligible))
	for _, p := range eligible {
		references, err := d.referenceChain(ctx, tx, earlier, p)
		if err != nil {
			return nil, err
		}

		pm := &provider.BroadcastProviderMessage{
			ID:               uuid.New(),
			BroadcastEventID: e.ID,
			Provider:         p,
			Status:           provider.StatusSending,
			CreatedAt:        d.clock.Now().UTC(),
		}
		if err := d.providers.CreateMessage(ctx, tx, pm); err != nil {
			return nil, err
		}

		var number *int64
		if p.RequiresSequence() {
			n, err := d.providers.AllocateSequence(ctx, tx)
			if err != nil {
				return nil, err
			}
			if err := d.providers.CreateMessageNumber(ctx, tx, pm.ID, n); err != nil {
				return nil, err
			}
			number = &n
		}

		payloads = append(payloads, cbc.Payload{
			ProviderMessageID: pm.ID,
			Provider:          p,
			MessageType:       e.MessageType,
			Channel:           settings.Channel,
			Content:           e.TransmittedContent,
			Areas:             areas,
			Sender:            e.TransmittedSender,
			StartsAt:          e.TransmittedStartsAt,
			FinishesAt:        e.TransmittedFinishesAt,
			References:        references,
			MessageNumber:     number,
		})
	}
	return payloads, nil
}

// referenceChain resolves, oldest first, the delivery previously sent to the
// given provider for every earlier event. A gap means an update/cancel would
// reference an instruction the provider never received, which the protocol
// forbids; dispatch of the whole event halts.
func (d *DispatchService) referenceChain(ctx context.Context, tx *gorm.DB, earlier []event.BroadcastEvent, p provider.Provider) ([]string, error) {
	var references []string
	for i := range earlier {
		prev := &earlier[i]
		if _, err := d.providers.FindByEventAndProvider(ctx, tx, prev.ID, p); err != nil {
			if errors.Is(err, broadcast_errors.ErrNotFound) {
				return nil, fmt.Errorf("%w: event %s has no delivery for provider %s",
					broadcast_errors.ErrMissingPriorDelivery, prev.ID, p)
			}
			return nil, err
		}
		references = append(references, prev.Reference(d.domain))
	}
	return references, nil
}

// Send hands each payload to the transport collaborator. Stubbed services
// keep their delivery records for audit but never reach a transport.
// Transport failures come back through the callback endpoint, not here.
func (d *DispatchService) Send(payloads []cbc.Payload, stubbed bool) {
	if stubbed {
		d.log.Logger.Info("stubbed service, suppressing transport dispatch",
			zap.Int("provider_messages", len(payloads)))
		return
	}
	for _, p := range payloads {
		p := p
		go func() {
			if err := d.transport.Send(context.Background(), p); err != nil {
				d.log.Logger.Error("transport send failed",
					zap.String("provider_message_id", p.ProviderMessageID.String()),
					zap.String("provider", string(p.Provider)),
					zap.Error(err))
			}
		}()
	}
}

// ApplyCallback records a provider's delivery verdict. Terminal states are
// write-once: a second callback for the same record is rejected with
// ErrDuplicateCallback, which callers log and swallow.
func (d *DispatchService) ApplyCallback(ctx context.Context, providerMessageID uuid.UUID, status provider.DeliveryStatus) error {
	if !status.Valid() || !status.Terminal() {
		return broadcast_errors.ErrInvalidInput
	}
	ok, err := d.providers.ApplyCallback(ctx, providerMessageID, status, d.clock.Now().UTC())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := d.providers.GetMessage(ctx, providerMessageID); err != nil {
		return err
	}
	d.log.Logger.Warn("duplicate provider callback ignored",
		zap.String("provider_message_id", providerMessageID.String()),
		zap.String("status", string(status)))
	return broadcast_errors.ErrDuplicateCallback
}
