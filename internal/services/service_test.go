package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/domain/event"
	"cell-broadcast/internal/domain/history"
	"cell-broadcast/internal/domain/provider"
	"cell-broadcast/internal/proxy"
	"cell-broadcast/internal/repository"
	"cell-broadcast/internal/transport/cbc"
	"cell-broadcast/pkg/logger"

	"github.com/benbjohnson/clock"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testDomain = "broadcasts.test.gov"

var allProviders = []provider.Provider{
	provider.ProviderEE,
	provider.ProviderVodafone,
	provider.ProviderThree,
	provider.ProviderO2,
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single shared in-memory database; one connection keeps concurrent
	// writers from tripping over sqlite locking.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&broadcast.BroadcastMessage{},
		&event.BroadcastEvent{},
		&provider.BroadcastProviderMessage{},
		&provider.BroadcastProviderMessageNumber{},
		&provider.SequenceCounter{},
		&provider.ServiceBroadcastSettings{},
		&history.BroadcastMessageHistory{},
		&history.BroadcastMessageEditReason{},
	))
	return db
}

// recordingTransport captures payloads handed off after commit.
type recordingTransport struct {
	mu       sync.Mutex
	payloads []cbc.Payload
}

func (r *recordingTransport) Send(ctx context.Context, p cbc.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return nil
}

func (r *recordingTransport) sent() []cbc.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]cbc.Payload, len(r.payloads))
	copy(out, r.payloads)
	return out
}

type published struct {
	channel string
	payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{channel: channel, payload: payload})
	return nil
}

// fixture wires the full service graph against an in-memory database, a
// mock clock and static collaborators.
type fixture struct {
	db        *gorm.DB
	clock     *clock.Mock
	transport *recordingTransport
	publisher *fakePublisher

	messages  repository.MessageRepository
	events    repository.EventRepository
	providers repository.ProviderRepository
	history   repository.HistoryRepository
	settings  repository.SettingsRepository

	identity *proxy.StaticIdentityProvider
	info     *proxy.StaticInfoSource
	store    *proxy.StaticTemplateStore

	dispatch *DispatchService
	svc      *MessageService
	purge    *PurgeService
	scanner  *ScannerService

	serviceID uuid.UUID
	operator  broadcast.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 6, 1, 9, 30, 15, 0, time.UTC))

	f := &fixture{
		db:        db,
		clock:     mock,
		transport: &recordingTransport{},
		publisher: &fakePublisher{},
		messages:  repository.NewMessageRepository(db),
		events:    repository.NewEventRepository(db),
		providers: repository.NewProviderRepository(db),
		history:   repository.NewHistoryRepository(db),
		settings:  repository.NewSettingsRepository(db),
		serviceID: uuid.New(),
		operator:  broadcast.UserActor(uuid.New()),
	}
	require.NoError(t, f.providers.EnsureCounter(context.Background()))

	f.identity = &proxy.StaticIdentityProvider{
		Members: map[uuid.UUID][]uuid.UUID{f.serviceID: {f.operator.ID}},
		Admins:  map[uuid.UUID]bool{},
	}
	f.info = &proxy.StaticInfoSource{Services: map[uuid.UUID]proxy.ServiceInfo{
		f.serviceID: {Active: true, OrganisationLive: true},
	}}
	f.store = &proxy.StaticTemplateStore{Templates: map[uuid.UUID]string{}}

	serviceConfig := proxy.NewServiceConfig(f.info, f.settings)
	require.NoError(t, f.settings.Upsert(context.Background(), &provider.ServiceBroadcastSettings{
		ServiceID: f.serviceID,
		Channel:   provider.ChannelSevere,
		Provider:  provider.RestrictionAll,
	}))

	f.dispatch = NewDispatchService(db, f.events, f.providers,
		f.transport, mock, log, testDomain, "broadcasts@test.gov", allProviders)
	f.svc = NewMessageService(db, f.messages, f.history,
		proxy.NewAccessControl(f.identity), serviceConfig, f.store, f.dispatch, mock, log)
	f.purge = NewPurgeService(db, f.messages, f.events, f.providers, f.history, mock, log)
	f.scanner = NewScannerService(f.messages, serviceConfig, f.publisher, "broadcast-feed", mock, log)
	return f
}

func strptr(s string) *string { return &s }

func manchesterAreas() broadcast.Areas {
	return broadcast.Areas{
		IDs: []string{"manchester"},
		SimplePolygons: [][][]float64{{
			{53.52, -2.33}, {53.53, -2.15}, {53.42, -2.12}, {53.41, -2.34}, {53.52, -2.33},
		}},
	}
}

// draft creates a free-form draft owned by the fixture operator.
func (f *fixture) draft(t *testing.T) broadcast.BroadcastMessage {
	t.Helper()
	m, err := f.svc.CreateDraft(context.Background(), CreateDraftInput{
		ServiceID: f.serviceID,
		Content:   "Severe flooding expected. Move to higher ground.",
		Reference: strptr("flood-manchester"),
		Areas:     manchesterAreas(),
		Duration:  4 * time.Hour,
		CreatedBy: f.operator,
	})
	require.NoError(t, err)
	return m
}

// live walks a draft through approval so it is broadcasting.
func (f *fixture) live(t *testing.T) broadcast.BroadcastMessage {
	t.Helper()
	m := f.draft(t)
	m, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusPendingApproval, f.operator, "")
	require.NoError(t, err)
	m, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusBroadcasting, f.operator, "")
	require.NoError(t, err)
	return m
}
