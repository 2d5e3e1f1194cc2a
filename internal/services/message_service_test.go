package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cell-broadcast/internal/domain/broadcast"
	"cell-broadcast/internal/domain/event"
	"cell-broadcast/internal/domain/provider"
	"cell-broadcast/internal/proxy"
	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDraftFreeForm(t *testing.T) {
	f := newFixture(t)
	m := f.draft(t)

	assert.Equal(t, broadcast.StatusDraft, m.Status)
	assert.Equal(t, f.operator, m.CreatedBy)
	assert.False(t, m.Stubbed)

	snapshots, err := f.history.ListSnapshots(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 1, snapshots[0].Version)
	assert.Equal(t, m.Content, snapshots[0].Content)
}

func TestCreateDraftFromTemplate(t *testing.T) {
	f := newFixture(t)
	templateID := uuid.New()
	f.store.Templates[templateID] = "Flooding expected in ((area))."
	version := 2

	m, err := f.svc.CreateDraft(context.Background(), CreateDraftInput{
		ServiceID:       f.serviceID,
		TemplateID:      &templateID,
		TemplateVersion: &version,
		Personalisation: map[string]string{"area": "Salford"},
		Areas:           manchesterAreas(),
		Duration:        4 * time.Hour,
		CreatedBy:       f.operator,
	})
	require.NoError(t, err)
	assert.Equal(t, "Flooding expected in Salford.", m.Content)
	assert.Equal(t, &templateID, m.TemplateID)
}

func TestCreateDraftRejectsTemplateAndReference(t *testing.T) {
	f := newFixture(t)
	templateID := uuid.New()
	f.store.Templates[templateID] = "body"
	version := 1

	_, err := f.svc.CreateDraft(context.Background(), CreateDraftInput{
		ServiceID:       f.serviceID,
		TemplateID:      &templateID,
		TemplateVersion: &version,
		Reference:       strptr("also-free-form"),
		CreatedBy:       f.operator,
	})
	assert.True(t, errors.Is(err, broadcast_errors.ErrInvalidInput))

	// Neither source is just as invalid.
	_, err = f.svc.CreateDraft(context.Background(), CreateDraftInput{
		ServiceID: f.serviceID,
		Content:   "content without reference",
		CreatedBy: f.operator,
	})
	assert.True(t, errors.Is(err, broadcast_errors.ErrInvalidInput))
}

func TestCreateDraftTrainingModeStubs(t *testing.T) {
	f := newFixture(t)
	f.info.Services[f.serviceID] = proxy.ServiceInfo{Active: true, TrainingMode: true}

	m := f.draft(t)
	assert.True(t, m.Stubbed)
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	f := newFixture(t)
	m := f.draft(t)

	_, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusBroadcasting, f.operator, "")
	assert.True(t, errors.Is(err, broadcast_errors.ErrInvalidTransition))

	_, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusCancelled, f.operator, "")
	assert.True(t, errors.Is(err, broadcast_errors.ErrInvalidTransition))
}

func TestApproveFansOutToAllProviders(t *testing.T) {
	f := newFixture(t)
	m := f.live(t)

	assert.Equal(t, broadcast.StatusBroadcasting, m.Status)
	assert.Equal(t, f.operator, m.ApprovedBy)
	require.NotNil(t, m.ApprovedAt)

	events, err := f.events.ListByMessage(context.Background(), nil, m.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeAlert, events[0].MessageType)
	assert.Equal(t, m.Content, events[0].TransmittedContent)

	pms, err := f.providers.ListByEvent(context.Background(), events[0].ID)
	require.NoError(t, err)
	require.Len(t, pms, 4)
	for _, pm := range pms {
		assert.Equal(t, provider.StatusSending, pm.Status)
	}

	// Only the sequence-requiring provider gets a message number.
	for _, pm := range pms {
		n, err := f.providers.GetMessageNumber(context.Background(), pm.ID)
		if pm.Provider == provider.ProviderVodafone {
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		} else {
			assert.True(t, errors.Is(err, broadcast_errors.ErrNotFound))
		}
	}

	require.Eventually(t, func() bool {
		return len(f.transport.sent()) == 4
	}, time.Second, 10*time.Millisecond)
	for _, p := range f.transport.sent() {
		assert.Equal(t, event.TypeAlert, p.MessageType)
		assert.Equal(t, provider.ChannelSevere, p.Channel)
		assert.Empty(t, p.References)
	}
}

func TestApproveRequiresMembership(t *testing.T) {
	f := newFixture(t)
	m := f.draft(t)
	_, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusPendingApproval, f.operator, "")
	require.NoError(t, err)

	outsider := broadcast.UserActor(uuid.New())
	_, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusBroadcasting, outsider, "")
	assert.True(t, errors.Is(err, broadcast_errors.ErrPermissionDenied))

	// Platform admins do not get approval rights either.
	f.identity.Admins[outsider.ID] = true
	_, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusBroadcasting, outsider, "")
	assert.True(t, errors.Is(err, broadcast_errors.ErrPermissionDenied))
}

func TestApproveRequiresActiveService(t *testing.T) {
	f := newFixture(t)
	m := f.draft(t)
	_, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusPendingApproval, f.operator, "")
	require.NoError(t, err)

	f.info.Services[f.serviceID] = proxy.ServiceInfo{Active: false}
	_, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusBroadcasting, f.operator, "")
	assert.True(t, errors.Is(err, broadcast_errors.ErrPermissionDenied))
}

func TestCancelChainsReferences(t *testing.T) {
	f := newFixture(t)
	m := f.live(t)

	events, err := f.events.ListByMessage(context.Background(), nil, m.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	f.clock.Add(30 * time.Minute)
	m, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusCancelled, f.operator, "")
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusCancelled, m.Status)
	assert.Equal(t, f.operator, m.CancelledBy)
	require.NotNil(t, m.CancelledAt)
	// Timestamps come from the injected clock, not the wall clock.
	assert.WithinDuration(t, f.clock.Now(), m.UpdatedAt, time.Second)

	events, err = f.events.ListByMessage(context.Background(), nil, m.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeCancel, events[1].MessageType)

	require.Eventually(t, func() bool {
		return len(f.transport.sent()) == 8
	}, time.Second, 10*time.Millisecond)
	want := events[0].Reference(testDomain)
	for _, p := range f.transport.sent() {
		if p.MessageType != event.TypeCancel {
			continue
		}
		require.Len(t, p.References, 1)
		assert.Equal(t, want, p.References[0])
	}
}

func TestCancelReferencesAlertAtSameInstant(t *testing.T) {
	f := newFixture(t)
	m := f.live(t)

	// The clock does not move: alert and cancel share one sent_at. The
	// alert is still an earlier instruction and must be referenced.
	m, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusCancelled, f.operator, "")
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusCancelled, m.Status)

	events, err := f.events.ListByMessage(context.Background(), nil, m.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	var alert *event.BroadcastEvent
	for i := range events {
		if events[i].MessageType == event.TypeAlert {
			alert = &events[i]
		}
	}
	require.NotNil(t, alert)

	require.Eventually(t, func() bool {
		return len(f.transport.sent()) == 8
	}, time.Second, 10*time.Millisecond)
	want := alert.Reference(testDomain)
	for _, p := range f.transport.sent() {
		if p.MessageType != event.TypeCancel {
			continue
		}
		require.Len(t, p.References, 1)
		assert.Equal(t, want, p.References[0])
	}
}

func TestCancelAllowedForPlatformAdmin(t *testing.T) {
	f := newFixture(t)
	m := f.live(t)

	admin := broadcast.UserActor(uuid.New())
	f.identity.Admins[admin.ID] = true

	m, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusCancelled, admin, "")
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusCancelled, m.Status)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	m := f.draft(t)
	_, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusPendingApproval, f.operator, "")
	require.NoError(t, err)

	_, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusRejected, f.operator, "")
	assert.True(t, errors.Is(err, broadcast_errors.ErrReasonRequired))

	m, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusRejected, f.operator, "area too large")
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusRejected, m.Status)

	_, reasons, err := f.history.CountForMessage(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reasons)
}

func TestUpdateContentVersionsHistory(t *testing.T) {
	f := newFixture(t)
	m := f.draft(t)

	updated := "Flooding imminent. Evacuate now."
	m, err := f.svc.UpdateContent(context.Background(), m.ID, UpdateContentInput{
		Content: &updated,
		Reason:  "severity upgraded",
	}, f.operator)
	require.NoError(t, err)
	assert.Equal(t, updated, m.Content)

	snapshots, err := f.history.ListSnapshots(context.Background(), m.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 2, snapshots[1].Version)
	assert.Equal(t, updated, snapshots[1].Content)

	// Saving identical content must not mint a new version.
	m, err = f.svc.UpdateContent(context.Background(), m.ID, UpdateContentInput{Content: &updated}, f.operator)
	require.NoError(t, err)
	snapshots, err = f.history.ListSnapshots(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)
}

func TestUpdateContentRejectedWhenLive(t *testing.T) {
	f := newFixture(t)
	m := f.live(t)

	content := "changed"
	_, err := f.svc.UpdateContent(context.Background(), m.ID, UpdateContentInput{Content: &content}, f.operator)
	assert.True(t, errors.Is(err, broadcast_errors.ErrInvalidState))
}

func TestEditWriteRefusedAfterConcurrentApproval(t *testing.T) {
	f := newFixture(t)
	m := f.draft(t)
	_, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusPendingApproval, f.operator, "")
	require.NoError(t, err)

	// An editor reads the message while it is still editable.
	stale, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	require.True(t, stale.Status.PreBroadcast())

	// Approval lands before the editor's write.
	_, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusBroadcasting, f.operator, "")
	require.NoError(t, err)

	stale.Content = "edited after the fact"
	ok, err := f.messages.SaveEditableGuarded(context.Background(), nil, &stale)
	require.NoError(t, err)
	assert.False(t, ok)

	// The frozen row is untouched: still broadcasting, original content.
	got, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusBroadcasting, got.Status)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, f.operator, got.ApprovedBy)
}

func TestUpdateContentRejectedForTemplateBacked(t *testing.T) {
	f := newFixture(t)
	templateID := uuid.New()
	f.store.Templates[templateID] = "template body"
	version := 1
	m, err := f.svc.CreateDraft(context.Background(), CreateDraftInput{
		ServiceID:       f.serviceID,
		TemplateID:      &templateID,
		TemplateVersion: &version,
		CreatedBy:       f.operator,
	})
	require.NoError(t, err)

	content := "hand-edited"
	_, err = f.svc.UpdateContent(context.Background(), m.ID, UpdateContentInput{Content: &content}, f.operator)
	assert.True(t, errors.Is(err, broadcast_errors.ErrInvalidInput))

	// Areas stay editable on template-backed drafts.
	areas := manchesterAreas()
	m, err = f.svc.UpdateContent(context.Background(), m.ID, UpdateContentInput{Areas: &areas}, f.operator)
	require.NoError(t, err)
	assert.Equal(t, areas.IDs, m.Areas.IDs)
}

func TestSweepExpiredCompletesBroadcasting(t *testing.T) {
	f := newFixture(t)
	m := f.live(t)

	finishes := f.clock.Now().UTC().Add(time.Hour)
	require.NoError(t, f.db.Model(&broadcast.BroadcastMessage{}).
		Where("id = ?", m.ID).Update("finishes_at", finishes).Error)

	n, err := f.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.clock.Add(2 * time.Hour)
	n, err = f.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusCompleted, got.Status)

	// Completion is terminal: the sweep finds nothing next time.
	n, err = f.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCancelWinsOverSweep(t *testing.T) {
	f := newFixture(t)
	m := f.live(t)

	finishes := f.clock.Now().UTC().Add(time.Hour)
	require.NoError(t, f.db.Model(&broadcast.BroadcastMessage{}).
		Where("id = ?", m.ID).Update("finishes_at", finishes).Error)
	f.clock.Add(2 * time.Hour)

	_, err := f.svc.Transition(context.Background(), m.ID, broadcast.StatusCancelled, f.operator, "")
	require.NoError(t, err)

	// The sweep sees the expired window but the guarded update misses.
	n, err := f.svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusCancelled, got.Status)
}

func TestAcknowledgeIdempotent(t *testing.T) {
	f := newFixture(t)
	m := f.live(t)

	// Still on air.
	err := f.svc.Acknowledge(context.Background(), m.ID)
	assert.True(t, errors.Is(err, broadcast_errors.ErrInvalidState))

	_, err = f.svc.Transition(context.Background(), m.ID, broadcast.StatusCancelled, f.operator, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Acknowledge(context.Background(), m.ID))
	require.NoError(t, f.svc.Acknowledge(context.Background(), m.ID))

	got, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, got.FinishedGovukAcknowledged)
}

func TestStubbedServiceSuppressesTransport(t *testing.T) {
	f := newFixture(t)
	f.info.Services[f.serviceID] = proxy.ServiceInfo{Active: true, TrainingMode: true}

	m := f.live(t)
	assert.True(t, m.Stubbed)

	// Delivery records exist for audit.
	events, err := f.events.ListByMessage(context.Background(), nil, m.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	pms, err := f.providers.ListByEvent(context.Background(), events[0].ID)
	require.NoError(t, err)
	assert.Len(t, pms, 4)

	// But nothing reaches the transport.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.transport.sent())
}
