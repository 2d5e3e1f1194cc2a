package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cell-broadcast/internal/domain/broadcast"
	broadcast_errors "cell-broadcast/pkg/errors"
	"cell-broadcast/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ingestAlertXML = `<?xml version="1.0" encoding="UTF-8"?>
<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
  <identifier>incoming-alert-1</identifier>
  <sender>other-system@test.gov</sender>
  <sent>2024-06-01T09:45:00+00:00</sent>
  <status>Actual</status>
  <msgType>Alert</msgType>
  <scope>Public</scope>
  <info>
    <event>Flood warning</event>
    <description>Severe flooding expected.</description>
  </info>
</alert>`

const ingestCancelTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<alert xmlns="urn:oasis:names:tc:emergency:cap:1.2">
  <identifier>incoming-cancel-1</identifier>
  <sender>other-system@test.gov</sender>
  <sent>2024-06-01T10:00:00+00:00</sent>
  <status>Actual</status>
  <msgType>Cancel</msgType>
  <scope>Public</scope>
  <references>%s</references>
</alert>`

func TestIngestCancelResolvesMessageByReference(t *testing.T) {
	f := newFixture(t)
	ingest := NewIngestService(f.events, f.svc, logger.NewNop())
	m := f.live(t)

	events, err := f.events.ListByMessage(context.Background(), nil, m.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	keyID := uuid.New()
	f.identity.Members[f.serviceID] = append(f.identity.Members[f.serviceID], keyID)

	f.clock.Add(time.Minute)
	doc := fmt.Sprintf(ingestCancelTemplate, events[0].Reference(testDomain))
	result, err := ingest.Ingest(context.Background(), []byte(doc), broadcast.APIKeyActor(keyID))
	require.NoError(t, err)
	assert.Equal(t, "incoming-cancel-1", result.Identifier)
	assert.Equal(t, "Cancel", result.MsgType)
	require.NotNil(t, result.BroadcastMessageID)
	assert.Equal(t, m.ID, *result.BroadcastMessageID)

	got, err := f.svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, broadcast.StatusCancelled, got.Status)
	assert.Equal(t, broadcast.APIKeyActor(keyID), got.CancelledBy)
}

func TestIngestAlertIsRecordedOnly(t *testing.T) {
	f := newFixture(t)
	ingest := NewIngestService(f.events, f.svc, logger.NewNop())

	result, err := ingest.Ingest(context.Background(), []byte(ingestAlertXML), broadcast.APIKeyActor(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, "incoming-alert-1", result.Identifier)
	assert.Equal(t, "Alert", result.MsgType)
	assert.Nil(t, result.BroadcastMessageID)
}

func TestIngestCancelUnknownReference(t *testing.T) {
	f := newFixture(t)
	ingest := NewIngestService(f.events, f.svc, logger.NewNop())

	ref := fmt.Sprintf("%s/%s,2024-06-01T09:30:15+00:00", testDomain, uuid.New())
	doc := fmt.Sprintf(ingestCancelTemplate, ref)
	_, err := ingest.Ingest(context.Background(), []byte(doc), broadcast.APIKeyActor(uuid.New()))
	assert.True(t, errors.Is(err, broadcast_errors.ErrNotFound))
}

func TestIngestRejectsMalformedDocument(t *testing.T) {
	f := newFixture(t)
	ingest := NewIngestService(f.events, f.svc, logger.NewNop())

	_, err := ingest.Ingest(context.Background(), []byte("<alert>"), broadcast.APIKeyActor(uuid.New()))
	assert.True(t, errors.Is(err, broadcast_errors.ErrInvalidInput))
}
