package proxy

import (
	"context"
	"errors"
	"strings"
	"testing"

	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGSM7Encodable(t *testing.T) {
	assert.True(t, GSM7Encodable("Severe flood warning for Manchester @ 09:30"))
	assert.True(t, GSM7Encodable("£5 fine! ÄÖÑÜ €"))
	assert.False(t, GSM7Encodable("Rybnä ulice uzavřena"))
	assert.False(t, GSM7Encodable("警報"))
}

func TestCheckContentLengthGSM7(t *testing.T) {
	assert.NoError(t, CheckContentLength(strings.Repeat("a", GSM7ContentLimit)))

	err := CheckContentLength(strings.Repeat("a", GSM7ContentLimit+1))
	var tooLong *broadcast_errors.ContentTooLongError
	require.True(t, errors.As(err, &tooLong))
	assert.Equal(t, GSM7ContentLimit, tooLong.Limit)
	assert.True(t, errors.Is(err, broadcast_errors.ErrContentTooLong))
}

func TestCheckContentLengthUCS2(t *testing.T) {
	assert.NoError(t, CheckContentLength(strings.Repeat("ř", UCS2ContentLimit)))

	err := CheckContentLength(strings.Repeat("ř", UCS2ContentLimit+1))
	var tooLong *broadcast_errors.ContentTooLongError
	require.True(t, errors.As(err, &tooLong))
	assert.Equal(t, UCS2ContentLimit, tooLong.Limit)
}

func TestStaticTemplateStoreRender(t *testing.T) {
	id := uuid.New()
	store := &StaticTemplateStore{Templates: map[uuid.UUID]string{
		id: "Flooding expected in ((area)). Move to higher ground.",
	}}

	content, err := store.Render(context.Background(), id, 1, map[string]string{"area": "Salford"})
	require.NoError(t, err)
	assert.Equal(t, "Flooding expected in Salford. Move to higher ground.", content)

	_, err = store.Render(context.Background(), uuid.New(), 1, nil)
	assert.True(t, errors.Is(err, broadcast_errors.ErrNotFound))
}

func TestStaticTemplateStoreRenderEnforcesLimit(t *testing.T) {
	id := uuid.New()
	store := &StaticTemplateStore{Templates: map[uuid.UUID]string{
		id: strings.Repeat("x", GSM7ContentLimit+1),
	}}
	_, err := store.Render(context.Background(), id, 1, nil)
	assert.True(t, errors.Is(err, broadcast_errors.ErrContentTooLong))
}
