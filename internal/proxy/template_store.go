package proxy

import (
	"context"
	"strings"

	broadcast_errors "cell-broadcast/pkg/errors"

	"github.com/google/uuid"
)

// Character limits after encoding. Content outside the GSM7 repertoire is
// carried as UCS-2, which halves the budget.
const (
	GSM7ContentLimit = 1395
	UCS2ContentLimit = 615
)

// TemplateStore renders broadcast content from a stored template version and
// reports content-too-long verdicts. Backed by the external template system.
type TemplateStore interface {
	Render(ctx context.Context, templateID uuid.UUID, version int, personalisation map[string]string) (string, error)
}

// StaticTemplateStore holds raw template bodies in memory, keyed by
// template id. Placeholders use ((name)) syntax.
type StaticTemplateStore struct {
	Templates map[uuid.UUID]string
}

func (s *StaticTemplateStore) Render(ctx context.Context, templateID uuid.UUID, version int, personalisation map[string]string) (string, error) {
	body, ok := s.Templates[templateID]
	if !ok {
		return "", broadcast_errors.ErrNotFound
	}
	for key, value := range personalisation {
		body = strings.ReplaceAll(body, "(("+key+"))", value)
	}
	if err := CheckContentLength(body); err != nil {
		return "", err
	}
	return body, nil
}

// CheckContentLength applies the encoding-aware limit and returns an error
// carrying the exact limit that was exceeded.
func CheckContentLength(content string) error {
	limit := GSM7ContentLimit
	if !GSM7Encodable(content) {
		limit = UCS2ContentLimit
	}
	if len([]rune(content)) > limit {
		return &broadcast_errors.ContentTooLongError{Limit: limit}
	}
	return nil
}

// gsm7 is the basic GSM 03.38 character set plus the extension table.
var gsm7 = func() map[rune]bool {
	const chars = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà" +
		"^{}\\[~]|€"
	set := make(map[rune]bool, len(chars))
	for _, r := range chars {
		set[r] = true
	}
	return set
}()

// GSM7Encodable reports whether every rune fits the GSM7 repertoire.
func GSM7Encodable(content string) bool {
	for _, r := range content {
		if !gsm7[r] {
			return false
		}
	}
	return true
}
