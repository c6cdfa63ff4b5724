package middleware

import (
	"context"
	"regexp"

	"github.com/chatflow-ai/chatflow/pkg/domain"
	"github.com/chatflow-ai/chatflow/pkg/ports"
)

// Mask replaces every redacted span.
const Mask = "***"

type piiMiddleware struct {
	ports.Store
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks spans of message text
// matching any of the patterns before they are stored. Redacted spans are
// also hidden from AI history.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.Store) ports.Store {
		return &piiMiddleware{Store: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) AppendMessageLog(ctx context.Context, entry *domain.MessageLog) error {
	// Copy so the caller's entry keeps the original text.
	masked := *entry
	masked.Text = m.mask(entry.Text)
	if err := m.Store.AppendMessageLog(ctx, &masked); err != nil {
		return err
	}
	entry.ID = masked.ID
	return nil
}

func (m *piiMiddleware) mask(text string) string {
	for _, p := range m.patterns {
		text = p.ReplaceAllString(text, Mask)
	}
	return text
}
