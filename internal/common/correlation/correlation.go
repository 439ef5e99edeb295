// Package correlation carries the per-request correlation identifier through
// context. The identifier is adopted from the boundary header when the caller
// supplies one, generated otherwise, and travels with every log record,
// published event, and audit document produced while the context is active.
package correlation

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the boundary header the identifier is read from and mirrored to.
const Header = "X-Correlation-ID"

type ctxKeyType string

const ctxCorrelationKey ctxKeyType = "CorrelationID"

// NewID generates an opaque correlation identifier, "req-" followed by
// 16 hex characters.
func NewID() string {
	u := uuid.New()
	return "req-" + strings.ReplaceAll(u.String(), "-", "")[:16]
}

// WithID stores the identifier in the context.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCorrelationKey, id)
}

// FromContext returns the identifier bound to the context, or "" if none.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxCorrelationKey).(string); ok {
		return id
	}
	return ""
}
