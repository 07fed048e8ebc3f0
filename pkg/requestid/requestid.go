// Package requestid carries the correlation id of an inbound request so
// outbound calls can forward it.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header carries the correlation id in both directions.
const Header = "X-Request-Id"

const maxLen = 128

type ctxKey struct{}

func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the id stored on ctx, or "".
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Accept returns the caller's id when it is usable and a fresh uuid
// otherwise. Ids longer than 128 bytes or containing anything other than
// letters, digits, '-', '_' and '.' are replaced.
func Accept(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxLen || strings.IndexFunc(id, invalid) >= 0 {
		return uuid.NewString()
	}
	return id
}

func invalid(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case r == '-' || r == '_' || r == '.':
		return false
	}
	return true
}
