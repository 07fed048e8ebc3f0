package requestid

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAcceptKeepsWellFormedIDs(t *testing.T) {
	assert.Equal(t, "req-123_a.b", Accept(" req-123_a.b "))
}

func TestAcceptReplacesUnusableIDs(t *testing.T) {
	for _, raw := range []string{"", "has space", "new\nline", strings.Repeat("a", 129)} {
		got := Accept(raw)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "raw %q", raw)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, From(ctx))
	assert.Equal(t, "abc", From(With(ctx, "abc")))
}
