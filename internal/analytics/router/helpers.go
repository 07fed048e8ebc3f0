package router

import (
	"strings"
	"time"
)

// OccurredAt returns the first non-zero candidate in UTC, or the current
// time when every candidate is zero.
func OccurredAt(candidates ...time.Time) time.Time {
	for _, t := range candidates {
		if !t.IsZero() {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
