package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model so migrations and tests can register the full schema.
func All() []any {
	return []any{
		&Category{},
		&Product{},
		&Order{},
		&OrderItem{},
		&Alert{},
		&Customer{},
		&AnalyticsEvent{},
		&RollupSnapshot{},
	}
}

