package enums

import "fmt"

// EventName tags a message on the event channel.
type EventName string

const (
	EventOrderCreated            EventName = "order_created"
	EventOrderStatusUpdated      EventName = "order_status_updated"
	EventProductCreated          EventName = "product_created"
	EventInventoryUpdated        EventName = "inventory_updated"
	EventInventoryUpdatedSuccess EventName = "inventory_updated_success"
	EventInventoryUpdateFailed   EventName = "inventory_update_failed"
	EventAlertRaised             EventName = "alert_raised"
	EventRollupSnapshot          EventName = "rollup_snapshot"
)

var validEventNames = []EventName{
	EventOrderCreated,
	EventOrderStatusUpdated,
	EventProductCreated,
	EventInventoryUpdated,
	EventInventoryUpdatedSuccess,
	EventInventoryUpdateFailed,
	EventAlertRaised,
	EventRollupSnapshot,
}

// String implements fmt.Stringer.
func (e EventName) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventName.
func (e EventName) IsValid() bool {
	for _, candidate := range validEventNames {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventName converts raw input into an EventName.
func ParseEventName(value string) (EventName, error) {
	for _, candidate := range validEventNames {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event name %q", value)
}
