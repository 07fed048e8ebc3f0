package enums

import "fmt"

// AlertType is the severity tag attached to an alert. The set is open: unknown
// tags are stored as free text.
type AlertType string

const (
	AlertTypeLow      AlertType = "low"
	AlertTypeMedium   AlertType = "medium"
	AlertTypeHigh     AlertType = "high"
	AlertTypeCritical AlertType = "critical"
)

var knownAlertTypes = []AlertType{
	AlertTypeLow,
	AlertTypeMedium,
	AlertTypeHigh,
	AlertTypeCritical,
}

// IsKnown reports whether the tag is one of the canonical severities.
func (a AlertType) IsKnown() bool {
	for _, candidate := range knownAlertTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// AlertStatus tracks whether an alert reached any connected dashboard.
type AlertStatus string

const (
	AlertStatusPending AlertStatus = "pending"
	AlertStatusSent    AlertStatus = "sent"
	AlertStatusFailed  AlertStatus = "failed"
)

var validAlertStatuses = []AlertStatus{
	AlertStatusPending,
	AlertStatusSent,
	AlertStatusFailed,
}

// IsValid reports whether the value is a known AlertStatus.
func (a AlertStatus) IsValid() bool {
	for _, candidate := range validAlertStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertStatus converts raw input into an AlertStatus.
func ParseAlertStatus(value string) (AlertStatus, error) {
	for _, candidate := range validAlertStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert status %q", value)
}
