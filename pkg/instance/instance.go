package instance

import (
	"os"
	"strings"
)

// GetID returns the process instance identifier: BACKOFFICE_INSTANCE_ID,
// then the hostname, then a fixed default.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("BACKOFFICE_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
