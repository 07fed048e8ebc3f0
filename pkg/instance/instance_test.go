package instance

import "testing"

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("BACKOFFICE_INSTANCE_ID", "orders-7")
	if got := GetID(); got != "orders-7" {
		t.Fatalf("expected orders-7, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("BACKOFFICE_INSTANCE_ID", "")
	if got := GetID(); got == "" {
		t.Fatal("expected a non-empty fallback id")
	}
}
