package pubsub

import (
	"context"
	"testing"

	"github.com/stockline/backoffice/pkg/config"
)

func TestResourceName(t *testing.T) {
	tests := []struct {
		name    string
		project string
		kind    string
		in      string
		want    string
	}{
		{name: "short topic", project: "proj", kind: "topics", in: "orders", want: "projects/proj/topics/orders"},
		{name: "full subscription", project: "proj", kind: "subscriptions", in: "projects/other/subscriptions/s", want: "projects/other/subscriptions/s"},
		{name: "blank", project: "proj", kind: "topics", in: "  ", want: ""},
		{name: "no project", project: "", kind: "topics", in: "orders", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resourceName(tt.project, tt.kind, tt.in); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSubscriptionNamesSkipsBlank(t *testing.T) {
	names := SubscriptionNames(config.PubSubConfig{
		OrderEventsSubscription: "orders-inventory",
		AlertEventsSubscription: " ",
	})
	if len(names) != 1 || names[0] != "orders-inventory" {
		t.Fatalf("unexpected subscriptions %v", names)
	}
}

func TestNonBlankTrims(t *testing.T) {
	got := nonBlank([]string{" orders ", "", "  ", "alerts"})
	if len(got) != 2 || got[0] != "orders" || got[1] != "alerts" {
		t.Fatalf("unexpected topics %v", got)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("orders") != nil || c.Subscriber("s", 1) != nil {
		t.Fatal("nil client should hand out nothing")
	}
	if err := c.Ping(context.Background()); err != errNotInitialized {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
