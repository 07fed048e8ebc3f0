// Package pubsub owns the Google Cloud Pub/Sub v2 connection used by the
// pubsub event bus driver.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client holds the connection and one publisher per topic.
type Client struct {
	client  *pubsub.Client
	project string
	topics  []string
	subs    []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and verifies that every topic in topics and every
// configured subscription exists. Topics and subscriptions are never
// created here; provisioning belongs to infrastructure.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, topics []string, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}

	ps, err := pubsub.NewClient(ctx, project, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     ps,
		project:    project,
		topics:     nonBlank(topics),
		subs:       SubscriptionNames(cfg),
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.verify(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"pubsub_project":       project,
			"pubsub_topics":        c.topics,
			"pubsub_subscriptions": c.subs,
		}), "pubsub client initialized")
	}
	return c, nil
}

// SubscriptionNames returns the non-empty subscriptions from cfg.
func SubscriptionNames(cfg config.PubSubConfig) []string {
	return nonBlank([]string{
		cfg.OrderEventsSubscription,
		cfg.ProductEventsSubscription,
		cfg.AnalyticsEventsSubscription,
		cfg.AlertEventsSubscription,
	})
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// verify looks up every topic and subscription concurrently.
func (c *Client) verify(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range c.topics {
		g.Go(func() error {
			_, err := c.client.TopicAdminClient.GetTopic(gctx, &pubsubpb.GetTopicRequest{Topic: c.topicName(topic)})
			return lookupError("topic", topic, err)
		})
	}
	for _, sub := range c.subs {
		g.Go(func() error {
			_, err := c.client.SubscriptionAdminClient.GetSubscription(gctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscriptionName(sub)})
			return lookupError("subscription", sub, err)
		})
	}
	return g.Wait()
}

func lookupError(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
}

// Subscriber returns a handle for a subscription ID or full resource name.
// maxOutstanding > 0 bounds in-flight messages to a single receiver.
func (c *Client) Subscriber(name string, maxOutstanding int) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.subscriptionName(name)
	if full == "" {
		return nil
	}
	sub := c.client.Subscriber(full)
	if maxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
		sub.ReceiveSettings.NumGoroutines = 1
	}
	return sub
}

// Publisher returns the cached publisher for a topic ID or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.topicName(name)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.publishers[full]
	if !ok {
		pub = c.client.Publisher(full)
		c.publishers[full] = pub
	}
	return pub
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

// Close flushes pending publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for full, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, full)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *Client) subscriptionName(name string) string {
	return resourceName(c.project, "subscriptions", name)
}

func (c *Client) topicName(name string) string {
	return resourceName(c.project, "topics", name)
}

// resourceName expands a short id to projects/<p>/<kind>/<id>. Full
// resource names pass through unchanged.
func resourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	case strings.TrimSpace(project) == "":
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", strings.TrimSpace(project), kind, name)
}
