package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/pdalogistics-backend/pkg/config"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

// Resource names a Pub/Sub entity a process depends on. NewClient verifies
// each required resource exists and Ping re-checks them for readiness.
type Resource int

const (
	// DomainTopic is where the outbox relay publishes order and commission events.
	DomainTopic Resource = iota
	// NotificationSubscription is drained by the notification worker.
	NotificationSubscription
)

func (r Resource) String() string {
	switch r {
	case DomainTopic:
		return "domain topic"
	case NotificationSubscription:
		return "notification subscription"
	default:
		return "unknown resource"
	}
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  []Resource

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient creates a Pub/Sub v2 client and fails when any required resource
// is missing. Publishers handed out by the client have message ordering
// enabled so events sharing an ordering key arrive in commit order.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, required ...Resource) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     psClient,
		projectID:  projectID,
		cfg:        cfg,
		required:   required,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		fields := map[string]any{"project_id": projectID}
		for _, r := range required {
			fields[strings.ReplaceAll(r.String(), " ", "_")] = c.nameFor(r)
		}
		logg.Info(logg.WithFields(ctx, fields), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks every required resource still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, r := range c.required {
		if err := c.check(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) check(ctx context.Context, r Resource) error {
	name := c.nameFor(r)
	if name == "" {
		return fmt.Errorf("%s not configured", r)
	}

	var err error
	switch r {
	case DomainTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
			Topic: topicName(c.projectID, name),
		})
	case NotificationSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
			Subscription: subscriptionName(c.projectID, name),
		})
	default:
		return fmt.Errorf("unsupported pubsub resource %d", r)
	}
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", r, name)
	}
	return fmt.Errorf("checking %s %q: %w", r, name, err)
}

func (c *Client) nameFor(r Resource) string {
	switch r {
	case DomainTopic:
		return strings.TrimSpace(c.cfg.DomainTopic)
	case NotificationSubscription:
		return strings.TrimSpace(c.cfg.NotificationSubscription)
	default:
		return ""
	}
}

// NotificationSubscription returns the subscriber the notification worker drains.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	name := subscriptionName(c.projectID, c.cfg.NotificationSubscription)
	if name == "" {
		return nil
	}
	return c.client.Subscriber(name)
}

// Publisher returns the cached publisher for a topic ID or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := topicName(c.projectID, name)
	if full == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.client.Publisher(full)
	p.EnableMessageOrdering = true
	c.publishers[full] = p
	return p
}

// Close flushes pending publishes and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.publishers {
		p.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}

func subscriptionName(projectID, name string) string {
	return resourceName(projectID, "subscriptions", name)
}

func topicName(projectID, name string) string {
	return resourceName(projectID, "topics", name)
}

// resourceName expands a short ID to projects/<p>/<kind>/<id>. Fully
// qualified names pass through untouched.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}
