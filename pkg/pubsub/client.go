// Package pubsub connects the mail relay to the Pub/Sub topic consumed by the
// mail delivery extension.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/josima5/venda-projetos-sub001/pkg/config"
	"github.com/josima5/venda-projetos-sub001/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoMailTopic       = errors.New("pubsub mail topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client holds the connection and the publisher for the mail topic.
type Client struct {
	client    *pubsub.Client
	mailTopic string
	mail      *pubsub.Publisher
}

// NewClient connects with the configured credentials and fails when the
// mail topic is missing. Topics are provisioned outside the relay.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topic := TopicResourceName(projectID, cfg.MailTopic)
	if topic == "" {
		return nil, errNoMailTopic
	}

	ps, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, mailTopic: topic}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	c.mail = ps.Publisher(topic)

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// MailPublisher is nil until NewClient succeeds.
func (c *Client) MailPublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.mail
}

// Ping checks that the mail topic still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.mailTopic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.mailTopic)
	default:
		return fmt.Errorf("checking topic %q: %w", c.mailTopic, err)
	}
}

// Close flushes pending publishes before closing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.mail != nil {
		c.mail.Stop()
	}
	return c.client.Close()
}

// TopicResourceName expands a topic id to projects/<p>/topics/<id> and
// leaves full resource names alone. It returns "" when either part is
// missing.
func TopicResourceName(projectID, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + topic
}
