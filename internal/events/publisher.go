// Package events publishes job notifications to Google Cloud Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"collection-service/internal/service"
)

const StatusChangedEvent = "job.status_changed"

// Publisher sends status changes to one topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPublisher connects with credentialsJSON when given, otherwise with
// application default credentials.
func NewPublisher(ctx context.Context, projectID, topicID, credentialsJSON string) (*Publisher, error) {
	if projectID == "" || topicID == "" {
		return nil, errors.New("pubsub project and topic are required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	t := client.Topic(topicID)
	t.EnableMessageOrdering = true
	return &Publisher{client: client, topic: t}, nil
}

// Message builds the Pub/Sub message for ev.
func Message(ev service.StatusChanged) (*pubsub.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", StatusChangedEvent, err)
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":    StatusChangedEvent,
			"job_id":   ev.JobID.String(),
			"job_code": ev.JobCode,
			"status":   string(ev.To),
		},
		// events of one job are delivered in order
		OrderingKey: ev.JobID.String(),
	}, nil
}

// PublishStatusChanged blocks until the server acknowledges the message.
func (p *Publisher) PublishStatusChanged(ctx context.Context, ev service.StatusChanged) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", StatusChangedEvent, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
