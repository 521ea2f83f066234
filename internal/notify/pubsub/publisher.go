// Package pubsub implements a Google Cloud Pub/Sub notification publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/secondbrain-app/article-hub/internal/notify"
)

// Publisher sends saved-article notifications to a Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

var _ notify.Publisher = (*Publisher)(nil)

// New creates a Publisher for the named topic.
func New(client *pubsub.Client, topicID string) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client is required")
	}
	if topicID == "" {
		return nil, fmt.Errorf("topic id is required")
	}
	return &Publisher{topic: client.Topic(topicID)}, nil
}

// PublishSaved marshals the notification to JSON and publishes it, blocking
// until the server acknowledges.
func (p *Publisher) PublishSaved(ctx context.Context, saved notify.SavedArticle) error {
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"owner_id": saved.OwnerID},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() {
	p.topic.Stop()
}
