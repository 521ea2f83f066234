// Package notify publishes saved-article notifications for downstream
// consumers such as the enrichment pipeline. Publishing is best effort; the
// article lifecycle never depends on delivery.
package notify

import (
	"context"
	"time"
)

// SavedArticle is the notification payload for one saved article.
type SavedArticle struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"owner_id"`
	URL     string    `json:"url"`
	SavedAt time.Time `json:"saved_at"`
}

// Publisher delivers saved-article notifications.
type Publisher interface {
	PublishSaved(ctx context.Context, saved SavedArticle) error
}

// Noop is a Publisher that discards every notification.
type Noop struct{}

// PublishSaved does nothing and always succeeds.
func (Noop) PublishSaved(context.Context, SavedArticle) error {
	return nil
}
