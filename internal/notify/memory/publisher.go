// Package memory implements an in-memory notification publisher for
// development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/secondbrain-app/article-hub/internal/notify"
)

// Publisher records published notifications.
type Publisher struct {
	mu        sync.Mutex
	published []notify.SavedArticle
}

var _ notify.Publisher = (*Publisher)(nil)

// New creates an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// PublishSaved records the notification.
func (p *Publisher) PublishSaved(_ context.Context, saved notify.SavedArticle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, saved)
	return nil
}

// Published returns a copy of every recorded notification.
func (p *Publisher) Published() []notify.SavedArticle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.SavedArticle, len(p.published))
	copy(out, p.published)
	return out
}
