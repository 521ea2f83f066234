// Package stats provides read-only aggregation over the Article Store for
// dashboard responses and command replies. It never mutates the store.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/secondbrain-app/article-hub/internal/article"
)

// Scope selects whose articles command-surface aggregates cover.
type Scope string

const (
	// ScopeOwner aggregates only the requesting user's articles.
	ScopeOwner Scope = "owner"
	// ScopeGlobal aggregates across all users. This is the one documented
	// exception to per-owner visibility, reserved for admin-style commands.
	ScopeGlobal Scope = "global"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeOwner || s == ScopeGlobal
}

// Service aggregates article counts and listings.
type Service struct {
	store article.Store
	scope Scope
}

// New constructs a Service. scope governs PerStage for the command surface;
// the dashboard API always uses owner-scoped calls.
func New(store article.Store, scope Scope) (*Service, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("invalid stats scope %q", scope)
	}
	return &Service{store: store, scope: scope}, nil
}

// Scope returns the configured command-surface scope.
func (s *Service) Scope() Scope {
	return s.scope
}

// PerStage returns stage counts for ownerID under the configured scope.
func (s *Service) PerStage(ctx context.Context, ownerID string) (article.StageCounts, error) {
	if s.scope == ScopeGlobal {
		return s.store.StatsAll(ctx)
	}
	return s.store.StatsByOwner(ctx, ownerID)
}

// OwnerPerStage returns stage counts for ownerID regardless of scope.
func (s *Service) OwnerPerStage(ctx context.Context, ownerID string) (article.StageCounts, error) {
	return s.store.StatsByOwner(ctx, ownerID)
}

// Recent returns ownerID's newest articles, at most limit.
func (s *Service) Recent(ctx context.Context, ownerID string, limit int) ([]article.Article, error) {
	arts, err := s.store.ListByOwner(ctx, ownerID, "")
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(arts) > limit {
		arts = arts[:limit]
	}
	return arts, nil
}

// SavedSince returns ownerID's articles created at or after since, newest
// first.
func (s *Service) SavedSince(ctx context.Context, ownerID string, since time.Time) ([]article.Article, error) {
	arts, err := s.store.ListByOwner(ctx, ownerID, "")
	if err != nil {
		return nil, err
	}
	out := make([]article.Article, 0, len(arts))
	for _, art := range arts {
		if !art.CreatedAt.Before(since) {
			out = append(out, art)
		}
	}
	return out, nil
}
