package article

import (
	"context"
	"time"
)

// Store owns all authoritative Article state. Implementations must linearize
// mutations per owner: two concurrent saves or stage moves for one user must
// not interleave in a way that violates the (owner, url) uniqueness
// invariant, while mutations for unrelated owners must not block each other.
// Reads observe consistent snapshots, never torn articles.
type Store interface {
	// Create saves url for owner in StageInbox. If the owner already has an
	// article with the same URL, in any stage, it fails with *DuplicateError.
	Create(ctx context.Context, ownerID, url string) (Article, error)

	// ListByOwner returns the owner's articles newest first. An empty stage
	// means all stages.
	ListByOwner(ctx context.Context, ownerID string, stage Stage) ([]Article, error)

	// MoveStage transitions an article to stage. It fails with ErrNotFound if
	// the article does not exist or does not belong to ownerID, and succeeds
	// idempotently if the article is already in stage.
	MoveStage(ctx context.Context, id, ownerID string, stage Stage) (Article, error)

	// SetTitle records enrichment metadata. Same ownership rules as MoveStage.
	SetTitle(ctx context.Context, id, ownerID, title string) error

	// StatsAll aggregates per-stage counts across every owner.
	StatsAll(ctx context.Context) (StageCounts, error)

	// StatsByOwner aggregates per-stage counts for one owner.
	StatsByOwner(ctx context.Context, ownerID string) (StageCounts, error)

	// All returns a consistent copy of every article, for snapshots.
	All(ctx context.Context) ([]Article, error)

	// Replace discards current state and loads arts, for restores.
	Replace(ctx context.Context, arts []Article) error

	// Len reports the number of stored articles.
	Len(ctx context.Context) (int, error)
}

// IDGenerator produces unique article identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock abstracts time.Now so stores and the engine are testable.
type Clock interface {
	Now() time.Time
}
