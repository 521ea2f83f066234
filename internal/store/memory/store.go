// Package memory provides the in-memory Article Store.
//
// Locking model: every mutation first takes the owner's mutex, which
// linearizes saves and stage moves per user, and only then the store-wide
// mutex for the brief map update. Mutations for different owners contend only
// on that short map lock, and reads proceed under the read lock concurrently
// with unrelated mutations. All reads return copies, so callers never observe
// a torn Article.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/secondbrain-app/article-hub/internal/article"
)

// Store is the authoritative in-process article collection.
type Store struct {
	idGen article.IDGenerator
	clock article.Clock

	mu      sync.RWMutex
	byID    map[string]article.Article
	byOwner map[string][]string          // article IDs, newest first
	byURL   map[string]map[string]string // owner -> url -> article ID

	ownerMu sync.Mutex
	owners  map[string]*sync.Mutex
}

var _ article.Store = (*Store)(nil)

// New constructs an empty Store.
func New(idGen article.IDGenerator, clock article.Clock) *Store {
	return &Store{
		idGen:   idGen,
		clock:   clock,
		byID:    make(map[string]article.Article),
		byOwner: make(map[string][]string),
		byURL:   make(map[string]map[string]string),
		owners:  make(map[string]*sync.Mutex),
	}
}

// ownerLock returns the mutex serializing mutations for one owner.
func (s *Store) ownerLock(ownerID string) *sync.Mutex {
	s.ownerMu.Lock()
	defer s.ownerMu.Unlock()
	l, ok := s.owners[ownerID]
	if !ok {
		l = &sync.Mutex{}
		s.owners[ownerID] = l
	}
	return l
}

// Create saves url for ownerID in StageInbox. A URL the owner already saved,
// in any stage, fails with *article.DuplicateError carrying the existing
// record.
func (s *Store) Create(_ context.Context, ownerID, url string) (article.Article, error) {
	if ownerID == "" || url == "" {
		return article.Article{}, fmt.Errorf("owner id and url are required")
	}

	l := s.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	existingID, dup := s.byURL[ownerID][url]
	existing := s.byID[existingID]
	s.mu.RUnlock()
	if dup {
		return article.Article{}, &article.DuplicateError{Existing: existing}
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return article.Article{}, fmt.Errorf("generate article id: %w", err)
	}
	now := s.clock.Now()
	art := article.Article{
		ID:        id,
		OwnerID:   ownerID,
		URL:       url,
		Stage:     article.StageInbox,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.byID[id] = art
	s.byOwner[ownerID] = append([]string{id}, s.byOwner[ownerID]...)
	if s.byURL[ownerID] == nil {
		s.byURL[ownerID] = make(map[string]string)
	}
	s.byURL[ownerID][url] = id
	s.mu.Unlock()

	return art, nil
}

// ListByOwner returns ownerID's articles newest first, optionally filtered by
// stage (empty stage means all).
func (s *Store) ListByOwner(_ context.Context, ownerID string, stage article.Stage) ([]article.Article, error) {
	if stage != "" && !stage.Valid() {
		return nil, article.ErrInvalidStage
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	out := make([]article.Article, 0, len(ids))
	for _, id := range ids {
		art := s.byID[id]
		if stage != "" && art.Stage != stage {
			continue
		}
		out = append(out, art)
	}
	return out, nil
}

// MoveStage transitions the article to stage. Foreign and unknown IDs are
// indistinguishable: both fail with article.ErrNotFound.
func (s *Store) MoveStage(_ context.Context, id, ownerID string, stage article.Stage) (article.Article, error) {
	if !stage.Valid() {
		return article.Article{}, article.ErrInvalidStage
	}

	l := s.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	art, ok := s.byID[id]
	if !ok || art.OwnerID != ownerID {
		return article.Article{}, article.ErrNotFound
	}
	if art.Stage == stage {
		return art, nil
	}
	art.Stage = stage
	art.UpdatedAt = s.clock.Now()
	s.byID[id] = art
	return art, nil
}

// SetTitle records enrichment metadata under the same ownership rules as
// MoveStage.
func (s *Store) SetTitle(_ context.Context, id, ownerID, title string) error {
	l := s.ownerLock(ownerID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	art, ok := s.byID[id]
	if !ok || art.OwnerID != ownerID {
		return article.ErrNotFound
	}
	art.Title = title
	art.UpdatedAt = s.clock.Now()
	s.byID[id] = art
	return nil
}

// StatsAll counts articles per stage across every owner.
func (s *Store) StatsAll(_ context.Context) (article.StageCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := emptyCounts()
	for _, art := range s.byID {
		counts[art.Stage]++
	}
	return counts, nil
}

// StatsByOwner counts ownerID's articles per stage.
func (s *Store) StatsByOwner(_ context.Context, ownerID string) (article.StageCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := emptyCounts()
	for _, id := range s.byOwner[ownerID] {
		counts[s.byID[id].Stage]++
	}
	return counts, nil
}

// All returns a consistent copy of every article for snapshotting. The lock
// is held only for the copy, never for snapshot I/O.
func (s *Store) All(_ context.Context) ([]article.Article, error) {
	s.mu.RLock()
	out := make([]article.Article, 0, len(s.byID))
	for _, art := range s.byID {
		out = append(out, art)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Replace rebuilds the store from arts, used when restoring a snapshot. The
// incoming set must itself satisfy the store invariants.
func (s *Store) Replace(_ context.Context, arts []article.Article) error {
	byID := make(map[string]article.Article, len(arts))
	byURL := make(map[string]map[string]string)
	perOwner := make(map[string][]article.Article)

	for _, art := range arts {
		if art.ID == "" || art.OwnerID == "" || art.URL == "" {
			return fmt.Errorf("restore: article missing id, owner or url")
		}
		if !art.Stage.Valid() {
			return fmt.Errorf("restore: article %s: %w", art.ID, article.ErrInvalidStage)
		}
		if _, exists := byID[art.ID]; exists {
			return fmt.Errorf("restore: duplicate article id %s", art.ID)
		}
		byID[art.ID] = art
		if byURL[art.OwnerID] == nil {
			byURL[art.OwnerID] = make(map[string]string)
		}
		if _, exists := byURL[art.OwnerID][art.URL]; exists {
			return fmt.Errorf("restore: duplicate url %s for owner %s", art.URL, art.OwnerID)
		}
		byURL[art.OwnerID][art.URL] = art.ID
		perOwner[art.OwnerID] = append(perOwner[art.OwnerID], art)
	}

	byOwner := make(map[string][]string, len(perOwner))
	for owner, list := range perOwner {
		sort.Slice(list, func(i, j int) bool {
			if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].CreatedAt.After(list[j].CreatedAt)
			}
			return list[i].ID > list[j].ID
		})
		ids := make([]string, len(list))
		for i, art := range list {
			ids[i] = art.ID
		}
		byOwner[owner] = ids
	}

	s.mu.Lock()
	s.byID = byID
	s.byOwner = byOwner
	s.byURL = byURL
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored articles.
func (s *Store) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func emptyCounts() article.StageCounts {
	counts := make(article.StageCounts, len(article.Stages()))
	for _, st := range article.Stages() {
		counts[st] = 0
	}
	return counts
}
