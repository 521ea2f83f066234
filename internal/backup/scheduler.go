package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/secondbrain-app/article-hub/internal/article"
	"github.com/secondbrain-app/article-hub/internal/blob"
	"github.com/secondbrain-app/article-hub/internal/metrics"
)

// Config controls snapshot naming and cadence.
type Config struct {
	ObjectName  string
	ContentType string
	Interval    time.Duration
	Timeout     time.Duration
}

// Status describes the most recent snapshot attempt.
type Status struct {
	LastRun  time.Time `json:"last_run"`
	LastURI  string    `json:"last_uri,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
	Articles int       `json:"articles"`
}

// Scheduler writes periodic snapshots of the Article Store. The store read is
// copy-on-read; no store lock is held during blob I/O.
type Scheduler struct {
	store  article.Store
	blobs  blob.Store
	clock  article.Clock
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	status Status
}

// New constructs a Scheduler.
func New(store article.Store, blobs blob.Store, clock article.Clock, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.ObjectName == "" {
		cfg.ObjectName = "articles.json"
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Interval {
		cfg.Timeout = cfg.Interval
	}
	return &Scheduler{
		store:  store,
		blobs:  blobs,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// Run snapshots the store on every tick until ctx is canceled. A tick that
// overruns its timeout is abandoned and retried on the next tick; snapshot
// failures are logged, never fatal.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("backup scheduler started", zap.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
			if _, err := s.RunOnce(tickCtx); err != nil {
				s.logger.Error("snapshot failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// RunOnce takes one snapshot now and returns the resulting status.
func (s *Scheduler) RunOnce(ctx context.Context) (Status, error) {
	start := time.Now()
	status, err := s.snapshot(ctx)
	metrics.ObserveBackup(err == nil, time.Since(start))
	return status, err
}

func (s *Scheduler) snapshot(ctx context.Context) (Status, error) {
	arts, err := s.store.All(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("read store: %w", err))
	}
	raw, err := Encode(Snapshot{
		Version:   snapshotVersion,
		CreatedAt: s.clock.Now(),
		Articles:  arts,
	})
	if err != nil {
		return s.fail(err)
	}
	uri, err := s.blobs.Put(ctx, s.cfg.ObjectName, s.cfg.ContentType, bytes.NewReader(raw))
	if err != nil {
		return s.fail(fmt.Errorf("write snapshot: %w", err))
	}

	s.mu.Lock()
	s.status = Status{LastRun: s.clock.Now(), LastURI: uri, Articles: len(arts)}
	status := s.status
	s.mu.Unlock()

	s.logger.Debug("snapshot written", zap.String("uri", uri), zap.Int("articles", len(arts)))
	return status, nil
}

func (s *Scheduler) fail(err error) (Status, error) {
	s.mu.Lock()
	s.status.LastRun = s.clock.Now()
	s.status.LastErr = err.Error()
	status := s.status
	s.mu.Unlock()
	return status, err
}

// Status returns the most recent snapshot status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Restore loads the latest snapshot into the store when the store is empty.
// A missing snapshot is not an error (first boot); a corrupt snapshot is,
// since serving with silently lost data is worse than refusing to start.
func (s *Scheduler) Restore(ctx context.Context) error {
	n, err := s.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("check store: %w", err)
	}
	if n > 0 {
		s.logger.Info("store already populated, skipping restore", zap.Int("articles", n))
		return nil
	}

	reader, err := s.blobs.Get(ctx, s.cfg.ObjectName)
	if errors.Is(err, blob.ErrNotExist) {
		s.logger.Info("no snapshot found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := Decode(raw)
	if err != nil {
		return err
	}
	if err := s.store.Replace(ctx, snap.Articles); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.logger.Info("restored from snapshot",
		zap.Int("articles", len(snap.Articles)),
		zap.Time("snapshot_created_at", snap.CreatedAt),
	)
	return nil
}
