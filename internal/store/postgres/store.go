// Package postgres provides a Postgres-backed article store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secondbrain-app/article-hub/internal/article"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for article rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// Store persists articles in Postgres. Uniqueness of (owner_id, url) is
// enforced by the table's constraint, so concurrent saves of the same URL
// resolve to exactly one row without application-level locking.
type Store struct {
	pool  pool
	table string
	idGen article.IDGenerator
	clock article.Clock
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, idGen article.IDGenerator, clock article.Clock, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, table: table, idGen: idGen, clock: clock}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string, idGen article.IDGenerator, clock article.Clock) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table, idGen: idGen, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the article table and its indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	url        TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	stage      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (owner_id, url)
);
CREATE INDEX IF NOT EXISTS %[1]s_owner_created_idx ON %[1]s (owner_id, created_at DESC)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const columns = "id, owner_id, url, title, stage, created_at, updated_at"

// Create inserts a new inbox article for ownerID. Saving a URL the owner
// already has, in any stage, returns a DuplicateError carrying the existing
// row.
func (s *Store) Create(ctx context.Context, ownerID, url string) (article.Article, error) {
	if ownerID == "" {
		return article.Article{}, fmt.Errorf("owner id is required")
	}
	if url == "" {
		return article.Article{}, fmt.Errorf("url is required")
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

	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (owner_id, url) DO NOTHING`, s.table, columns)
	tag, err := s.pool.Exec(ctx, query,
		art.ID, art.OwnerID, art.URL, art.Title, string(art.Stage), art.CreatedAt, art.UpdatedAt)
	if err != nil {
		return article.Article{}, fmt.Errorf("insert article: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.getByOwnerURL(ctx, ownerID, url)
		if err != nil {
			return article.Article{}, err
		}
		return article.Article{}, &article.DuplicateError{Existing: existing}
	}
	return art, nil
}

func (s *Store) getByOwnerURL(ctx context.Context, ownerID, url string) (article.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 AND url = $2`, columns, s.table)
	art, err := scanArticle(s.pool.QueryRow(ctx, query, ownerID, url))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return article.Article{}, article.ErrNotFound
		}
		return article.Article{}, fmt.Errorf("select article: %w", err)
	}
	return art, nil
}

// ListByOwner returns ownerID's articles newest first, optionally filtered
// by stage. An empty stage selects all stages.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, stage article.Stage) ([]article.Article, error) {
	if stage != "" && !stage.Valid() {
		return nil, article.ErrInvalidStage
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1`, columns, s.table)
	args := []any{ownerID}
	if stage != "" {
		query += ` AND stage = $2`
		args = append(args, string(stage))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return scanArticles(rows)
}

// MoveStage transitions the owner's article to stage. Moving to the current
// stage is a no-op that leaves UpdatedAt untouched.
func (s *Store) MoveStage(ctx context.Context, id, ownerID string, stage article.Stage) (article.Article, error) {
	if !stage.Valid() {
		return article.Article{}, article.ErrInvalidStage
	}
	query := fmt.Sprintf(`
UPDATE %s
SET stage = $1,
	updated_at = CASE WHEN stage = $1 THEN updated_at ELSE $2 END
WHERE id = $3 AND owner_id = $4
RETURNING %s`, s.table, columns)
	art, err := scanArticle(s.pool.QueryRow(ctx, query, string(stage), s.clock.Now(), id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return article.Article{}, article.ErrNotFound
		}
		return article.Article{}, fmt.Errorf("move article: %w", err)
	}
	return art, nil
}

// SetTitle records a fetched page title on the owner's article.
func (s *Store) SetTitle(ctx context.Context, id, ownerID, title string) error {
	query := fmt.Sprintf(`UPDATE %s SET title = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4`, s.table)
	tag, err := s.pool.Exec(ctx, query, title, s.clock.Now(), id, ownerID)
	if err != nil {
		return fmt.Errorf("set title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return article.ErrNotFound
	}
	return nil
}

// StatsAll returns per-stage counts across all owners.
func (s *Store) StatsAll(ctx context.Context) (article.StageCounts, error) {
	query := fmt.Sprintf(`SELECT stage, COUNT(*) FROM %s GROUP BY stage`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}
	return scanCounts(rows)
}

// StatsByOwner returns per-stage counts for a single owner.
func (s *Store) StatsByOwner(ctx context.Context, ownerID string) (article.StageCounts, error) {
	query := fmt.Sprintf(`SELECT stage, COUNT(*) FROM %s WHERE owner_id = $1 GROUP BY stage`, s.table)
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}
	return scanCounts(rows)
}

// All returns every article, newest first.
func (s *Store) All(ctx context.Context) ([]article.Article, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id DESC`, columns, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all articles: %w", err)
	}
	return scanArticles(rows)
}

// Replace atomically swaps the table contents for arts. It is used when
// restoring from a snapshot.
func (s *Store) Replace(ctx context.Context, arts []article.Article) error {
	seenID := make(map[string]struct{}, len(arts))
	seenURL := make(map[string]struct{}, len(arts))
	for _, art := range arts {
		if !art.Stage.Valid() {
			return fmt.Errorf("article %s: %w", art.ID, article.ErrInvalidStage)
		}
		if _, ok := seenID[art.ID]; ok {
			return fmt.Errorf("duplicate article id %s", art.ID)
		}
		seenID[art.ID] = struct{}{}
		key := art.OwnerID + "\x00" + art.URL
		if _, ok := seenURL[key]; ok {
			return fmt.Errorf("duplicate url %s for owner %s", art.URL, art.OwnerID)
		}
		seenURL[key] = struct{}{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("clear articles: %w", err)
	}
	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7)`, s.table, columns)
	for _, art := range arts {
		if _, err := tx.Exec(ctx, insert,
			art.ID, art.OwnerID, art.URL, art.Title, string(art.Stage), art.CreatedAt, art.UpdatedAt); err != nil {
			return fmt.Errorf("insert article %s: %w", art.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// Len returns the total number of stored articles.
func (s *Store) Len(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	var n int
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

func scanArticle(row pgx.Row) (article.Article, error) {
	var art article.Article
	var stage string
	if err := row.Scan(&art.ID, &art.OwnerID, &art.URL, &art.Title, &stage, &art.CreatedAt, &art.UpdatedAt); err != nil {
		return article.Article{}, err
	}
	art.Stage = article.Stage(stage)
	return art, nil
}

func scanArticles(rows pgx.Rows) ([]article.Article, error) {
	defer rows.Close()
	var out []article.Article
	for rows.Next() {
		art, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, art)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}
	return out, nil
}

func scanCounts(rows pgx.Rows) (article.StageCounts, error) {
	defer rows.Close()
	counts := article.StageCounts{}
	for _, st := range article.Stages() {
		counts[st] = 0
	}
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[article.Stage(stage)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read counts: %w", err)
	}
	return counts, nil
}
