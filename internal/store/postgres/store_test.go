package postgres

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/secondbrain-app/article-hub/internal/article"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type seqIDs struct {
	mu   sync.Mutex
	next int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return "id-" + strconv.Itoa(g.next), nil
}

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "articles", &seqIDs{}, &fakeClock{now: time.Unix(1700000000, 0).UTC()})
	require.NoError(t, err)
	return store, mock
}

func TestCreateInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	mock.ExpectExec("INSERT INTO articles").
		WithArgs("id-1", "alice", "https://example.com/a", "", "inbox", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	art, err := store.Create(context.Background(), "alice", "https://example.com/a")
	require.NoError(t, err)
	require.Equal(t, "id-1", art.ID)
	require.Equal(t, article.StageInbox, art.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateReturnsExisting(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	created := time.Unix(1600000000, 0).UTC()

	mock.ExpectExec("INSERT INTO articles").
		WithArgs(pgxmock.AnyArg(), "alice", "https://example.com/a", "", "inbox", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT id, owner_id, url, title, stage, created_at, updated_at FROM articles WHERE owner_id").
		WithArgs("alice", "https://example.com/a").
		WillReturnRows(pgxmock.NewRows([]string{"id", "owner_id", "url", "title", "stage", "created_at", "updated_at"}).
			AddRow("id-old", "alice", "https://example.com/a", "Old", "reading", created, created))

	_, err := store.Create(context.Background(), "alice", "https://example.com/a")
	existing, ok := article.IsDuplicate(err)
	require.True(t, ok)
	require.Equal(t, "id-old", existing.ID)
	require.Equal(t, article.StageReading, existing.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwnerFiltersStage(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	created := time.Unix(1600000000, 0).UTC()

	mock.ExpectQuery("SELECT .+ FROM articles WHERE owner_id = \\$1 AND stage = \\$2").
		WithArgs("alice", "done").
		WillReturnRows(pgxmock.NewRows([]string{"id", "owner_id", "url", "title", "stage", "created_at", "updated_at"}).
			AddRow("id-2", "alice", "https://b.com", "", "done", created.Add(time.Hour), created.Add(time.Hour)).
			AddRow("id-1", "alice", "https://a.com", "", "done", created, created))

	arts, err := store.ListByOwner(context.Background(), "alice", article.StageDone)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	require.Equal(t, "id-2", arts[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = store.ListByOwner(context.Background(), "alice", article.Stage("archived"))
	require.ErrorIs(t, err, article.ErrInvalidStage)
}

func TestMoveStageNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	mock.ExpectQuery("UPDATE articles").
		WithArgs("reading", pgxmock.AnyArg(), "missing", "alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "owner_id", "url", "title", "stage", "created_at", "updated_at"}))

	_, err := store.MoveStage(context.Background(), "missing", "alice", article.StageReading)
	require.ErrorIs(t, err, article.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveStageReturnsUpdatedRow(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	created := time.Unix(1600000000, 0).UTC()

	mock.ExpectQuery("UPDATE articles").
		WithArgs("done", pgxmock.AnyArg(), "id-1", "alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "owner_id", "url", "title", "stage", "created_at", "updated_at"}).
			AddRow("id-1", "alice", "https://a.com", "", "done", created, created.Add(time.Hour)))

	art, err := store.MoveStage(context.Background(), "id-1", "alice", article.StageDone)
	require.NoError(t, err)
	require.Equal(t, article.StageDone, art.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTitleNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	mock.ExpectExec("UPDATE articles SET title").
		WithArgs("New Title", pgxmock.AnyArg(), "missing", "alice").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetTitle(context.Background(), "missing", "alice", "New Title")
	require.ErrorIs(t, err, article.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsByOwnerFillsZeroes(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT stage, COUNT").
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"stage", "count"}).AddRow("inbox", 3))

	counts, err := store.StatsByOwner(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, 3, counts[article.StageInbox])
	require.Equal(t, 0, counts[article.StageReading])
	require.Equal(t, 0, counts[article.StageDone])
	require.Equal(t, 3, counts.Total())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSwapsTableInTransaction(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	created := time.Unix(1600000000, 0).UTC()
	arts := []article.Article{
		{ID: "id-1", OwnerID: "alice", URL: "https://a.com", Stage: article.StageInbox, CreatedAt: created, UpdatedAt: created},
		{ID: "id-2", OwnerID: "bob", URL: "https://a.com", Stage: article.StageDone, CreatedAt: created, UpdatedAt: created},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM articles").WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec("INSERT INTO articles").
		WithArgs("id-1", "alice", "https://a.com", "", "inbox", created, created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO articles").
		WithArgs("id-2", "bob", "https://a.com", "", "done", created, created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.Replace(context.Background(), arts)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRejectsInvalidSnapshot(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	created := time.Unix(1600000000, 0).UTC()

	err := store.Replace(context.Background(), []article.Article{
		{ID: "id-1", OwnerID: "alice", URL: "https://a.com", Stage: "archived", CreatedAt: created, UpdatedAt: created},
	})
	require.ErrorIs(t, err, article.ErrInvalidStage)

	err = store.Replace(context.Background(), []article.Article{
		{ID: "id-1", OwnerID: "alice", URL: "https://a.com", Stage: article.StageInbox, CreatedAt: created, UpdatedAt: created},
		{ID: "id-1", OwnerID: "bob", URL: "https://b.com", Stage: article.StageInbox, CreatedAt: created, UpdatedAt: created},
	})
	require.ErrorContains(t, err, "duplicate article id")
}

func TestLen(t *testing.T) {
	t.Parallel()

	store, mock := newTestStore(t)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	n, err := store.Len(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "articles; DROP TABLE users", &seqIDs{}, &fakeClock{})
	require.ErrorContains(t, err, "invalid table name")
}
