package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/secondbrain-app/article-hub/internal/article"
	"github.com/secondbrain-app/article-hub/internal/backup"
	blobmemory "github.com/secondbrain-app/article-hub/internal/blob/memory"
	"github.com/secondbrain-app/article-hub/internal/engine"
	"github.com/secondbrain-app/article-hub/internal/id/uuid"
	"github.com/secondbrain-app/article-hub/internal/line"
	notifymemory "github.com/secondbrain-app/article-hub/internal/notify/memory"
	"github.com/secondbrain-app/article-hub/internal/signature"
	"github.com/secondbrain-app/article-hub/internal/stats"
	storememory "github.com/secondbrain-app/article-hub/internal/store/memory"
)

const testSecret = "test-channel-secret"

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

type testServer struct {
	server   *Server
	store    *storememory.Store
	recorder *line.Recorder
	backups  *backup.Scheduler
}

func newTestServer(t *testing.T, withBackups bool) testServer {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)}
	store := storememory.New(uuid.New(), clock)
	svc, err := stats.New(store, stats.ScopeOwner)
	require.NoError(t, err)

	var (
		sched  *backup.Scheduler
		runner BackupRunner
	)
	if withBackups {
		sched = backup.New(store, blobmemory.New(), clock, backup.Config{}, zap.NewNop())
		runner = sched
	}

	var reporter engine.BackupReporter
	if sched != nil {
		reporter = sched
	}
	eng := engine.New(store, svc, reporter, notifymemory.New(), nil, clock, nil, zap.NewNop())
	recorder := line.NewRecorder()
	server := NewServer(eng, store, svc, runner, recorder, testSecret, zap.NewNop())
	return testServer{server: server, store: store, recorder: recorder, backups: sched}
}

func signedWebhook(t *testing.T, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Line-Signature", signature.Sign(body, testSecret))
	return req
}

func eventBody(t *testing.T, user, text string) []byte {
	t.Helper()
	req := line.WebhookRequest{Events: []line.Event{{
		Type:       "message",
		ReplyToken: "rt-1",
		Source:     line.Source{Type: "user", UserID: user},
		Message:    line.Message{Type: "text", Text: text},
	}}}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return body
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	body := eventBody(t, "alice", "/help")

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", signature.Sign(body, "wrong-secret"))
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, ts.recorder.Replies())
}

func TestWebhook_RejectsOversizedBody(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	body := bytes.Repeat([]byte("a"), maxBodyBytes+1)

	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, signedWebhook(t, body))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Contains(t, rec.Body.String(), "payload too large")
}

func TestWebhook_RejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, signedWebhook(t, []byte("{invalid")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_HelpCommandRepliesWithoutSaving(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, signedWebhook(t, eventBody(t, "alice", "/help")))

	require.Equal(t, http.StatusOK, rec.Code)
	replies := ts.recorder.Replies()
	require.Len(t, replies, 1)
	require.Contains(t, replies[0].Text, "/list")
	require.Equal(t, "rt-1", replies[0].ReplyToken)

	n, err := ts.store.Len(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWebhook_PlainTextWithoutURL(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, signedWebhook(t, eventBody(t, "alice", "no links here")))

	require.Equal(t, http.StatusOK, rec.Code)
	replies := ts.recorder.Replies()
	require.Len(t, replies, 1)
	require.Contains(t, replies[0].Text, "No URL recognized")

	n, err := ts.store.Len(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestWebhook_SavesURL(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, signedWebhook(t, eventBody(t, "alice", "read https://example.com/post later")))

	require.Equal(t, http.StatusOK, rec.Code)
	replies := ts.recorder.Replies()
	require.Len(t, replies, 1)
	require.Contains(t, replies[0].Text, "Article saved")

	arts, err := ts.store.ListByOwner(context.Background(), "alice", "")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	require.Equal(t, "https://example.com/post", arts[0].URL)
	require.Equal(t, article.StageInbox, arts[0].Stage)
}

func TestListArticles(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	ctx := context.Background()
	_, err := ts.store.Create(ctx, "alice", "https://a.com/1")
	require.NoError(t, err)
	saved, err := ts.store.Create(ctx, "alice", "https://a.com/2")
	require.NoError(t, err)
	_, err = ts.store.MoveStage(ctx, saved.ID, "alice", article.StageDone)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/articles?stage=done", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Articles []article.Article `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Articles, 1)
	require.Equal(t, "https://a.com/2", resp.Articles[0].URL)

	// Missing owner header.
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown stage.
	req = httptest.NewRequest(http.MethodGet, "/api/articles?stage=archived", nil)
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoveArticle(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	saved, err := ts.store.Create(context.Background(), "alice", "https://a.com/1")
	require.NoError(t, err)

	body := fmt.Sprintf(`{"id":%q,"stage":"reading"}`, saved.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/articles/move", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"reading"`)

	// Another user cannot move alice's article.
	req = httptest.NewRequest(http.MethodPost, "/api/articles/move", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "bob")
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Invalid target stage.
	body = fmt.Sprintf(`{"id":%q,"stage":"archived"}`, saved.ID)
	req = httptest.NewRequest(http.MethodPost, "/api/articles/move", bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	ctx := context.Background()
	_, err := ts.store.Create(ctx, "alice", "https://a.com/1")
	require.NoError(t, err)
	_, err = ts.store.Create(ctx, "bob", "https://b.com/1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)
	require.NotContains(t, rec.Body.String(), `"total":2`)
}

func TestGetStats_RequiresOwner(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	_, err := ts.store.Create(context.Background(), "alice", "https://a.com/1")
	require.NoError(t, err)
	_, err = ts.store.Create(context.Background(), "bob", "https://b.com/1")
	require.NoError(t, err)

	// An identity-less request must never see service-wide counts.
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotContains(t, rec.Body.String(), `"total"`)
}

func TestRunBackup(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backup", nil))
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	ts = newTestServer(t, true)
	_, err := ts.store.Create(context.Background(), "alice", "https://a.com/1")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/backup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "memory://")
	require.Equal(t, 1, ts.backups.Status().Articles)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, false)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}
