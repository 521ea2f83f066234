// Package api exposes the HTTP interface for the article hub service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secondbrain-app/article-hub/internal/article"
	"github.com/secondbrain-app/article-hub/internal/backup"
	"github.com/secondbrain-app/article-hub/internal/engine"
	"github.com/secondbrain-app/article-hub/internal/line"
	"github.com/secondbrain-app/article-hub/internal/metrics"
	"github.com/secondbrain-app/article-hub/internal/signature"
	"github.com/secondbrain-app/article-hub/internal/stats"
)

// maxBodyBytes caps inbound webhook and API payloads.
const maxBodyBytes = 1 << 20

// BackupRunner is the slice of the backup scheduler the API needs.
type BackupRunner interface {
	RunOnce(ctx context.Context) (backup.Status, error)
	Status() backup.Status
}

// Server wires HTTP handlers to the engine and stores.
type Server struct {
	router        chi.Router
	engine        *engine.Engine
	store         article.Store
	stats         *stats.Service
	backups       BackupRunner
	replier       line.Replier
	channelSecret string
	logger        *zap.Logger
}

// NewServer constructs a Server with middleware and routes. backups may be
// nil when no backup provider is configured.
func NewServer(
	eng *engine.Engine,
	store article.Store,
	statsSvc *stats.Service,
	backups BackupRunner,
	replier line.Replier,
	channelSecret string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		engine:        eng,
		store:         store,
		stats:         statsSvc,
		backups:       backups,
		replier:       replier,
		channelSecret: channelSecret,
		logger:        logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/webhook", s.webhook)

	r.Route("/api", func(r chi.Router) {
		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.listArticles)
			r.Post("/move", s.moveArticle)
		})
		r.Get("/stats", s.getStats)
		r.Post("/backup", s.runBackup)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Len(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// webhook receives LINE event batches. The signature covers the raw body,
// so the body is read before any JSON decoding.
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if !signature.Verify(body, r.Header.Get("X-Line-Signature"), s.channelSecret) {
		s.writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var req line.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	replies := s.engine.HandleEvents(r.Context(), req.Events)
	delivered := 0
	for _, reply := range replies {
		if reply.ReplyToken == "" {
			continue
		}
		if err := s.replier.Reply(r.Context(), reply); err != nil {
			s.logger.Warn("reply delivery failed",
				zap.String("reply_token", reply.ReplyToken),
				zap.Error(err))
			continue
		}
		delivered++
	}
	s.writeJSON(w, http.StatusOK, map[string]int{
		"events":  len(req.Events),
		"replies": delivered,
	})
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get("X-User-ID")
	if owner == "" {
		s.writeError(w, http.StatusBadRequest, "X-User-ID header required")
		return
	}
	stage := article.Stage(r.URL.Query().Get("stage"))
	arts, err := s.store.ListByOwner(r.Context(), owner, stage)
	if err != nil {
		if errors.Is(err, article.ErrInvalidStage) {
			s.writeError(w, http.StatusBadRequest, "unknown stage")
			return
		}
		s.logger.Error("list articles failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if arts == nil {
		arts = []article.Article{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"articles": arts})
}

type moveRequest struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
}

func (s *Server) moveArticle(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get("X-User-ID")
	if owner == "" {
		s.writeError(w, http.StatusBadRequest, "X-User-ID header required")
		return
	}
	var req moveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil || req.ID == "" {
		s.writeError(w, http.StatusBadRequest, "id and stage required")
		return
	}
	art, err := s.store.MoveStage(r.Context(), req.ID, owner, article.Stage(req.Stage))
	switch {
	case errors.Is(err, article.ErrInvalidStage):
		s.writeError(w, http.StatusBadRequest, "unknown stage")
	case errors.Is(err, article.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "article not found")
	case err != nil:
		s.logger.Error("move article failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "move failed")
	default:
		s.writeJSON(w, http.StatusOK, map[string]any{"article": art})
	}
}

// getStats reports the caller's per-stage counts. Dashboard reads are always
// owner-scoped; service-wide aggregates exist only on the command surface,
// behind the stats scope config.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	owner := r.Header.Get("X-User-ID")
	if owner == "" {
		s.writeError(w, http.StatusBadRequest, "X-User-ID header required")
		return
	}
	counts, err := s.stats.OwnerPerStage(r.Context(), owner)
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":  counts.Total(),
		"stages": counts,
	})
}

func (s *Server) runBackup(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusNotImplemented, "backups not configured")
		return
	}
	st, err := s.backups.RunOnce(r.Context())
	if err != nil {
		s.logger.Error("manual backup failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
