// Package enrich fills in article titles after a save. Enrichment is best
// effort and bounded: one GET per article, a byte cap, and a timeout. A
// failure leaves the article untitled and is never surfaced to the user.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/secondbrain-app/article-hub/internal/article"
)

// Config bounds the enrichment fetch.
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// Titler fetches a page's <title> and records it on the article.
type Titler struct {
	store  article.Store
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// New constructs a Titler.
func New(store article.Store, cfg Config, logger *zap.Logger) *Titler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "article-hub/1.0"
	}
	return &Titler{
		store:  store,
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Enrich fetches art.URL and stores its title. Errors are returned for tests
// and logging; callers treat them as non-fatal.
func (t *Titler) Enrich(ctx context.Context, art article.Article) error {
	title, err := t.fetchTitle(ctx, art.URL)
	if err != nil {
		t.logger.Debug("title enrichment failed",
			zap.String("article_id", art.ID),
			zap.Error(err),
		)
		return err
	}
	if title == "" {
		return nil
	}
	if err := t.store.SetTitle(ctx, art.ID, art.OwnerID, title); err != nil {
		t.logger.Warn("store title failed", zap.String("article_id", art.ID), zap.Error(err))
		return err
	}
	return nil
}

func (t *Titler) fetchTitle(ctx context.Context, url string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, t.cfg.MaxBytes))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return strings.Join(strings.Fields(title), " "), nil
}
