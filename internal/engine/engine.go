// Package engine orchestrates verified webhook events: classify the message,
// mutate the Article Store, and produce the reply payload.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/secondbrain-app/article-hub/internal/article"
	"github.com/secondbrain-app/article-hub/internal/backup"
	"github.com/secondbrain-app/article-hub/internal/command"
	"github.com/secondbrain-app/article-hub/internal/extract"
	"github.com/secondbrain-app/article-hub/internal/line"
	"github.com/secondbrain-app/article-hub/internal/metrics"
	"github.com/secondbrain-app/article-hub/internal/notify"
	"github.com/secondbrain-app/article-hub/internal/stats"
)

const (
	maxListedURLs   = 5
	maxURLDisplay   = 50
	recentListLimit = 5
)

// BackupReporter exposes the backup scheduler's status for the /backup
// command.
type BackupReporter interface {
	Status() backup.Status
}

// Enricher fills in article metadata after a save.
type Enricher interface {
	Enrich(ctx context.Context, art article.Article) error
}

// Engine is the single entry point for verified inbound events.
type Engine struct {
	store    article.Store
	stats    *stats.Service
	backups  BackupReporter
	notifier notify.Publisher
	enricher Enricher
	clock    article.Clock
	loc      *time.Location
	logger   *zap.Logger
}

// New constructs an Engine. backups and enricher may be nil; notifier must
// not be (use notify.Noop). loc sets the day boundary for /summary; nil
// means UTC.
func New(
	store article.Store,
	statsSvc *stats.Service,
	backups BackupReporter,
	notifier notify.Publisher,
	enricher Enricher,
	clock article.Clock,
	loc *time.Location,
	logger *zap.Logger,
) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		store:    store,
		stats:    statsSvc,
		backups:  backups,
		notifier: notifier,
		enricher: enricher,
		clock:    clock,
		loc:      loc,
		logger:   logger,
	}
}

// HandleEvents processes a verified event batch and returns one reply per
// text-message event. Events are independent; only events sharing an owner
// and URL interact, through the store's uniqueness invariant.
func (e *Engine) HandleEvents(ctx context.Context, events []line.Event) []line.Reply {
	replies := make([]line.Reply, 0, len(events))
	for _, ev := range events {
		if !ev.IsTextMessage() || ev.Source.UserID == "" {
			metrics.ObserveEvent("skipped")
			continue
		}
		reply := e.handleMessage(ctx, ev)
		reply.ReplyToken = ev.ReplyToken
		replies = append(replies, reply)
	}
	return replies
}

func (e *Engine) handleMessage(ctx context.Context, ev line.Event) line.Reply {
	ownerID := ev.Source.UserID
	cmd := command.Parse(ev.Message.Text)
	metrics.ObserveEvent(cmd.Kind.String())

	switch cmd.Kind {
	case command.KindHelp:
		return e.helpReply()
	case command.KindStats:
		return e.statsReply(ctx, ownerID)
	case command.KindList:
		return e.listReply(ctx, ownerID)
	case command.KindSummary:
		return e.summaryReply(ctx, ownerID)
	case command.KindBackup:
		return e.backupReply()
	case command.KindUnknown:
		metrics.ObserveReply("unknown_command")
		return line.Reply{Text: fmt.Sprintf("Unknown command: %s\n\n%s", cmd.Raw, helpText)}
	default:
		return e.saveURLs(ctx, ownerID, cmd.Raw)
	}
}

const helpText = `📚 Article Hub Commands:
• Send any URL to save it
• /list - Show recent articles
• /stats - View statistics
• /summary - Today's saves
• /backup - Backup status
• /help - Show this help`

func (e *Engine) helpReply() line.Reply {
	metrics.ObserveReply("help")
	return line.Reply{
		Text: helpText,
		QuickActions: []line.QuickAction{
			{Label: "📚 List", Text: "/list"},
			{Label: "📊 Stats", Text: "/stats"},
		},
	}
}

func (e *Engine) statsReply(ctx context.Context, ownerID string) line.Reply {
	counts, err := e.stats.PerStage(ctx, ownerID)
	if err != nil {
		e.logger.Error("stats query failed", zap.Error(err))
		metrics.ObserveReply("error")
		return line.Reply{Text: "📊 Statistics unavailable"}
	}
	metrics.ObserveReply("stats")

	scope := "Your"
	if e.stats.Scope() == stats.ScopeGlobal {
		scope = "All users'"
	}
	return line.Reply{Text: fmt.Sprintf(`📊 %s Statistics:

📚 Total: %d
├─ 📥 Inbox: %d
├─ 📖 Reading: %d
└─ ✅ Done: %d`,
		scope,
		counts.Total(),
		counts[article.StageInbox],
		counts[article.StageReading],
		counts[article.StageDone],
	)}
}

func (e *Engine) listReply(ctx context.Context, ownerID string) line.Reply {
	arts, err := e.stats.Recent(ctx, ownerID, recentListLimit)
	if err != nil {
		e.logger.Error("list query failed", zap.Error(err))
		metrics.ObserveReply("error")
		return line.Reply{Text: "📚 Articles unavailable"}
	}
	metrics.ObserveReply("list")
	if len(arts) == 0 {
		return line.Reply{Text: "📚 No articles yet. Send me a URL to get started!"}
	}

	var b strings.Builder
	b.WriteString("📚 Recent articles:\n\n")
	for i, art := range arts {
		title := art.Title
		if title == "" {
			title = truncate(art.URL, maxURLDisplay)
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n\n", i+1, title, stageLabel(art.Stage))
	}
	return line.Reply{Text: strings.TrimRight(b.String(), "\n")}
}

// summaryReply lists today's saves. "Today" starts at midnight in the
// configured location, not at UTC midnight.
func (e *Engine) summaryReply(ctx context.Context, ownerID string) line.Reply {
	now := e.clock.Now().In(e.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	arts, err := e.stats.SavedSince(ctx, ownerID, midnight)
	if err != nil {
		e.logger.Error("summary query failed", zap.Error(err))
		metrics.ObserveReply("error")
		return line.Reply{Text: "📋 Summary unavailable"}
	}
	metrics.ObserveReply("summary")
	if len(arts) == 0 {
		return line.Reply{Text: "📋 Nothing saved today yet."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Today: %d saved\n\n", len(arts))
	for i, art := range arts {
		if i == maxListedURLs {
			fmt.Fprintf(&b, "... and %d more", len(arts)-maxListedURLs)
			break
		}
		fmt.Fprintf(&b, "• %s\n", truncate(art.URL, maxURLDisplay))
	}
	return line.Reply{Text: strings.TrimRight(b.String(), "\n")}
}

func (e *Engine) backupReply() line.Reply {
	metrics.ObserveReply("backup")
	if e.backups == nil {
		return line.Reply{Text: "💾 Backups are not configured."}
	}
	st := e.backups.Status()
	if st.LastRun.IsZero() {
		return line.Reply{Text: "💾 No backup has run yet."}
	}
	if st.LastErr != "" {
		return line.Reply{Text: fmt.Sprintf("💾 Last backup attempt at %s failed; will retry.",
			st.LastRun.Format("2006-01-02 15:04:05"))}
	}
	return line.Reply{Text: fmt.Sprintf(`💾 Backup Status:

Articles: %d
Last sync: %s
Location: %s`,
		st.Articles,
		st.LastRun.Format("2006-01-02 15:04:05"),
		st.LastURI,
	)}
}

// saveURLs extracts URLs from free text and saves each one.
func (e *Engine) saveURLs(ctx context.Context, ownerID, text string) line.Reply {
	urls := extract.Extract(text)
	if len(urls) == 0 {
		metrics.ObserveReply("no_url")
		return line.Reply{Text: "⚠️ No URL recognized in your message.\nSend /help to see what I can do."}
	}

	var saved []article.Article
	var dups []article.Article
	failures := 0
	for _, url := range urls {
		art, err := e.store.Create(ctx, ownerID, url)
		switch {
		case err == nil:
			metrics.ObserveSave("saved")
			saved = append(saved, art)
			e.afterSave(ctx, art)
		default:
			if existing, ok := article.IsDuplicate(err); ok {
				metrics.ObserveSave("duplicate")
				dups = append(dups, existing)
				continue
			}
			metrics.ObserveSave("error")
			failures++
			e.logger.Error("save failed",
				zap.String("owner_id", ownerID),
				zap.String("url", url),
				zap.Error(err),
			)
		}
	}

	switch {
	case len(saved) == 0 && len(dups) == 0:
		metrics.ObserveReply("error")
		return line.Reply{Text: "⚠️ Something went wrong saving your links. Please try again."}
	case len(saved) == 1 && len(dups) == 0 && failures == 0:
		metrics.ObserveReply("saved")
		return line.Reply{
			Text: "✅ Article saved!\n" + saved[0].URL,
			QuickActions: []line.QuickAction{
				{Label: "📚 List", Text: "/list"},
				{Label: "📊 Stats", Text: "/stats"},
			},
		}
	case len(saved) == 0:
		metrics.ObserveReply("duplicate")
		return line.Reply{Text: "📌 Already saved:\n" + bulletURLs(dups)}
	default:
		metrics.ObserveReply("saved_multi")
		var b strings.Builder
		fmt.Fprintf(&b, "✅ Saved %d article", len(saved))
		if len(saved) > 1 {
			b.WriteString("s")
		}
		b.WriteString(" from your message!\n\n")
		b.WriteString(bulletURLs(saved))
		if len(dups) > 0 {
			fmt.Fprintf(&b, "\n\n📌 %d already saved", len(dups))
		}
		if failures > 0 {
			fmt.Fprintf(&b, "\n⚠️ %d failed", failures)
		}
		return line.Reply{
			Text:         b.String(),
			QuickActions: []line.QuickAction{{Label: "📚 List", Text: "/list"}},
		}
	}
}

// afterSave runs the post-save side effects: notification and enrichment.
// Both are best effort; the save already happened.
func (e *Engine) afterSave(ctx context.Context, art article.Article) {
	if err := e.notifier.PublishSaved(ctx, notify.SavedArticle{
		ID:      art.ID,
		OwnerID: art.OwnerID,
		URL:     art.URL,
		SavedAt: art.CreatedAt,
	}); err != nil {
		e.logger.Warn("publish notification failed", zap.String("article_id", art.ID), zap.Error(err))
	}
	if e.enricher != nil {
		// Detached from the request so a reply never waits on a page fetch.
		go func() {
			_ = e.enricher.Enrich(context.WithoutCancel(ctx), art)
		}()
	}
}

func bulletURLs(arts []article.Article) string {
	var b strings.Builder
	for i, art := range arts {
		if i == maxListedURLs {
			fmt.Fprintf(&b, "... and %d more\n", len(arts)-maxListedURLs)
			break
		}
		fmt.Fprintf(&b, "• %s\n", truncate(art.URL, maxURLDisplay))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func stageLabel(s article.Stage) string {
	switch s {
	case article.StageInbox:
		return "📥 Inbox"
	case article.StageReading:
		return "📖 Reading"
	case article.StageDone:
		return "✅ Done"
	default:
		return string(s)
	}
}
