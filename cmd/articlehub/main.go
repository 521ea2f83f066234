// Package main wires together the article hub service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/secondbrain-app/article-hub/internal/api"
	"github.com/secondbrain-app/article-hub/internal/article"
	"github.com/secondbrain-app/article-hub/internal/backup"
	"github.com/secondbrain-app/article-hub/internal/blob"
	blobgcs "github.com/secondbrain-app/article-hub/internal/blob/gcs"
	bloblocal "github.com/secondbrain-app/article-hub/internal/blob/local"
	blobmemory "github.com/secondbrain-app/article-hub/internal/blob/memory"
	"github.com/secondbrain-app/article-hub/internal/clock/system"
	"github.com/secondbrain-app/article-hub/internal/config"
	"github.com/secondbrain-app/article-hub/internal/engine"
	"github.com/secondbrain-app/article-hub/internal/enrich"
	"github.com/secondbrain-app/article-hub/internal/id/uuid"
	"github.com/secondbrain-app/article-hub/internal/line"
	"github.com/secondbrain-app/article-hub/internal/logging"
	"github.com/secondbrain-app/article-hub/internal/notify"
	notifymemory "github.com/secondbrain-app/article-hub/internal/notify/memory"
	notifypubsub "github.com/secondbrain-app/article-hub/internal/notify/pubsub"
	"github.com/secondbrain-app/article-hub/internal/stats"
	storememory "github.com/secondbrain-app/article-hub/internal/store/memory"
	storepostgres "github.com/secondbrain-app/article-hub/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()
	idGen := uuid.New()

	store, closeStore, err := buildStore(ctx, cfg, idGen, clock)
	if err != nil {
		return err
	}
	defer closeStore()

	statsSvc, err := stats.New(store, stats.Scope(cfg.Stats.Scope))
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	var titler engine.Enricher
	if cfg.Enrich.Enabled {
		titler = enrich.New(store, enrich.Config{
			Timeout:   time.Duration(cfg.Enrich.TimeoutSeconds) * time.Second,
			UserAgent: cfg.Enrich.UserAgent,
		}, logger.Named("enrich"))
	}

	scheduler, err := buildScheduler(ctx, cfg, store, clock, logger)
	if err != nil {
		return err
	}

	var reporter engine.BackupReporter
	var runner api.BackupRunner
	if scheduler != nil {
		reporter = scheduler
		runner = scheduler

		if err := scheduler.Restore(ctx); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		go scheduler.Run(ctx)
	}

	loc, err := cfg.SummaryLocation()
	if err != nil {
		return err
	}
	eng := engine.New(store, statsSvc, reporter, notifier, titler, clock, loc, logger.Named("engine"))

	var replier line.Replier
	if cfg.Line.ChannelToken != "" {
		replier, err = line.NewClient(line.ClientConfig{
			ChannelToken: cfg.Line.ChannelToken,
			Endpoint:     cfg.Line.ReplyEndpoint,
			Timeout:      time.Duration(cfg.Line.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("build reply client: %w", err)
		}
	} else {
		logger.Warn("no channel token configured, replies are recorded only")
		replier = line.NewRecorder()
	}

	apiServer := api.NewServer(eng, store, statsSvc, runner, replier, cfg.Line.ChannelSecret, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if scheduler != nil {
		if _, err := scheduler.RunOnce(shutdownCtx); err != nil {
			logger.Error("final snapshot failed", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
	return nil
}

func buildStore(ctx context.Context, cfg config.Config, idGen article.IDGenerator, clock article.Clock) (article.Store, func(), error) {
	switch cfg.Store.Provider {
	case "postgres":
		pg := cfg.Store.Postgres
		store, err := storepostgres.New(ctx, idGen, clock, storepostgres.Config{
			DSN:             pg.DSN,
			Table:           pg.Table,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: time.Duration(pg.MaxConnLifetimeMin) * time.Minute,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build postgres store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return storememory.New(idGen, clock), func() {}, nil
	}
}

func buildNotifier(ctx context.Context, cfg config.Config) (notify.Publisher, func(), error) {
	switch cfg.Notify.Provider {
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Notify.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("build pubsub client: %w", err)
		}
		pub, err := notifypubsub.New(client, cfg.Notify.TopicName)
		if err != nil {
			return nil, nil, err
		}
		return pub, func() {
			pub.Close()
			client.Close() //nolint:errcheck
		}, nil
	case "memory":
		return notifymemory.New(), func() {}, nil
	default:
		return notify.Noop{}, func() {}, nil
	}
}

func buildScheduler(ctx context.Context, cfg config.Config, store article.Store, clock article.Clock, logger *zap.Logger) (*backup.Scheduler, error) {
	var blobs blob.Store
	switch cfg.Backup.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("build gcs client: %w", err)
		}
		blobs, err = blobgcs.New(client, blobgcs.Config{
			Bucket: cfg.Backup.GCSBucket,
			Prefix: cfg.Backup.Prefix,
		})
		if err != nil {
			return nil, err
		}
	case "local":
		var err error
		blobs, err = bloblocal.New(bloblocal.Config{BaseDir: cfg.Backup.LocalDir})
		if err != nil {
			return nil, err
		}
	case "memory":
		blobs = blobmemory.New()
	default:
		return nil, nil
	}

	return backup.New(store, blobs, clock, backup.Config{
		ObjectName: cfg.Backup.ObjectName,
		Interval:   cfg.BackupInterval(),
		Timeout:    cfg.BackupTimeout(),
	}, logger.Named("backup")), nil
}
