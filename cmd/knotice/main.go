// Command knotice is a terminal client for the university notice board.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tesso57/knotice/internal/application/persist"
	"github.com/tesso57/knotice/internal/application/settings"
	"github.com/tesso57/knotice/internal/application/usecase"
	"github.com/tesso57/knotice/internal/domain/notice"
	"github.com/tesso57/knotice/internal/infrastructure/blobstore"
	"github.com/tesso57/knotice/internal/infrastructure/config"
	"github.com/tesso57/knotice/internal/infrastructure/logger"
	"github.com/tesso57/knotice/internal/infrastructure/noticeapi"
	"github.com/tesso57/knotice/internal/infrastructure/rssnotice"
	"github.com/tesso57/knotice/internal/presentation/cli"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "knotice:", err)
		os.Exit(1)
	}
}

func run() error {
	var c cli.CLI
	parser, err := cli.NewParser(&c)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	store, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := store.Settings

	log, closeLog, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			log.Warn("close store backend", zap.Error(err))
		}
	}()

	stores := usecase.OpenStores(backend, log, time.Now)
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := stores.Close(sctx); err != nil {
			log.Warn("flush local stores", zap.Error(err))
		}
	}()
	if err := stores.Wait(ctx); err != nil {
		return err
	}

	app := &cli.App{
		Ctx:      ctx,
		Out:      os.Stdout,
		Stores:   stores,
		Sources:  usecase.NewSourceService(store),
		Tokens:   store,
		PageSize: cfg.PageSize,
		Width:    c.Width,
		Log:      log,
	}

	var (
		fetcher usecase.PageFetcher      = offline{}
		details usecase.DetailRepository = offline{}
	)
	client, err := noticeapi.New(noticeapi.Options{
		BaseURL:           cfg.APIBaseURL,
		Token:             cfg.Token,
		Timeout:           cfg.RequestTimeout(),
		RequestsPerSecond: float64(cfg.RequestsPerSecond),
		Logger:            log.Named("api"),
	})
	switch {
	case err == nil:
		fetcher, details, app.API = client, client, client
		log.Debug("backend configured", zap.String("base_url", client.BaseURL()))
	case errors.Is(err, noticeapi.ErrEmptyURL):
		log.Debug("no backend configured")
	default:
		return err
	}

	sources, err := cfg.RSSSourceMap()
	if err != nil {
		return err
	}
	if len(sources) > 0 {
		rss := rssnotice.NewFetcher(sources, 0, log.Named("rss"))
		router := usecase.SourceRouter{Default: fetcher}
		router.RouteAll(rss.Sources(), rss)
		fetcher = router
	}

	app.Feeds = usecase.NewFeeds(fetcher, log.Named("feed"))
	app.Notices = usecase.NewNoticeService(details, stores.ReadStatus, log.Named("notice"), usecase.DetailCacheOptions{
		Size: cfg.DetailCacheSize,
		TTL:  cfg.DetailCacheTTL(),
	})

	return kctx.Run(app)
}

func openBackend(cfg settings.Settings) (persist.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StoreBackend {
	case settings.BackendMemory:
		return blobstore.NewMemoryStore(), noop, nil
	case settings.BackendSQLite:
		db, err := blobstore.OpenSQLite(filepath.Join(cfg.DataDir, "knotice.db"))
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return blobstore.NewFileStore(cfg.DataDir), noop, nil
	}
}

// offline serves every backend call with ErrNoBackend.
type offline struct{}

func (offline) FetchPage(context.Context, notice.PageQuery) (notice.Page, error) {
	return notice.Page{}, cli.ErrNoBackend
}

func (offline) Detail(context.Context, string, int64) (notice.Detail, error) {
	return notice.Detail{}, cli.ErrNoBackend
}

func (offline) IncrementView(context.Context, int64) (int, error) {
	return 0, cli.ErrNoBackend
}
