// Package app builds the soundboard from configuration and runs it: the
// object store and its migrations, repositories, the quota monitor, the
// offline-aware HTTP stack and the interactive CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/soundboard/internal/cli"
	"github.com/dmitrijs2005/soundboard/internal/config"
	"github.com/dmitrijs2005/soundboard/internal/extract"
	"github.com/dmitrijs2005/soundboard/internal/logging"
	"github.com/dmitrijs2005/soundboard/internal/objectstore"
	"github.com/dmitrijs2005/soundboard/internal/offline"
	"github.com/dmitrijs2005/soundboard/internal/repositories/audio"
	"github.com/dmitrijs2005/soundboard/internal/repositories/layouts"
	"github.com/dmitrijs2005/soundboard/internal/repositories/settings"
	thumbrepo "github.com/dmitrijs2005/soundboard/internal/repositories/thumbnails"
	"github.com/dmitrijs2005/soundboard/internal/schema"
	"github.com/dmitrijs2005/soundboard/internal/services/quota"
	"github.com/dmitrijs2005/soundboard/internal/services/soundboard"
	"github.com/dmitrijs2005/soundboard/internal/services/thumbnails"
)

const offlineCacheTTL = 7 * 24 * time.Hour

type App struct {
	config *config.Config
	logger logging.Logger

	store   *objectstore.Client
	monitor *quota.Monitor
	images  *thumbnails.Cache
	cli     *cli.App
}

// NewApp opens (and if needed migrates) the store and wires every service.
// in and out are the terminal streams of the CLI.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	store := objectstore.New(objectstore.Options{
		Path:           c.DBPath,
		Version:        int64(c.SchemaVersion),
		Migrations:     schema.Migrations(),
		BlockedTimeout: c.BlockedTimeout,
		Logger:         logger,
		OnStateChange: func(s objectstore.State) {
			logger.Debug(ctx, "store state", "state", s.String())
		},
	})
	if _, err := store.Open(ctx); err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}
	// Repositories go through the client so a closed or failed store is
	// reopened by the next operation.
	db := store.Store()

	audioRepo := audio.NewStoreRepository(db,
		audio.WithQuota(c.QuotaBytes),
		audio.WithAtomicSave(c.AtomicSave),
		audio.WithLogger(logger),
	)

	monitor := quota.NewMonitor(audioRepo,
		quota.WithInterval(c.QuotaPollInterval),
		quota.WithLogger(logger),
		quota.WithThresholdHook(quota.DefaultThreshold, func(s quota.Sample) {
			logger.Warn(ctx, "Storage almost full", "usage", s.Usage, "limit", s.Limit, "percent", s.Percent)
		}),
	)

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: offline.NewTransport(offlineCache(ctx, c, logger),
			offline.WithLogger(logger),
			offline.OnStatusChange(func(online bool) {
				logger.Info(ctx, "network status", "online", online)
			}),
		),
	}

	images := thumbnails.NewCache(thumbrepo.NewStoreRepository(db),
		thumbnails.WithHTTPClient(httpClient),
		thumbnails.WithLogger(logger),
	)

	ex := extract.New(c.APIBaseURL,
		extract.WithHTTPClient(httpClient),
		extract.WithPolling(c.StatusPollInterval, c.StatusPollAttempts),
		extract.WithLogger(logger),
	)

	svc := soundboard.NewService(soundboard.Deps{
		Audio:     audioRepo,
		Layouts:   layouts.NewStoreRepository(db),
		Settings:  settings.NewStoreRepository(db),
		Extractor: ex,
		Images:    images,
		Logger:    logger,
	})

	ui := cli.NewApp(cli.Deps{
		Service:             svc,
		Quota:               monitor,
		Thumbs:              images,
		Ping:                ex.Health,
		Logger:              logger,
		OnlineCheckInterval: c.OnlineCheckInterval,
		ThumbnailRetain:     c.ThumbnailRetain,
		In:                  in,
		Out:                 out,
	})

	return &App{config: c, logger: logger, store: store, monitor: monitor, images: images, cli: ui}, nil
}

// offlineCache uses redis when an address is configured and reachable, and
// an in-process map otherwise.
func offlineCache(ctx context.Context, c *config.Config, logger logging.Logger) offline.Cache {
	if c.RedisAddr == "" {
		return offline.NewMemoryCache()
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	rc, err := offline.NewRedisCache(pctx, c.RedisAddr, offlineCacheTTL)
	if err != nil {
		logger.Warn(ctx, "redis unavailable, using memory cache", "addr", c.RedisAddr, "error", err)
		return offline.NewMemoryCache()
	}
	return rc
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks in the CLI until the user exits or a signal arrives, then
// releases image handles and closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting soundboard...", "db", app.config.DBPath)
	app.initSignalHandler(cancelFunc)

	// The subscription keeps the monitor polling so the threshold hook fires.
	_, unsubscribe := app.monitor.Subscribe()

	app.cli.Run(ctx)

	unsubscribe()
	return app.Close()
}

func (app *App) Close() error {
	app.images.Handles().ReleaseAll()
	return app.store.Close()
}
