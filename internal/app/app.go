package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/webitel/inspection-exporter/auth"
	"github.com/webitel/inspection-exporter/auth/manager/header"
	"github.com/webitel/inspection-exporter/auth/permission"
	cfg "github.com/webitel/inspection-exporter/config"
	"github.com/webitel/inspection-exporter/internal/cache"
	rediscache "github.com/webitel/inspection-exporter/internal/cache/redis"
	"github.com/webitel/inspection-exporter/internal/errors"
	"github.com/webitel/inspection-exporter/internal/exporter"
	"github.com/webitel/inspection-exporter/internal/handler/rest"
	"github.com/webitel/inspection-exporter/internal/metrics"
	"github.com/webitel/inspection-exporter/internal/raster"
	"github.com/webitel/inspection-exporter/internal/render"
	"github.com/webitel/inspection-exporter/internal/retention"
	"github.com/webitel/inspection-exporter/internal/server"
	"github.com/webitel/inspection-exporter/internal/service"
	"github.com/webitel/inspection-exporter/internal/storage"
	"github.com/webitel/inspection-exporter/internal/store"
	"github.com/webitel/inspection-exporter/internal/store/postgres"
)

// photoURLPrefix is where the API serves stored photos.
const photoURLPrefix = "/v1/photos"

type App struct {
	Config   *cfg.AppConfig
	log      *slog.Logger
	exitCh   chan error
	shutdown func(ctx context.Context) error

	Store          store.Store
	Cache          cache.Cache
	redis          *rediscache.RedisCache
	Blobs          storage.Blobstore
	gate           *permission.Gate
	sessionManager auth.Manager
	metrics        *metrics.Metrics

	exporter    *exporter.Exporter
	Inspections *service.InspectionService
	Exports     *service.ExportService
	server      *server.Server

	mu          sync.Mutex
	workers     sync.WaitGroup
	stopWorkers context.CancelFunc
}

// New creates a fully initialized App.
func New(ctx context.Context, config *cfg.AppConfig, shutdown func(ctx context.Context) error) (*App, error) {
	app := &App{
		Config:   config,
		shutdown: shutdown,
		exitCh:   make(chan error, 1),
		log:      slog.Default(),
	}

	inits := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"store", app.initStore},
		{"redis", app.initRedis},
		{"storage", app.initStorage},
		{"permissions", app.initPermissions},
		{"exporter", app.initExporter},
		{"services", app.initServices},
		{"server", app.initServer},
	}
	for _, step := range inits {
		if err := step.fn(ctx); err != nil {
			return nil, err
		}
		app.log.DebugContext(ctx, "inspection_exporter.app.initialized", slog.String("component", step.name))
	}
	return app, nil
}

// --------- Private init methods ---------

func (app *App) initStore(context.Context) error {
	if app.Config.Database == nil {
		return errors.New("database config is nil")
	}
	app.Store = postgres.New(app.Config.Database)
	return nil
}

func (app *App) initRedis(context.Context) error {
	redisCache, err := rediscache.NewRedisCache(app.Config.Redis.Addr, app.Config.Redis.Password, app.Config.Redis.DB)
	if err != nil {
		return errors.New("unable to initialize Redis", errors.WithCause(err))
	}
	app.redis = redisCache
	app.Cache = redisCache
	return nil
}

func (app *App) initStorage(ctx context.Context) error {
	c := app.Config.Storage
	blobs, err := storage.New(ctx, storage.Config{
		Provider:    storage.Provider(c.Provider),
		Dir:         c.Dir,
		S3Bucket:    c.S3Bucket,
		S3Region:    c.S3Region,
		S3Endpoint:  c.S3Endpoint,
		S3AccessKey: c.S3AccessKey,
		S3SecretKey: c.S3SecretKey,
	})
	if err != nil {
		return errors.New("unable to initialize blob storage", errors.WithCause(err))
	}
	app.Blobs = blobs
	return nil
}

func (app *App) initPermissions(context.Context) error {
	app.gate = permission.NewGate(permission.DefaultTable, app.log)
	if file := app.Config.Permissions.File; file != "" {
		if err := app.gate.LoadOverrideFile(file); err != nil {
			return errors.New("failed to load permission override", errors.WithCause(err))
		}
	}
	app.sessionManager = header.New()
	return nil
}

func (app *App) initExporter(context.Context) error {
	theme, ok := render.ThemeByName(app.Config.Render.Theme)
	if !ok {
		return errors.New("unknown render theme " + app.Config.Render.Theme)
	}
	surface := render.NewSurface()
	photos := render.NewBlobPhotoLoader(app.Blobs, &http.Client{Timeout: 30 * time.Second})
	renderer := render.NewReportRenderer(photos,
		render.WithTheme(theme),
		render.WithWidth(app.Config.Render.Width),
		render.WithViewportHeight(app.Config.Render.ViewportHeight),
		render.WithPhotoWidth(app.Config.Render.PhotoMaxWidth),
		render.WithLogger(app.log),
	)
	app.metrics = metrics.New()
	app.exporter = exporter.New(surface, renderer, raster.New(surface, raster.WithLogger(app.log)),
		exporter.WithSettleDelay(app.Config.Export.SettleDelay),
		exporter.WithInterExportDelay(app.Config.Export.InterExportDelay),
		exporter.WithObserver(app.metrics),
		exporter.WithLogger(app.log),
	)
	return nil
}

func (app *App) initServices(context.Context) error {
	policy := retention.New(app.Store.Inspection(), app.Blobs, app.Config.Retention.Keep, app.log)
	inspections, err := service.NewInspectionService(app.Store.Inspection(), app.Blobs, policy, service.NewJPEGEncoder(0), photoURLPrefix, app.log)
	if err != nil {
		return err
	}
	exports, err := service.NewExportService(app.Store.Inspection(), app.Store.Export(), app.Cache, app.Blobs, app.exporter, app.log)
	if err != nil {
		return err
	}
	app.Inspections, app.Exports = inspections, exports
	return nil
}

func (app *App) initServer(context.Context) error {
	handler, err := rest.NewHandler(app.Inspections, app.Exports, app.gate, app.sessionManager, app.metrics.Handler(), app.log)
	if err != nil {
		return err
	}
	srv, err := server.BuildServer(app.Config.HTTP, app.Config.Consul, handler.Routes(), app.exitCh)
	if err != nil {
		return errors.New("failed to build server", errors.WithCause(err))
	}
	app.server = srv
	return nil
}

// Start opens the store, serves the API and runs the export workers until a
// fatal server error.
func (app *App) Start(ctx context.Context) error {
	if err := app.Store.Open(); err != nil {
		return errors.New("failed to open store", errors.WithCause(err))
	}

	go app.server.Start()

	app.mu.Lock()
	ctx, app.stopWorkers = context.WithCancel(ctx)
	app.StartExportWorker(ctx)
	app.mu.Unlock()

	return <-app.exitCh
}

// Stop gracefully shuts down all services
func (app *App) Stop() error {
	slog.Info("inspection_exporter.main.stop_starting")

	if app.server != nil {
		app.server.Stop()
		slog.Info("inspection_exporter.main.server_stopped")
	}

	// running exports finish their current inspection first
	app.mu.Lock()
	if app.stopWorkers != nil {
		app.stopWorkers()
		app.workers.Wait()
		slog.Info("inspection_exporter.main.workers_stopped")
	}
	app.mu.Unlock()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			slog.Error("inspection_exporter.main.redis_close_error", slog.String("error", err.Error()))
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			slog.Error("inspection_exporter.main.store_close_error", slog.String("error", err.Error()))
		}
	}

	if app.shutdown != nil {
		if err := app.shutdown(context.Background()); err != nil {
			slog.Error("inspection_exporter.main.shutdown_hook_error", slog.String("error", err.Error()))
		}
	}

	slog.Info("inspection_exporter.main.stop_complete")
	return nil
}
