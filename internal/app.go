package internal

import (
	"collab-live/auth"
	"collab-live/bridge"
	"collab-live/infrastructure/http/server"
	"collab-live/infrastructure/websocket"
	"collab-live/moderation"
	"collab-live/observability"
	"collab-live/repositories"
	"collab-live/runtime"
	"collab-live/runtime/workers"
	"collab-live/services"
	"collab-live/storage"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived resource of the server.
type App struct {
	config  Config
	log     *slog.Logger
	db      *badger.DB
	index   *bluge.Writer
	Hub     *runtime.Hub
	Tokens  *auth.TokenManager
	Metrics *prometheus.Registry
	Handler http.Handler
}

// NewApp opens the stores and wires the live layer, services and transports.
// Nothing is served until Run.
func NewApp(config Config, log *slog.Logger) (_ *App, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	censorChar, _ := CharacterRune(config.CharReplacement)

	app := &App{config: config, log: log}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	app.db, err = badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	app.index, err = bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return nil, fmt.Errorf("search index opening failed: %w", err)
	}
	blobs, err := storage.NewDiskBlobStore(config.BlobRootDir, server.FilesPrefix, log)
	if err != nil {
		return nil, fmt.Errorf("blob store opening failed: %w", err)
	}

	dictionary, err := moderation.DefaultDictionary()
	if err != nil {
		return nil, fmt.Errorf("censored dictionary: %w", err)
	}
	log.Info("Censored dictionary loaded", "words", len(dictionary.Words), "languages", dictionary.Languages)
	moderator, err := moderation.NewModerator(dictionary.Words, censorChar, log)
	if err != nil {
		return nil, err
	}

	app.Metrics = prometheus.NewRegistry()
	app.Metrics.MustRegister(collectors.NewGoCollector())
	metrics := observability.New(app.Metrics)

	app.Hub = runtime.NewHub(log, workers.NewSupervisor(log, config.RestartInterval), metrics, config.EventBufferSize)
	app.Hub.Add(
		workers.NewHealthMonitoringWorker(log, metrics, config.MetricInterval),
		workers.NewChannelCapacityWorker(log, metrics,
			[]workers.NamedChannel{{Name: "hub_events", Channel: app.Hub.Events()}},
			config.MetricInterval, float64(config.LowCapacityThreshold)/100),
	)

	b := bridge.New(app.Hub, log, metrics)
	projects := services.NewProjectService(log,
		repositories.NewProjectRepository(app.db, log, config.LimitMessages),
		blobs, repositories.NewMessageIndex(app.index, log), moderator, b,
		services.ProjectServiceConfig{MaxContentLength: config.MaxContentLength, MaxUploadBytes: config.MaxUploadBytes})
	direct := services.NewDirectMessageService(log,
		repositories.NewDirectMessageRepository(app.db, log, config.LimitMessages),
		moderator, b, config.MaxContentLength)

	app.Tokens = auth.NewTokenManager(config.JwtSecret, config.AuthTokenDuration)
	live := websocket.NewHandler(log, app.Hub, app.Tokens, config.ConnectionBufferSize,
		config.WriteTimeout, config.OriginPatterns())

	app.Handler = server.New(log, server.Dependencies{
		Projects:       projects,
		Direct:         direct,
		Hub:            app.Hub,
		Blobs:          blobs,
		Tokens:         app.Tokens,
		Live:           live,
		Gatherer:       app.Metrics,
		MaxUploadBytes: config.MaxUploadBytes,
		RequestTimeout: config.RequestTimeout,
	}).Router()
	return app, nil
}

// Run serves HTTP and runs the hub until ctx is canceled or either fails.
func (a *App) Run(ctx context.Context) error {
	srv := server.NewHTTPServer(a.config.Address(), a.Handler)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Hub.Start(ctx) })
	g.Go(func() error {
		a.log.Info("Starting HTTP server", "address", srv.Addr, "at", time.Now().UTC())
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.Hub.Stop()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the stores. Safe on a partially built App.
func (a *App) Close() error {
	var errs []error
	if a.index != nil {
		a.log.Info("Closing search index...")
		errs = append(errs, a.index.Close())
	}
	if a.db != nil {
		a.log.Info("Closing BadgerDB...")
		errs = append(errs, a.db.Close())
	}
	return stderrors.Join(errs...)
}
