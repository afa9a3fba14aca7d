package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/semlink/cache"
	"github.com/c360studio/semlink/config"
	"github.com/c360studio/semlink/fetch"
	"github.com/c360studio/semlink/graph"
	semlinktools "github.com/c360studio/semlink/processor/semlink-tools"
	"github.com/c360studio/semlink/tools"
	"github.com/c360studio/semlink/vocab"
)

// App wires the configured components into a tool registry.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics    *metric.MetricsRegistry
	natsClient *natsclient.Client
	cache      cache.Cache
	registry   *tools.Registry
	worker     *semlinktools.Component

	closers []func() error
	cancel  context.CancelFunc
}

// NewApp builds every component named by cfg. NATS is only dialled when
// nats.url is set.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runCtx, cancel := context.WithCancel(ctx)
	app := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metric.NewMetricsRegistry(),
		cancel:  cancel,
	}

	if err := app.init(runCtx); err != nil {
		_ = app.Shutdown(5 * time.Second)
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	if a.cfg.NATS.URL != "" {
		nc, err := connectToNATS(ctx, a.cfg.NATS.URL, a.logger)
		if err != nil {
			return err
		}
		a.natsClient = nc
	}

	c, err := a.buildCache(ctx)
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}
	a.cache = c

	fetcher := fetch.New(a.cfg.FetchConfig(), fetch.WithLogger(a.logger), fetch.WithMetrics(a.metrics))

	registry := vocab.NewRegistry()
	if path := a.cfg.Vocabulary.RegistryPath; path != "" {
		if a.cfg.Vocabulary.Watch {
			err = registry.WatchRegistry(ctx, path,
				vocab.WithWatchLogger(a.logger),
				vocab.WithReloadHook(func(err error) {
					if err != nil {
						a.logger.Warn("Vocabulary registry reload failed", "error", err)
					}
				}))
		} else {
			err = registry.LoadOverride(path)
		}
		if err != nil {
			return fmt.Errorf("load vocabulary registry: %w", err)
		}
	}
	vocabManager := vocab.NewManager(fetcher,
		vocab.WithRegistry(registry),
		vocab.WithCache(a.cache),
		vocab.WithLogger(a.logger))

	graphManager, err := a.buildGraph(ctx, vocabManager)
	if err != nil {
		return fmt.Errorf("build graph store: %w", err)
	}

	deps := tools.Deps{
		Fetcher:       fetcher,
		Cache:         a.cache,
		Graph:         graphManager,
		Vocab:         vocabManager,
		OntologyRoot:  a.cfg.Reasoning.OntologyDir,
		WorkspaceRoot: a.cfg.Graph.FilesDir,
		SPARQLTimeout: a.cfg.SPARQL.DefaultTimeout,
		SPARQLLimit:   a.cfg.SPARQL.DefaultLimit,
		Logger:        a.logger,
		Metrics:       a.metrics,
	}
	if a.natsClient != nil {
		store, err := tools.NewToolCallStore(ctx, a.natsClient, tools.WithToolCallStoreLogger(a.logger))
		if err != nil {
			return fmt.Errorf("create tool call store: %w", err)
		}
		deps.Recorder = store
	}

	a.registry, err = tools.NewRegistry(deps)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}
	return nil
}

func (a *App) buildCache(ctx context.Context) (cache.Cache, error) {
	if a.cfg.Cache.Backend == config.BackendKV {
		return cache.NewKVCache(ctx, a.natsClient,
			cache.WithKVBucket(a.cfg.Cache.Bucket),
			cache.WithKVTTL(a.cfg.Cache.TTL),
			cache.WithKVLogger(a.logger))
	}
	mem, err := cache.NewInMemoryCache(ctx,
		cache.WithMaxEntries(a.cfg.Cache.MaxEntries),
		cache.WithTTL(a.cfg.Cache.TTL),
		cache.WithMetrics(a.metrics),
		cache.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, mem.Close)
	return mem, nil
}

func (a *App) buildGraph(ctx context.Context, loader *vocab.Manager) (*graph.Manager, error) {
	opts := []graph.Option{graph.WithDocumentLoader(loader), graph.WithLogger(a.logger)}
	if a.cfg.Graph.Backend == config.BackendKV {
		backend, err := graph.NewKVBackend(ctx, a.natsClient,
			graph.WithBucket(a.cfg.Graph.Bucket),
			graph.WithKVLogger(a.logger))
		if err != nil {
			return nil, err
		}
		opts = append(opts, graph.WithBackend(backend))
	}
	if a.cfg.Graph.Publish {
		opts = append(opts, graph.WithPublisher(a.natsClient))
	}
	return graph.NewManager(opts...), nil
}

// StartWorker serves the tools over JetStream. It needs NATS.
func (a *App) StartWorker(ctx context.Context, cfg semlinktools.Config) error {
	if a.natsClient == nil {
		return errors.New("the tool worker needs nats.url")
	}
	w, err := semlinktools.NewComponent(cfg, a.registry, a.natsClient,
		semlinktools.WithLogger(a.logger),
		semlinktools.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start tool worker: %w", err)
	}
	a.worker = w
	return nil
}

// Registry returns the tool registry.
func (a *App) Registry() *tools.Registry { return a.registry }

// Metrics returns the metrics registry shared by every component.
func (a *App) Metrics() *metric.MetricsRegistry { return a.metrics }

// Shutdown stops the worker, waits for pending call records and closes
// the connections.
func (a *App) Shutdown(timeout time.Duration) error {
	var errs []error
	if a.worker != nil {
		errs = append(errs, a.worker.Stop(timeout))
	}
	if a.registry != nil {
		a.registry.Wait()
	}
	a.cancel()
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	if a.natsClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		errs = append(errs, a.natsClient.Close(ctx))
	}
	return errors.Join(errs...)
}

func connectToNATS(ctx context.Context, url string, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName("semlink"),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	logger.Info("Connected to NATS", "url", url)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

Start a server with JetStream enabled, point nats.url or %s at it,
or clear nats.url to run with in-memory storage.`, err, url, config.EnvNATSURL)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// newLogger returns a text logger on stderr at the named level.
func newLogger(level string) *slog.Logger {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
