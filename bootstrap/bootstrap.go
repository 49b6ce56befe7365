// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from one config file, optionally merged with a
// built-in template, with IMMITATE_* environment variables and command line
// flags on top.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/artpar/immitate/adapters/clock"
	apihttp "github.com/artpar/immitate/adapters/http"
	"github.com/artpar/immitate/adapters/idgen"
	"github.com/artpar/immitate/adapters/memory"
	"github.com/artpar/immitate/adapters/metrics"
	"github.com/artpar/immitate/config"
	channelhttp "github.com/artpar/immitate/core/channel/http"
	"github.com/artpar/immitate/core/events"
	"github.com/artpar/immitate/core/openapi"
	"github.com/artpar/immitate/core/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// ErrNoConfigFile is returned by Reload when the app was started from a
// template alone.
var ErrNoConfigFile = errors.New("no config file to reload")

// Options configures application startup.
type Options struct {
	// ConfigPath is the config file. When it does not exist the app starts
	// from the template named in Overrides or IMMITATE_TEMPLATE.
	ConfigPath string

	Overrides config.Overrides

	// HotReload watches ConfigPath and listens for SIGHUP, re-registering
	// the model routes on every valid change.
	HotReload bool

	Version string

	// LogOutput receives log lines. Defaults to stdout.
	LogOutput io.Writer
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Store      *storage.Store
	Bus        *events.Bus
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry
	HTTPServer *http.Server

	mu      sync.RWMutex
	config  *config.Config
	opts    Options
	api     *apihttp.Swappable
	router  http.Handler
	holder  *config.Holder
	channel *channelhttp.Channel
}

// Load reads the configuration described by opts and creates the app.
func Load(opts Options) (*App, error) {
	if opts.HotReload && fileExists(opts.ConfigPath) {
		holder, err := config.NewHolder(opts.ConfigPath, opts.Overrides, newLogger(config.LoggingConfig{Level: "info", Format: "console"}, opts.LogOutput))
		if err != nil {
			return nil, err
		}
		a, err := New(holder.Get(), opts)
		if err != nil {
			holder.Stop()
			return nil, err
		}
		if err := a.watch(holder); err != nil {
			a.Shutdown()
			return nil, err
		}
		return a, nil
	}

	cfg, err := config.LoadWithFallback(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}

// New creates and initializes the application for cfg.
func New(cfg *config.Config, opts Options) (*App, error) {
	logger := newLogger(cfg.Logging, opts.LogOutput)
	logger.Info().Msg("initializing immitate")

	a := &App{
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		config:   cfg,
		opts:     opts,
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewWithRegistry(a.Registry)

	if err := a.initStore(cfg); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	ch, err := a.buildAPI(cfg)
	if err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("init api: %w", err)
	}
	a.channel = ch
	a.api = apihttp.NewSwappable(ch.Handler())

	a.initHTTPServer(cfg)
	return a, nil
}

func (a *App) initStore(cfg *config.Config) error {
	persister, err := OpenPersister(cfg.DB)
	if err != nil {
		return err
	}

	ids, err := idgen.ForFormat(cfg.IDs.Format)
	if err != nil {
		return err
	}
	clk, err := clock.InZone(cfg.Server.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	a.Bus = events.NewBus(a.Logger)
	a.Bus.Subscribe("*", a.recordMutation)

	a.Store = storage.New(persister, ids, storage.Options{
		Clock:  clk,
		Bus:    a.Bus,
		Logger: a.Logger,
	})
	if err := a.Store.Open(context.Background(), cfg.DB.RemoveExisting); err != nil {
		a.Store.Close()
		return err
	}
	a.Metrics.SetEntities(a.Store.Stats())
	return nil
}

// OpenPersister selects the document backend for the configured driver.
func OpenPersister(db config.DBConfig) (storage.Persister, error) {
	switch db.Driver {
	case "sqlite":
		p, err := storage.OpenSQLiteDocument(db.Name)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "memory":
		return memory.NewDocument(), nil
	default:
		return storage.NewJSONFile(db.Name), nil
	}
}

func (a *App) recordMutation(ctx context.Context, e events.Event) error {
	a.Metrics.StoreOperations.WithLabelValues(e.Model, e.Action).Add(float64(e.Count))
	a.Metrics.SetEntities(a.Store.Stats())
	return nil
}

// buildAPI creates a channel serving every configured model.
func (a *App) buildAPI(cfg *config.Config) (*channelhttp.Channel, error) {
	ch := channelhttp.New(a.Store, channelhttp.Options{
		Logger:  a.Logger,
		OpenAPI: cfg.OpenAPI.On(),
		Info:    openAPIInfo(cfg.OpenAPI),
	})
	for _, m := range cfg.Derived() {
		if err := ch.Register(m); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

func openAPIInfo(c config.OpenAPIConfig) *openapi.Info {
	if c.Title == "" && c.Version == "" && c.Description == "" {
		return nil
	}
	info := &openapi.Info{
		Title:       c.Title,
		Version:     c.Version,
		Description: c.Description,
	}
	if info.Title == "" {
		info.Title = "Awesome Rest"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	return info
}

func (a *App) initHTTPServer(cfg *config.Config) {
	rc := apihttp.RouterConfig{
		Logger:         a.Logger,
		MetricsPath:    cfg.Metrics.Path,
		Gatherer:       a.Registry,
		Version:        a.opts.Version,
		RequestTimeout: cfg.Server.WriteTimeout,
		CORS:           true,
	}
	if cfg.Metrics.On() {
		rc.Metrics = a.Metrics
		a.Logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.router = apihttp.NewRouter(a.api, apihttp.NewHealthHandler(a.Store), rc)
	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Config returns the configuration currently served.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func (a *App) watch(holder *config.Holder) error {
	a.holder = holder
	holder.OnChange(a.apply)
	holder.OnError(func(error) {
		a.Metrics.ConfigReloadErrors.Inc()
	})
	if err := holder.WatchFile(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	holder.WatchSignals()
	return nil
}

// apply re-registers the model routes of cfg and swaps them in. The store,
// server and metrics settings stay as started.
func (a *App) apply(cfg *config.Config) {
	ch, err := a.buildAPI(cfg)
	if err != nil {
		a.Metrics.ConfigReloadErrors.Inc()
		a.Logger.Error().Err(err).Msg("rebuilding routes failed, keeping old routes")
		return
	}
	a.api.Swap(ch.Handler())

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	a.mu.Lock()
	a.config = cfg
	a.channel = ch
	a.mu.Unlock()

	a.Metrics.ConfigReloads.Inc()
	a.Metrics.ConfigLastReload.SetToCurrentTime()
	a.Logger.Info().Int("models", len(cfg.Models)).Msg("routes reloaded")
}

// Reload re-reads the config file and swaps in the new routes. An invalid
// file leaves the running routes untouched.
func (a *App) Reload() error {
	if a.holder != nil {
		return a.holder.Reload()
	}
	if !fileExists(a.opts.ConfigPath) {
		return ErrNoConfigFile
	}

	ov := a.opts.Overrides
	ov.Reset = false
	cfg, err := config.LoadWithOverrides(a.opts.ConfigPath, ov)
	if err != nil {
		a.Metrics.ConfigReloadErrors.Inc()
		return fmt.Errorf("reload config: %w", err)
	}
	a.apply(cfg)
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	a.logRoutes()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

func (a *App) logRoutes() {
	a.mu.RLock()
	ch := a.channel
	a.mu.RUnlock()

	for _, m := range ch.Models() {
		verbs := make([]string, len(m.Verbs))
		for i, v := range m.Verbs {
			verbs[i] = string(v)
		}
		a.Logger.Info().
			Str("model", m.Title).
			Str("path", m.BasePath).
			Strs("routes", verbs).
			Msg("serving model")
	}
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("store close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func newLogger(c config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
