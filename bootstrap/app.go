package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/fleetkit/client"
	"github.com/kbukum/fleetkit/config"
	"github.com/kbukum/fleetkit/events"
	"github.com/kbukum/fleetkit/health"
	"github.com/kbukum/fleetkit/httpapi"
	"github.com/kbukum/fleetkit/logger"
	"github.com/kbukum/fleetkit/observability"
	"github.com/kbukum/fleetkit/version"
)

// App wires the resilience core together: event bus, resilient client,
// health aggregator, and the HTTP operator surface.
type App struct {
	Cfg     *config.Config
	Logger  *logger.Logger
	Bus     *events.Bus
	Client  *client.Client
	Health  *health.Aggregator
	Handler http.Handler

	gracefulTimeout time.Duration
	onStop          []Hook

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// New assembles an application from configuration. The config is
// defaulted and validated; the global logger is initialized from its
// logging section unless WithLogger overrides it.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	o := resolveOptions(opts)

	app := &App{
		Cfg:             cfg,
		Bus:             events.NewBus(),
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	cl, err := client.New(cfg.Client, app.Bus)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	app.Client = cl
	app.Health = health.New(cfg.Health, cl)
	app.Handler = httpapi.NewRouter(app.Health, cl)

	return app, nil
}

// EnableObservability initializes the OTLP tracer and meter providers
// and installs metric instruments on the client and aggregator. Call
// before Run; providers are shut down during graceful shutdown.
func (a *App) EnableObservability(ctx context.Context, endpoint string) error {
	info := version.GetVersionInfo()

	tcfg := observability.DefaultTracerConfig(a.Cfg.Name)
	tcfg.ServiceVersion = info.Version
	tcfg.Environment = a.Cfg.Environment
	if endpoint != "" {
		tcfg.Endpoint = endpoint
	}
	tp, err := observability.InitTracer(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.tracerProvider = tp

	mcfg := observability.DefaultMeterConfig(a.Cfg.Name)
	mcfg.ServiceVersion = info.Version
	mcfg.Environment = a.Cfg.Environment
	if endpoint != "" {
		mcfg.Endpoint = endpoint
	}
	mp, err := observability.InitMeter(ctx, mcfg)
	if err != nil {
		return fmt.Errorf("init meter: %w", err)
	}
	a.meterProvider = mp

	metrics, err := observability.NewMetrics(observability.Meter(a.Cfg.Name))
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}
	a.Client.SetMetrics(metrics)
	a.Health.SetMetrics(metrics)

	return nil
}

// Run serves the HTTP surface until the context is canceled or an
// interrupt signal arrives, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.Cfg.HTTP.Addr,
		Handler: a.Handler,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logSummary()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		a.Logger.Info("shutdown signal received", logger.Fields("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.Info("context canceled, shutting down")
	}

	return a.shutdown(srv)
}

// shutdown drains the server, runs stop hooks, and tears down the
// observability providers within the graceful timeout.
func (a *App) shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error

	if err := runHooks(ctx, a.onStop); err != nil {
		errs = append(errs, fmt.Errorf("stop hooks: %w", err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if a.meterProvider != nil {
		if err := a.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.Logger.Info("shutdown complete")
	return nil
}
