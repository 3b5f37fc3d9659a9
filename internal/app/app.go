package app

import (
	"context"
	"fmt"
	"os"

	"github.com/IBA-HOK/CoCoIRU/internal/config"
	"github.com/IBA-HOK/CoCoIRU/internal/fixture"
	"github.com/IBA-HOK/CoCoIRU/internal/observability"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/envutil"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/logger"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/shutdown"
	"github.com/IBA-HOK/CoCoIRU/internal/seed"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type App struct {
	Log     *logger.Logger
	Cfg     *config.Config
	Metrics *observability.Metrics
	Clients Clients
	Runner  *seed.Runner

	otelShutdown func(context.Context) error
}

// New loads configuration and wires everything a seeding command needs.
// service names the binary in logs and traces.
func New(ctx context.Context, service string) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.With("service", service)

	log.Info("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: service,
		Environment: cfg.Env,
		Version:     Version,
	})
	metrics := observability.NewMetrics()

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = shutdown(ctx)
		log.Sync()
		return nil, err
	}

	runner := &seed.Runner{
		API:     clients.API,
		Gen:     fixture.New(cfg.Fixtures.Seed),
		Log:     log,
		Config:  cfg,
		Metrics: metrics,
		Out:     os.Stdout,
	}
	// Interface fields stay nil rather than holding typed nil pointers.
	if clients.Ledger != nil {
		runner.Ledger = clients.Ledger
	}
	if clients.Creds != nil {
		runner.Creds = clients.Creds
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Runner:       runner,
		otelShutdown: shutdown,
	}, nil
}

// Close flushes metrics and traces and releases connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if err := a.Metrics.WriteTextfile(a.Cfg.Metrics.Textfile); err != nil {
		a.Log.Warn("metrics textfile write failed", "path", a.Cfg.Metrics.Textfile, "error", err)
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// Main runs one seeding workflow as a command and returns the process exit
// code: 0 when the workflow completed, 1 otherwise. Partial failures inside
// a phase still exit 0; they are reported in the summary.
func Main(service string, workflow func(ctx context.Context, r *seed.Runner) (*seed.Summary, error)) int {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := New(ctx, service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", service, err)
		return 1
	}
	defer a.Close()

	if _, err := workflow(ctx, a.Runner); err != nil {
		// finish already logged the cause with the run id.
		return 1
	}
	return 0
}
