package app

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/IBA-HOK/CoCoIRU/internal/client"
	"github.com/IBA-HOK/CoCoIRU/internal/config"
	"github.com/IBA-HOK/CoCoIRU/internal/credstore"
	"github.com/IBA-HOK/CoCoIRU/internal/ledger"
	"github.com/IBA-HOK/CoCoIRU/internal/observability"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/logger"
)

type Clients struct {
	API    *client.Client
	Ledger *ledger.Ledger
	Creds  *credstore.Store
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *config.Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	api, err := client.New(client.Options{
		BaseURL:    cfg.API.Endpoint(),
		Timeout:    cfg.API.Timeout.Duration,
		MaxRetries: cfg.API.MaxRetries,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Log:        log.With("component", "client"),
		Metrics:    metrics,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init api client: %w", err)
	}

	// Ledger
	var led *ledger.Ledger
	if cfg.Ledger.DSN != "" {
		led, err = ledger.Open(cfg.Ledger.DSN, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init ledger: %w", err)
		}
	}

	// Redis
	var creds *credstore.Store
	if cfg.CredStore.RedisURL != "" {
		creds, err = credstore.New(ctx, cfg.CredStore.RedisURL, cfg.CredStore.Key, log)
		if err != nil {
			if led != nil {
				_ = led.Close()
			}
			return Clients{}, fmt.Errorf("init credential store: %w", err)
		}
	}

	return Clients{API: api, Ledger: led, Creds: creds}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Creds != nil {
		_ = c.Creds.Close()
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
}
