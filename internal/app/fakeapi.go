package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/IBA-HOK/CoCoIRU/internal/config"
	"github.com/IBA-HOK/CoCoIRU/internal/fakeapi"
	"github.com/IBA-HOK/CoCoIRU/internal/observability"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/envutil"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/logger"
)

// FakeAPI is the local stand-in for the CoCoIRU backend.
type FakeAPI struct {
	Log    *logger.Logger
	Server *http.Server
	API    *fakeapi.Server

	otelShutdown func(context.Context) error
}

// NewFakeAPI builds the HTTP server without starting it. Gov accounts come
// from FAKEAPI_GOV_USERS as "user=password,user2=password2".
func NewFakeAPI(ctx context.Context) (*FakeAPI, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.With("service", "fakeapi")

	cfg, err := config.Load()
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "cocoiru-fakeapi",
		Environment: cfg.Env,
		Version:     Version,
	})

	api, err := fakeapi.New(fakeapi.Options{
		JWTSecret:    cfg.FakeAPI.JWTSecret,
		TokenTTL:     cfg.FakeAPI.TokenTTL.Duration,
		GovUsers:     parseGovUsers(envutil.String("FAKEAPI_GOV_USERS", "")),
		AllowOrigins: cfg.FakeAPI.AllowOrigins,
		Log:          log,
		Metrics:      observability.NewMetrics(),
	})
	if err != nil {
		_ = shutdown(ctx)
		log.Sync()
		return nil, fmt.Errorf("init fake api: %w", err)
	}

	return &FakeAPI{
		Log: log,
		Server: &http.Server{
			Addr:              cfg.FakeAPI.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		API:          api,
		otelShutdown: shutdown,
	}, nil
}

func (f *FakeAPI) Close() {
	if f == nil {
		return
	}
	if f.otelShutdown != nil {
		_ = f.otelShutdown(context.Background())
	}
	f.Log.Sync()
}

func parseGovUsers(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		user, pw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(user) == "" || pw == "" {
			continue
		}
		out[strings.TrimSpace(user)] = pw
	}
	return out
}
