package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/IBA-HOK/CoCoIRU/internal/app"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/shutdown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	f, err := app.NewFakeAPI(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeapi: %v\n", err)
		return 1
	}
	defer f.Close()

	errCh := make(chan error, 1)
	go func() {
		f.Log.Info("fake API listening", "addr", f.Server.Addr)
		errCh <- f.Server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.Log.Error("server failed", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	f.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.Server.Shutdown(shutdownCtx); err != nil {
		f.Log.Error("graceful shutdown failed", "error", err)
		return 1
	}
	return 0
}
