package main

import (
	"context"
	"os"

	"github.com/IBA-HOK/CoCoIRU/internal/app"
	"github.com/IBA-HOK/CoCoIRU/internal/seed"
)

func main() {
	os.Exit(app.Main("seed-requests", func(ctx context.Context, r *seed.Runner) (*seed.Summary, error) {
		return r.Requests(ctx)
	}))
}
