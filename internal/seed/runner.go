package seed

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/IBA-HOK/CoCoIRU/internal/client"
	"github.com/IBA-HOK/CoCoIRU/internal/config"
	"github.com/IBA-HOK/CoCoIRU/internal/domain"
	"github.com/IBA-HOK/CoCoIRU/internal/fixture"
	"github.com/IBA-HOK/CoCoIRU/internal/observability"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/logger"
)

var (
	// ErrAuth means no token could be obtained; nothing else was attempted.
	ErrAuth = errors.New("authentication failed")
	// ErrEmptyPool means a phase produced no identifiers for later phases to use.
	ErrEmptyPool = errors.New("no entities created")
)

// API is the slice of the client the workflows depend on.
type API interface {
	Create(ctx context.Context, req client.Request) (domain.ID, bool)
	Update(ctx context.Context, req client.Request, id domain.ID) bool
	ListCommunities(ctx context.Context, token string) ([]domain.CommunityRecord, error)
	IssueToken(ctx context.Context, req domain.TokenRequest) (domain.TokenResponse, error)
}

// Recorder persists what a run created. Implementations must tolerate being
// called once per phase with a batch of rows.
type Recorder interface {
	StartRun(ctx context.Context, runID, workflow, baseURL string) error
	RecordEntities(ctx context.Context, runID string, rows []domain.Created) error
	FinishRun(ctx context.Context, runID string, status string, summary any) error
}

// CredentialStore keeps the bootstrap credential between runs. Load returns a
// zero credential when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (domain.Credential, error)
	Save(ctx context.Context, cred domain.Credential) error
}

type Runner struct {
	API    API
	Gen    *fixture.Generator
	Log    *logger.Logger
	Config *config.Config

	// Ledger, Creds and Metrics are optional.
	Ledger  Recorder
	Creds   CredentialStore
	Metrics *observability.Metrics

	// Out receives the operator-facing summary and credential tables.
	Out io.Writer

	// Now defaults to time.Now.
	Now func() time.Time
}

// run is the per-execution state threaded through a workflow's phases.
type run struct {
	id      string
	log     *logger.Logger
	summary *Summary
	session Session
}

func (r *Runner) begin(ctx context.Context, workflow string) *run {
	id := uuid.NewString()
	rn := &run{
		id:      id,
		log:     r.logger().With("workflow", workflow, "run_id", id),
		summary: newSummary(workflow, id),
	}
	if r.Ledger != nil {
		if err := r.Ledger.StartRun(ctx, id, workflow, r.Config.API.Endpoint()); err != nil {
			rn.log.Warn("ledger start failed", "error", err)
		}
	}
	rn.log.Info("run started", "api", r.Config.API.Endpoint())
	return rn
}

// finish closes the ledger run and, when the workflow completed, prints the summary.
func (r *Runner) finish(ctx context.Context, rn *run, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
		rn.log.Error("run aborted", "error", err)
	} else {
		rn.log.Info("run finished")
		if _, werr := rn.summary.WriteTo(r.out()); werr != nil {
			rn.log.Warn("summary write failed", "error", werr)
		}
	}
	for _, t := range rn.summary.Tallies {
		r.Metrics.SetTally(rn.summary.Workflow, t.Kind, t.Attempted, t.Succeeded)
	}
	if r.Ledger != nil {
		if lerr := r.Ledger.FinishRun(context.WithoutCancel(ctx), rn.id, status, rn.summary); lerr != nil {
			rn.log.Warn("ledger finish failed", "error", lerr)
		}
	}
}

// record hands a joined phase's identifiers to the ledger.
func (r *Runner) record(ctx context.Context, rn *run, rows []domain.Created) {
	if r.Ledger == nil || len(rows) == 0 {
		return
	}
	if err := r.Ledger.RecordEntities(context.WithoutCancel(ctx), rn.id, rows); err != nil {
		rn.log.Warn("ledger write failed", "rows", len(rows), "error", err)
	}
}

func (r *Runner) logger() *logger.Logger {
	if r.Log == nil {
		return logger.NewNop()
	}
	return r.Log
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return io.Discard
	}
	return r.Out
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) timestamp() string {
	return domain.Timestamp(r.now())
}

// fanOut runs fn for every index in [0, n) with at most limit in flight
// (limit <= 0 means unlimited) and returns once all of them have finished.
// Each call owns result slot i, so no locking is needed to collect results.
func fanOut[T any](ctx context.Context, limit, n int, fn func(ctx context.Context, i int) T) []T {
	out := make([]T, n)
	if n == 0 {
		return out
	}
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			out[i] = fn(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
