package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
	"github.com/IBA-HOK/CoCoIRU/internal/platform/logger"
)

// Ledger records seeding runs and the identifiers they produced.
type Ledger struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

// Open connects to dsn: postgres:// and postgresql:// URLs use Postgres,
// anything else is a SQLite file path (":memory:" included).
func Open(dsn string, logg *logger.Logger) (*Ledger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("ledger dsn required")
	}

	gormLog := gormLogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	isSQLite := false
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
		isSQLite = true
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if isSQLite {
		// One connection: writes serialize anyway and ":memory:" is per-connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, logg)
}

// New wraps an open database and migrates the ledger tables.
func New(db *gorm.DB, logg *logger.Logger) (*Ledger, error) {
	if logg == nil {
		logg = logger.NewNop()
	}
	if err := db.AutoMigrate(&Run{}, &Entity{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db, log: logg.With("component", "ledger"), now: time.Now}, nil
}

func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (l *Ledger) StartRun(ctx context.Context, runID, workflow, baseURL string) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	run := &Run{
		ID:        id,
		Workflow:  workflow,
		BaseURL:   baseURL,
		Status:    "running",
		StartedAt: l.now().UTC(),
	}
	return l.db.WithContext(ctx).Create(run).Error
}

func (l *Ledger) RecordEntities(ctx context.Context, runID string, rows []domain.Created) error {
	if len(rows) == 0 {
		return nil
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	now := l.now().UTC()
	ents := make([]Entity, 0, len(rows))
	for _, r := range rows {
		if r.ID.IsZero() {
			continue
		}
		ents = append(ents, Entity{
			RunID:      id,
			Kind:       r.Kind,
			EntityID:   r.ID.Raw(),
			Label:      r.Label,
			ParentKind: r.ParentKind,
			ParentID:   r.ParentID.Raw(),
			CreatedAt:  now,
		})
	}
	if len(ents) == 0 {
		return nil
	}
	if err := l.db.WithContext(ctx).CreateInBatches(ents, 200).Error; err != nil {
		return err
	}
	l.log.Debug("ledger rows written", "run_id", runID, "rows", len(ents))
	return nil
}

func (l *Ledger) FinishRun(ctx context.Context, runID string, status string, summary any) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": l.now().UTC(),
	}
	if summary != nil {
		b, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		updates["summary"] = datatypes.JSON(b)
	}
	res := l.db.WithContext(ctx).Model(&Run{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Runs lists the most recent runs first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Run
	err := l.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Entities lists what runID created, optionally filtered to one kind.
func (l *Ledger) Entities(ctx context.Context, runID string, kind string) ([]Entity, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	q := l.db.WithContext(ctx).Where("run_id = ?", id)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []Entity
	err = q.Order("id ASC").Find(&out).Error
	return out, err
}
