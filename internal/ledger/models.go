package ledger

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Run is one seeding execution.
type Run struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Workflow   string         `gorm:"column:workflow;not null;index" json:"workflow"`
	BaseURL    string         `gorm:"column:base_url" json:"base_url"`
	Status     string         `gorm:"column:status;not null;default:running" json:"status"`
	StartedAt  time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	Summary    datatypes.JSON `gorm:"column:summary" json:"summary,omitempty"`

	Entities []Entity `gorm:"foreignKey:RunID" json:"entities,omitempty"`
}

func (Run) TableName() string { return "seed_run" }

// Entity is one identifier the API returned during a run. EntityID and
// ParentID hold the identifier's JSON literal unchanged.
type Entity struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID      uuid.UUID `gorm:"type:uuid;not null;index" json:"run_id"`
	Kind       string    `gorm:"column:kind;not null;index" json:"kind"`
	EntityID   string    `gorm:"column:entity_id;not null" json:"entity_id"`
	Label      string    `gorm:"column:label" json:"label,omitempty"`
	ParentKind string    `gorm:"column:parent_kind" json:"parent_kind,omitempty"`
	ParentID   string    `gorm:"column:parent_id" json:"parent_id,omitempty"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Entity) TableName() string { return "seed_entity" }
