// Package store persists sources, programs, and ingestion runs. The schema
// is a consumed contract owned elsewhere; the DDL here is an idempotent
// bootstrap only.
package store

import (
	"context"
	"time"

	"github.com/govatlas/catalog-cli/internal/model"
)

// SourceStatus pairs a source row with its most recent run, for operator
// inspection.
type SourceStatus struct {
	SourceRowID int64           `json:"source_row_id"`
	Name        string          `json:"name"`
	LastRun     *model.Run      `json:"last_run,omitempty"`
	Authority   string          `json:"authority_level,omitempty"`
	Status      model.RunStatus `json:"status,omitempty"`
}

// Store is the persistence contract for the ingestion catalog.
type Store interface {
	// Sources
	EnsureSource(ctx context.Context, src model.Source) (int64, error)

	// Runs (append-only history)
	StartRun(ctx context.Context, sourceRowID int64, startedAt int64) (int64, error)
	FinalizeRun(ctx context.Context, run model.Run) error
	LastSuccess(ctx context.Context, sourceRowID int64) (*time.Time, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	SourceStatuses(ctx context.Context) ([]SourceStatus, error)

	// Programs
	GetProgram(ctx context.Context, uid string) (*model.NormalizedProgram, error)
	InsertProgram(ctx context.Context, p *model.NormalizedProgram) error
	UpdateProgram(ctx context.Context, p *model.NormalizedProgram, changedPaths []string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
