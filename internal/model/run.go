package model

import "time"

// RunStatus is the terminal classification of one ingestion run.
type RunStatus string

const (
	RunOK      RunStatus = "ok"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

// Run is one timestamped execution attempt against one source. Rows are
// append-only history: created at start with provisional status ok,
// finalized exactly once, never deleted.
type Run struct {
	ID          int64     `json:"id"`
	SourceRowID int64     `json:"source_row_id"`
	StartedAt   int64     `json:"started_at"` // epoch ms
	EndedAt     int64     `json:"ended_at"`   // epoch ms
	Status      RunStatus `json:"status"`
	Fetched     int       `json:"fetched"`
	Inserted    int       `json:"inserted"`
	Updated     int       `json:"updated"`
	Unchanged   int       `json:"unchanged"`
	Errors      int       `json:"errors"`
	Message     string    `json:"message,omitempty"`
	Notes       []string  `json:"notes,omitempty"`
	Critical    bool      `json:"critical"`
}

// Started returns the run start as a time.Time.
func (r Run) Started() time.Time {
	return time.UnixMilli(r.StartedAt).UTC()
}

// OutcomeStatus classifies the result of merging one normalized program.
type OutcomeStatus string

const (
	OutcomeInserted  OutcomeStatus = "inserted"
	OutcomeUpdated   OutcomeStatus = "updated"
	OutcomeUnchanged OutcomeStatus = "unchanged"
)

// ProgramDiff is the field-level diff between a stored program and a fresh
// candidate with the same uid.
type ProgramDiff struct {
	ChangedPaths    []string `json:"changed_paths"`
	CriticalPaths   []string `json:"critical_paths,omitempty"`
	TotalChanges    int      `json:"total_changes"`
	CriticalChanges int      `json:"critical_changes"`
}

// UpsertOutcome is the ephemeral per-record result of one merge attempt.
type UpsertOutcome struct {
	UID    string        `json:"uid"`
	Status OutcomeStatus `json:"status"`
	Diff   *ProgramDiff  `json:"diff,omitempty"`
}

// DiffSample pairs a uid with its diff for operator inspection.
type DiffSample struct {
	UID  string      `json:"uid"`
	Diff ProgramDiff `json:"diff"`
}

// RunDiffSummary aggregates diffs across one run's upsert outcomes.
type RunDiffSummary struct {
	TotalProgramsChanged int          `json:"total_programs_changed"`
	TotalChanges         int          `json:"total_changes"`
	CriticalPrograms     int          `json:"critical_programs"`
	CriticalChanges      int          `json:"critical_changes"`
	Samples              []DiffSample `json:"samples,omitempty"`
}

// SourceResult is the structured per-source outcome a catalog run returns
// to its caller. Nothing propagates past the runner except through this.
type SourceResult struct {
	SourceID    string         `json:"source_id"`
	SourceRowID int64          `json:"source_row_id"`
	RunID       int64          `json:"run_id,omitempty"`
	Status      RunStatus      `json:"status"`
	StartedAt   int64          `json:"started_at"`
	EndedAt     int64          `json:"ended_at"`
	DurationMs  int64          `json:"duration_ms"`
	Fetched     int            `json:"fetched"`
	Inserted    int            `json:"inserted"`
	Updated     int            `json:"updated"`
	Unchanged   int            `json:"unchanged"`
	Errors      int            `json:"errors"`
	Notes       []string       `json:"notes,omitempty"`
	Skipped     bool           `json:"skipped,omitempty"`
	DiffSummary RunDiffSummary `json:"diff_summary"`
}
