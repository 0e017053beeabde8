// Package metrics emits per-run ingestion events for downstream
// dashboards.
package metrics

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/govatlas/catalog-cli/internal/model"
)

// maxSamples bounds how many per-program diffs a run summary carries.
const maxSamples = 5

// RunStartEvent is emitted when a source run begins.
type RunStartEvent struct {
	SourceID    string `json:"sourceId"`
	SourceRowID int64  `json:"sourceRowId"`
	RunID       *int64 `json:"runId"`
	StartedAt   int64  `json:"startedAt"`
}

// RunCompleteEvent is emitted once a source run has been finalized.
type RunCompleteEvent struct {
	SourceID    string               `json:"sourceId"`
	SourceRowID int64                `json:"sourceRowId"`
	RunID       *int64               `json:"runId"`
	Status      model.RunStatus      `json:"status"`
	StartedAt   int64                `json:"startedAt"`
	EndedAt     int64                `json:"endedAt"`
	DurationMS  int64                `json:"durationMs"`
	Fetched     int                  `json:"fetched"`
	Inserted    int                  `json:"inserted"`
	Updated     int                  `json:"updated"`
	Unchanged   int                  `json:"unchanged"`
	Errors      int                  `json:"errors"`
	Notes       []string             `json:"notes"`
	DiffSummary model.RunDiffSummary `json:"diffSummary"`
}

// Sink receives run lifecycle events. Implementations must not block
// ingestion on delivery failures.
type Sink interface {
	OnRunStart(ev RunStartEvent)
	OnRunComplete(ev RunCompleteEvent)
}

// SummarizeOutcomes folds upsert outcomes into a run-level diff
// summary, keeping at most maxSamples per-program diffs as examples.
func SummarizeOutcomes(outcomes []model.UpsertOutcome) model.RunDiffSummary {
	summary := model.RunDiffSummary{Samples: []model.DiffSample{}}
	for _, outcome := range outcomes {
		if outcome.Status == model.OutcomeUnchanged || outcome.Diff == nil {
			continue
		}
		summary.TotalProgramsChanged++
		summary.TotalChanges += outcome.Diff.TotalChanges
		summary.CriticalChanges += outcome.Diff.CriticalChanges
		if outcome.Diff.CriticalChanges > 0 {
			summary.CriticalPrograms++
		}
		if len(summary.Samples) < maxSamples {
			summary.Samples = append(summary.Samples, model.DiffSample{
				UID:  outcome.UID,
				Diff: *outcome.Diff,
			})
		}
	}
	return summary
}

// ConsoleSink writes one JSON line per completed run. Start events are
// not emitted; the completion record carries the start timestamp.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink creates a sink writing to w, or os.Stdout when w is
// nil.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{out: w}
}

func (s *ConsoleSink) OnRunStart(RunStartEvent) {}

func (s *ConsoleSink) OnRunComplete(ev RunCompleteEvent) {
	payload := map[string]any{
		"type":                 "ingest_run",
		"eventId":              uuid.New().String(),
		"sourceId":             ev.SourceID,
		"runId":                ev.RunID,
		"status":               ev.Status,
		"durationMs":           ev.DurationMS,
		"fetched":              ev.Fetched,
		"inserted":             ev.Inserted,
		"updated":              ev.Updated,
		"unchanged":            ev.Unchanged,
		"errors":               ev.Errors,
		"criticalChanges":      ev.DiffSummary.CriticalChanges,
		"totalChanges":         ev.DiffSummary.TotalChanges,
		"totalProgramsChanged": ev.DiffSummary.TotalProgramsChanged,
		"notes":                ev.Notes,
	}
	line, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("metrics event marshal failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(append(line, '\n')) //nolint:errcheck
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) OnRunStart(RunStartEvent)       {}
func (NoopSink) OnRunComplete(RunCompleteEvent) {}

// FromEnv selects the sink based on METRICS_DISABLE.
func FromEnv(getenv func(string) string) Sink {
	if getenv == nil {
		getenv = os.Getenv
	}
	switch getenv("METRICS_DISABLE") {
	case "1", "true":
		return NoopSink{}
	}
	return NewConsoleSink(nil)
}
