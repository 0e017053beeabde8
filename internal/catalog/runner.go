// Package catalog orchestrates ingestion runs: for each configured
// source it ensures identity rows, fetches and archives the payload,
// parses candidates, merges them into the store, and finalizes run
// bookkeeping. Failures never propagate past the runner; every outcome
// is captured in the per-source result.
package catalog

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/govatlas/catalog-cli/internal/adapter"
	"github.com/govatlas/catalog-cli/internal/fetcher"
	"github.com/govatlas/catalog-cli/internal/metrics"
	"github.com/govatlas/catalog-cli/internal/model"
	"github.com/govatlas/catalog-cli/internal/objstore"
	"github.com/govatlas/catalog-cli/internal/request"
	"github.com/govatlas/catalog-cli/internal/store"
)

// Config wires a Runner's collaborators.
type Config struct {
	Store     store.Store
	Fetcher   *fetcher.Client
	Upserter  *Upserter
	Snapshots objstore.ObjectStore // nil disables raw payload archiving
	Sink      metrics.Sink
	Env       request.EnvAccessor
	Now       func() time.Time
}

// Options tunes one catalog invocation.
type Options struct {
	// Force runs every source regardless of its schedule class.
	Force bool
}

// Runner executes ingestion cycles over a set of sources.
type Runner struct {
	store     store.Store
	fetcher   *fetcher.Client
	upserter  *Upserter
	snapshots objstore.ObjectStore
	sink      metrics.Sink
	env       request.EnvAccessor
	now       func() time.Time
}

// New creates a Runner from cfg, defaulting the metrics sink to noop
// and the clock to time.Now.
func New(cfg Config) *Runner {
	if cfg.Sink == nil {
		cfg.Sink = metrics.NoopSink{}
	}
	if cfg.Env == nil {
		cfg.Env = request.OSEnv
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		store:     cfg.Store,
		fetcher:   cfg.Fetcher,
		upserter:  cfg.Upserter,
		snapshots: cfg.Snapshots,
		sink:      cfg.Sink,
		env:       cfg.Env,
		now:       cfg.Now,
	}
}

// RunOnce processes sources sequentially and returns one result per
// source. Cancellation stops before the next source; sources already
// processed keep their results.
func (r *Runner) RunOnce(ctx context.Context, sources []model.Source, opts Options) []model.SourceResult {
	results := make([]model.SourceResult, 0, len(sources))
	for _, src := range sources {
		if ctx.Err() != nil {
			zap.L().Warn("catalog run cancelled",
				zap.Int("processed", len(results)),
				zap.Int("remaining", len(sources)-len(results)),
			)
			break
		}
		results = append(results, r.runSource(ctx, src, opts))
	}
	return results
}

func (r *Runner) runSource(ctx context.Context, src model.Source, opts Options) model.SourceResult {
	startedAt := r.now().UnixMilli()
	result := model.SourceResult{
		SourceID:    src.ID,
		SourceRowID: -1,
		Status:      model.RunOK,
		StartedAt:   startedAt,
	}
	var notes []string

	sourceRowID, err := r.store.EnsureSource(ctx, src)
	if err != nil {
		notes = append(notes, "ensure_source_failed:"+rootMessage(err))
		result.Status = model.RunError
		result.Errors = 1
		return r.finish(src, result, notes, nil)
	}
	result.SourceRowID = sourceRowID

	if !opts.Force && !r.due(ctx, src, sourceRowID) {
		result.Skipped = true
		result.EndedAt = r.now().UnixMilli()
		zap.L().Debug("source not due, skipping",
			zap.String("source", src.ID),
			zap.String("schedule", string(src.Schedule)),
		)
		return result
	}

	runID, err := r.store.StartRun(ctx, sourceRowID, startedAt)
	if err != nil {
		notes = append(notes, "run_init_failed:"+rootMessage(err))
	} else {
		result.RunID = runID
	}
	r.sink.OnRunStart(metrics.RunStartEvent{
		SourceID:    src.ID,
		SourceRowID: sourceRowID,
		RunID:       runIDPtr(runID),
		StartedAt:   startedAt,
	})

	var outcomes []model.UpsertOutcome
	ingestErr := func() error {
		body, fetchNotes, err := r.fetchPayload(ctx, src)
		notes = append(notes, fetchNotes...)
		if err != nil {
			return err
		}

		// Archive asynchronously; write failures never block
		// ingestion.
		var g errgroup.Group
		if r.snapshots != nil {
			key := objstore.SnapshotKey(src.ID, time.UnixMilli(startedAt))
			contentType := objstore.ContentTypeFor(src.Kind)
			g.Go(func() error {
				if err := r.snapshots.Put(ctx, key, contentType, body); err != nil {
					zap.L().Warn("snapshot write failed",
						zap.String("source", src.ID),
						zap.String("key", key),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		defer g.Wait() //nolint:errcheck

		adp, err := adapter.ForParser(src.Parser)
		if err != nil {
			return err
		}
		candidates, err := adp.Execute(ctx, src.Entrypoint, body, adapter.Options{
			Country:      src.Country,
			Authority:    src.Authority,
			Jurisdiction: src.Jurisdiction,
			SourceRowID:  sourceRowID,
			Path:         src.Path,
			MapFn:        src.MapFn,
		})
		if err != nil {
			return err
		}
		result.Fetched = len(candidates)

		merged, mergeNotes, err := r.upserter.MergeAll(ctx, sourceRowID, candidates)
		outcomes = merged
		notes = append(notes, mergeNotes...)
		return err
	}()

	for _, outcome := range outcomes {
		switch outcome.Status {
		case model.OutcomeInserted:
			result.Inserted++
		case model.OutcomeUpdated:
			result.Updated++
		default:
			result.Unchanged++
		}
	}
	result.DiffSummary = metrics.SummarizeOutcomes(outcomes)

	if ingestErr != nil {
		result.Errors++
		notes = append(notes, "ingest_error:"+rootMessage(ingestErr))
	}
	if result.Errors > 0 && result.Status == model.RunOK {
		result.Status = deriveFailureStatus(result.Fetched, result.Inserted, result.Updated)
	}

	return r.finish(src, result, notes, func(run model.Run) error {
		return r.store.FinalizeRun(ctx, run)
	})
}

// finish stamps timing, persists the run row when one exists, emits the
// completion event, and returns the final result.
func (r *Runner) finish(src model.Source, result model.SourceResult, notes []string, finalize func(model.Run) error) model.SourceResult {
	result.EndedAt = r.now().UnixMilli()
	result.DurationMs = result.EndedAt - result.StartedAt
	if result.DurationMs < 0 {
		result.DurationMs = 0
	}

	if result.RunID > 0 && finalize != nil {
		run := model.Run{
			ID:          result.RunID,
			SourceRowID: result.SourceRowID,
			StartedAt:   result.StartedAt,
			EndedAt:     result.EndedAt,
			Status:      result.Status,
			Fetched:     result.Fetched,
			Inserted:    result.Inserted,
			Updated:     result.Updated,
			Unchanged:   result.Unchanged,
			Errors:      result.Errors,
			Notes:       notes,
			Critical:    result.DiffSummary.CriticalChanges > 0,
		}
		if len(notes) > 0 {
			run.Message = notes[0]
		}
		if err := finalize(run); err != nil {
			notes = append(notes, "run_update_failed:"+rootMessage(err))
		}
	}

	result.Notes = notes
	r.sink.OnRunComplete(metrics.RunCompleteEvent{
		SourceID:    result.SourceID,
		SourceRowID: result.SourceRowID,
		RunID:       runIDPtr(result.RunID),
		Status:      result.Status,
		StartedAt:   result.StartedAt,
		EndedAt:     result.EndedAt,
		DurationMS:  result.DurationMs,
		Fetched:     result.Fetched,
		Inserted:    result.Inserted,
		Updated:     result.Updated,
		Unchanged:   result.Unchanged,
		Errors:      result.Errors,
		Notes:       notes,
		DiffSummary: result.DiffSummary,
	})
	return result
}

// fetchPayload builds and executes the source request. A missing env
// reference triggers the source's declared synthetic payload; synthetic
// data is only valid for the JSON parser.
func (r *Runner) fetchPayload(ctx context.Context, src model.Source) ([]byte, []string, error) {
	req, err := request.Build(src, r.env, r.now())
	if err != nil {
		if request.IsMissingEnv(err) && src.Synthetic != nil {
			if src.Parser != model.ParserJSONAPI {
				return nil, nil, eris.Errorf("synthetic_parser_mismatch:%s", src.Parser)
			}
			zap.L().Info("using synthetic payload",
				zap.String("source", src.ID),
				zap.String("reason", src.Synthetic.Reason),
			)
			return []byte(src.Synthetic.Payload), []string{request.SyntheticNote(src.Synthetic.Reason)}, nil
		}
		return nil, nil, err
	}

	body, err := r.fetcher.Fetch(ctx, *req, src.Rate)
	if err != nil {
		return nil, nil, err
	}
	return body, nil, nil
}

func (r *Runner) due(ctx context.Context, src model.Source, sourceRowID int64) bool {
	last, err := r.store.LastSuccess(ctx, sourceRowID)
	if err != nil {
		zap.L().Debug("last success lookup failed, running anyway",
			zap.String("source", src.ID),
			zap.Error(err),
		)
		return true
	}
	if last == nil {
		return true
	}
	return r.now().Sub(*last) >= scheduleInterval(src.Schedule)
}

func scheduleInterval(s model.Schedule) time.Duration {
	if s == model.ScheduleEvery4h {
		return 4 * time.Hour
	}
	return 24 * time.Hour
}

// deriveFailureStatus classifies a failed cycle: partial when records
// were fetched and at least one change persisted, error otherwise.
func deriveFailureStatus(fetched, inserted, updated int) model.RunStatus {
	if fetched > 0 && (inserted > 0 || updated > 0) {
		return model.RunPartial
	}
	return model.RunError
}

func runIDPtr(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

// rootMessage unwraps err to its innermost cause for compact run notes.
func rootMessage(err error) string {
	if cause := eris.Cause(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}
