package catalog

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/govatlas/catalog-cli/internal/diff"
	"github.com/govatlas/catalog-cli/internal/enrich"
	"github.com/govatlas/catalog-cli/internal/model"
	"github.com/govatlas/catalog-cli/internal/normalize"
	"github.com/govatlas/catalog-cli/internal/store"
)

// Upserter merges candidate records into the program store, producing
// one outcome per surviving record.
type Upserter struct {
	store    store.Store
	enricher *enrich.Enricher
}

// NewUpserter creates an Upserter. enricher may be nil to skip industry
// code enrichment.
func NewUpserter(st store.Store, enricher *enrich.Enricher) *Upserter {
	return &Upserter{store: st, enricher: enricher}
}

// MergeAll normalizes and upserts each candidate. A candidate failing
// validation is skipped with a note; store failures abort the batch.
func (u *Upserter) MergeAll(ctx context.Context, sourceRowID int64, candidates []model.Candidate) ([]model.UpsertOutcome, []string, error) {
	var outcomes []model.UpsertOutcome
	var notes []string

	for _, c := range candidates {
		c.SourceRowID = sourceRowID
		p, err := normalize.Normalize(c)
		if err != nil {
			notes = append(notes, fmt.Sprintf("validation_failed:%s", eris.Cause(err).Error()))
			zap.L().Warn("skipping invalid candidate",
				zap.String("title", c.Title),
				zap.Error(err),
			)
			continue
		}
		if u.enricher != nil {
			u.enricher.Enrich(ctx, p)
		}

		outcome, err := u.merge(ctx, p)
		if err != nil {
			return outcomes, notes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, notes, nil
}

func (u *Upserter) merge(ctx context.Context, p *model.NormalizedProgram) (model.UpsertOutcome, error) {
	existing, err := u.store.GetProgram(ctx, p.UID)
	if err != nil {
		return model.UpsertOutcome{}, eris.Wrapf(err, "upsert: lookup %s", p.UID)
	}

	if existing == nil {
		if err := u.store.InsertProgram(ctx, p); err != nil {
			return model.UpsertOutcome{}, eris.Wrapf(err, "upsert: insert %s", p.UID)
		}
		return model.UpsertOutcome{UID: p.UID, Status: model.OutcomeInserted}, nil
	}

	d := diff.Program(existing, p)
	if d == nil {
		return model.UpsertOutcome{UID: p.UID, Status: model.OutcomeUnchanged}, nil
	}

	if err := u.store.UpdateProgram(ctx, p, d.ChangedPaths); err != nil {
		return model.UpsertOutcome{}, eris.Wrapf(err, "upsert: update %s", p.UID)
	}
	return model.UpsertOutcome{UID: p.UID, Status: model.OutcomeUpdated, Diff: d}, nil
}
