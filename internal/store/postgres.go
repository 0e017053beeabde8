package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/govatlas/catalog-cli/internal/db"
	"github.com/govatlas/catalog-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	url               TEXT,
	license           TEXT,
	tos_url           TEXT,
	authority_level   TEXT,
	jurisdiction_code TEXT
);

CREATE TABLE IF NOT EXISTS programs (
	id                BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	uid               TEXT NOT NULL UNIQUE,
	country_code      TEXT NOT NULL,
	authority_level   TEXT NOT NULL,
	jurisdiction_code TEXT NOT NULL,
	title             TEXT NOT NULL,
	summary           TEXT,
	benefit_type      TEXT,
	status            TEXT NOT NULL DEFAULT 'unknown',
	industry_codes    JSONB NOT NULL DEFAULT '[]',
	start_date        TEXT,
	end_date          TEXT,
	url               TEXT,
	source_id         BIGINT REFERENCES sources(id),
	created_at        BIGINT NOT NULL,
	updated_at        BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_programs_uid ON programs(uid);
CREATE INDEX IF NOT EXISTS idx_programs_jurisdiction ON programs(jurisdiction_code);

CREATE TABLE IF NOT EXISTS benefits (
	id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	program_id       BIGINT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
	type             TEXT NOT NULL,
	min_amount_cents BIGINT,
	max_amount_cents BIGINT,
	currency_code    TEXT,
	notes            TEXT
);

CREATE TABLE IF NOT EXISTS criteria (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	program_id BIGINT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	operator   TEXT NOT NULL,
	value      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	program_id BIGINT NOT NULL REFERENCES programs(id) ON DELETE CASCADE,
	tag        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_benefits_program ON benefits(program_id);
CREATE INDEX IF NOT EXISTS idx_criteria_program ON criteria(program_id);
CREATE INDEX IF NOT EXISTS idx_tags_program ON tags(program_id);

CREATE TABLE IF NOT EXISTS ingestion_runs (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	source_id  BIGINT NOT NULL REFERENCES sources(id),
	started_at BIGINT NOT NULL,
	ended_at   BIGINT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'ok',
	fetched    INTEGER NOT NULL DEFAULT 0,
	inserted   INTEGER NOT NULL DEFAULT 0,
	updated    INTEGER NOT NULL DEFAULT 0,
	unchanged  INTEGER NOT NULL DEFAULT 0,
	errors     INTEGER NOT NULL DEFAULT 0,
	message    TEXT,
	notes      JSONB,
	critical   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_ingestion_runs_source ON ingestion_runs(source_id, started_at DESC);
`

// Migrate applies the idempotent schema bootstrap.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// EnsureSource upserts the source identity row and returns its id.
func (s *PostgresStore) EnsureSource(ctx context.Context, src model.Source) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sources (name, url, license, tos_url, authority_level, jurisdiction_code)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			license = EXCLUDED.license,
			tos_url = EXCLUDED.tos_url,
			authority_level = EXCLUDED.authority_level,
			jurisdiction_code = EXCLUDED.jurisdiction_code
		 RETURNING id`,
		src.ID, src.Entrypoint, nullable(src.License), nullable(src.TOSURL),
		string(src.Authority), src.Jurisdiction,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: ensure source %s", src.ID)
	}
	return id, nil
}

// StartRun inserts a Run row with provisional status ok and returns its id.
func (s *PostgresStore) StartRun(ctx context.Context, sourceRowID int64, startedAt int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ingestion_runs (source_id, started_at, ended_at, status)
		 VALUES ($1, $2, $2, 'ok') RETURNING id`,
		sourceRowID, startedAt,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: start run for source %d", sourceRowID)
	}
	return id, nil
}

// FinalizeRun writes the run's terminal state. Attempted exactly once per
// source per invocation.
func (s *PostgresStore) FinalizeRun(ctx context.Context, run model.Run) error {
	var notesJSON any
	if len(run.Notes) > 0 {
		b, err := json.Marshal(run.Notes)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run notes")
		}
		notesJSON = b
	}
	var message any
	if run.Message != "" {
		message = run.Message
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE ingestion_runs
		 SET ended_at = $1, status = $2, fetched = $3, inserted = $4,
		     updated = $5, unchanged = $6, errors = $7, message = $8,
		     notes = $9, critical = $10
		 WHERE id = $11`,
		run.EndedAt, string(run.Status), run.Fetched, run.Inserted,
		run.Updated, run.Unchanged, run.Errors, message, notesJSON,
		run.Critical, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize run %d", run.ID)
	}
	return nil
}

// LastSuccess returns the start time of the most recent ok run for a source
// row, or nil if none exists.
func (s *PostgresStore) LastSuccess(ctx context.Context, sourceRowID int64) (*time.Time, error) {
	var startedAt int64
	err := s.pool.QueryRow(ctx,
		`SELECT started_at FROM ingestion_runs
		 WHERE source_id = $1 AND status = 'ok'
		 ORDER BY started_at DESC LIMIT 1`,
		sourceRowID,
	).Scan(&startedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: last success for source %d", sourceRowID)
	}
	t := time.UnixMilli(startedAt).UTC()
	return &t, nil
}

// ListRuns returns recent runs, most recent first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_id, started_at, ended_at, status, fetched, inserted,
		        updated, unchanged, errors, COALESCE(message, ''), notes, critical
		 FROM ingestion_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func scanRun(row pgx.Row) (model.Run, error) {
	var r model.Run
	var status string
	var notesJSON []byte
	err := row.Scan(&r.ID, &r.SourceRowID, &r.StartedAt, &r.EndedAt, &status,
		&r.Fetched, &r.Inserted, &r.Updated, &r.Unchanged, &r.Errors,
		&r.Message, &notesJSON, &r.Critical)
	if err != nil {
		return model.Run{}, eris.Wrap(err, "postgres: scan run")
	}
	r.Status = model.RunStatus(status)
	if len(notesJSON) > 0 {
		if err := json.Unmarshal(notesJSON, &r.Notes); err != nil {
			return model.Run{}, eris.Wrap(err, "postgres: decode run notes")
		}
	}
	return r, nil
}

// SourceStatuses returns each source row with its most recent run.
func (s *PostgresStore) SourceStatuses(ctx context.Context) ([]SourceStatus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.id, s.name, COALESCE(s.authority_level, ''),
		        r.id, r.started_at, r.ended_at, r.status, r.fetched, r.inserted,
		        r.updated, r.unchanged, r.errors, COALESCE(r.message, ''), r.critical
		 FROM sources s
		 LEFT JOIN LATERAL (
			SELECT * FROM ingestion_runs WHERE source_id = s.id
			ORDER BY started_at DESC LIMIT 1
		 ) r ON TRUE
		 ORDER BY s.name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: source statuses")
	}
	defer rows.Close()

	var statuses []SourceStatus
	for rows.Next() {
		var st SourceStatus
		var runID, startedAt, endedAt *int64
		var runStatus, message *string
		var fetched, inserted, updated, unchanged, errCount *int
		var critical *bool
		err := rows.Scan(&st.SourceRowID, &st.Name, &st.Authority,
			&runID, &startedAt, &endedAt, &runStatus, &fetched, &inserted,
			&updated, &unchanged, &errCount, &message, &critical)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan source status")
		}
		if runID != nil {
			run := model.Run{
				ID:          *runID,
				SourceRowID: st.SourceRowID,
				StartedAt:   *startedAt,
				EndedAt:     *endedAt,
				Status:      model.RunStatus(*runStatus),
				Fetched:     *fetched,
				Inserted:    *inserted,
				Updated:     *updated,
				Unchanged:   *unchanged,
				Errors:      *errCount,
				Message:     *message,
				Critical:    *critical,
			}
			st.LastRun = &run
			st.Status = run.Status
		}
		statuses = append(statuses, st)
	}
	return statuses, eris.Wrap(rows.Err(), "postgres: source statuses")
}

// GetProgram fetches a stored program by uid, or nil when absent.
func (s *PostgresStore) GetProgram(ctx context.Context, uid string) (*model.NormalizedProgram, error) {
	var p model.NormalizedProgram
	var authority, status string
	var summary, benefitType, startDate, endDate, url *string
	var sourceID *int64
	var codesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT uid, country_code, authority_level, jurisdiction_code, title,
		        summary, benefit_type, status, industry_codes, start_date,
		        end_date, url, source_id
		 FROM programs WHERE uid = $1`,
		uid,
	).Scan(&p.UID, &p.CountryCode, &authority, &p.JurisdictionCode,
		&p.Title, &summary, &benefitType, &status, &codesJSON,
		&startDate, &endDate, &url, &sourceID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get program %s", uid)
	}

	p.AuthorityLevel = model.AuthorityLevel(authority)
	p.Status = model.ProgramStatus(status)
	p.Summary = deref(summary)
	p.BenefitType = model.BenefitType(deref(benefitType))
	p.StartDate = deref(startDate)
	p.EndDate = deref(endDate)
	p.URL = deref(url)
	if sourceID != nil {
		p.SourceRowID = *sourceID
	}
	if len(codesJSON) > 0 {
		if err := json.Unmarshal(codesJSON, &p.IndustryCodes); err != nil {
			return nil, eris.Wrapf(err, "postgres: decode industry codes for %s", uid)
		}
	}
	return &p, nil
}

// InsertProgram writes a new program row plus its benefits, criteria, and
// tags in a single statement batch.
func (s *PostgresStore) InsertProgram(ctx context.Context, p *model.NormalizedProgram) error {
	now := time.Now().UnixMilli()
	codesJSON, err := json.Marshal(orEmpty(p.IndustryCodes))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal industry codes")
	}

	var programID int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO programs (uid, country_code, authority_level, jurisdiction_code,
			title, summary, benefit_type, status, industry_codes, start_date,
			end_date, url, source_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		 RETURNING id`,
		p.UID, p.CountryCode, string(p.AuthorityLevel), p.JurisdictionCode,
		p.Title, nullable(p.Summary), nullable(string(p.BenefitType)),
		string(p.Status), codesJSON, nullable(p.StartDate),
		nullable(p.EndDate), nullable(p.URL), nullableID(p.SourceRowID), now,
	).Scan(&programID)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert program %s", p.UID)
	}

	return s.replaceChildren(ctx, programID, p)
}

// updatableColumns maps diff paths to program columns.
var updatableColumns = map[string]string{
	"summary":        "summary",
	"benefit_type":   "benefit_type",
	"status":         "status",
	"industry_codes": "industry_codes",
	"start_date":     "start_date",
	"end_date":       "end_date",
	"url":            "url",
}

// UpdateProgram writes only the changed columns plus updated_at, then
// replaces the child rows. Identity fields are never altered post-insert.
func (s *PostgresStore) UpdateProgram(ctx context.Context, p *model.NormalizedProgram, changedPaths []string) error {
	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UnixMilli()}

	for _, path := range changedPaths {
		col, ok := updatableColumns[path]
		if !ok {
			return eris.Errorf("postgres: unknown changed path %q", path)
		}
		var val any
		switch path {
		case "summary":
			val = nullable(p.Summary)
		case "benefit_type":
			val = nullable(string(p.BenefitType))
		case "status":
			val = string(p.Status)
		case "industry_codes":
			b, err := json.Marshal(orEmpty(p.IndustryCodes))
			if err != nil {
				return eris.Wrap(err, "postgres: marshal industry codes")
			}
			val = b
		case "start_date":
			val = nullable(p.StartDate)
		case "end_date":
			val = nullable(p.EndDate)
		case "url":
			val = nullable(p.URL)
		}
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	args = append(args, p.UID)
	var programID int64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("UPDATE programs SET %s WHERE uid = $%d RETURNING id",
			strings.Join(sets, ", "), len(args)),
		args...,
	).Scan(&programID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update program %s", p.UID)
	}

	return s.replaceChildren(ctx, programID, p)
}

// replaceChildren rewrites benefits, criteria, and tags for a program as a
// single batch of prepared statements.
func (s *PostgresStore) replaceChildren(ctx context.Context, programID int64, p *model.NormalizedProgram) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM benefits WHERE program_id = $1`, programID)
	batch.Queue(`DELETE FROM criteria WHERE program_id = $1`, programID)
	batch.Queue(`DELETE FROM tags WHERE program_id = $1`, programID)

	for _, b := range p.Benefits {
		batch.Queue(
			`INSERT INTO benefits (program_id, type, min_amount_cents, max_amount_cents, currency_code, notes)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			programID, string(b.Type), b.MinAmountCents, b.MaxAmountCents,
			nullable(b.CurrencyCode), nullable(b.Notes),
		)
	}
	for _, c := range p.Criteria {
		batch.Queue(
			`INSERT INTO criteria (program_id, kind, operator, value) VALUES ($1, $2, $3, $4)`,
			programID, c.Kind, c.Operator, c.Value,
		)
	}
	for _, t := range p.Tags {
		batch.Queue(`INSERT INTO tags (program_id, tag) VALUES ($1, $2)`, programID, t)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close() //nolint:errcheck
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return eris.Wrapf(err, "postgres: write children for program %d", programID)
		}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orEmpty(codes []string) []string {
	if codes == nil {
		return []string{}
	}
	return codes
}
