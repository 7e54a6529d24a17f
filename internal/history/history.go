package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/docpipe/qadoc/constants"
)

// Run is one row of the run ledger. Counts and the report path survive the
// process so flagged files can be rerun later without retyping paths.
type Run struct {
	ID         uuid.UUID
	Mode       string // "run" | "rerun"
	State      constants.JobState
	Pass       int
	Fail       int
	Review     int
	OCR        int
	ReportPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ErrNoRuns is returned when the ledger holds no matching run.
var ErrNoRuns = errors.New("no runs recorded")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	state        TEXT NOT NULL,
	pass_count   INTEGER NOT NULL,
	fail_count   INTEGER NOT NULL,
	review_count INTEGER NOT NULL,
	ocr_count    INTEGER NOT NULL,
	report_path  TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	finished_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);
`

// Store persists the run ledger in a local SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and migrates) the ledger at path. Use ":memory:" in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts one ledger row. Partial progress is never rolled back;
// every terminal state gets a row.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	query, args, err := sq.Insert("runs").
		Columns("id", "mode", "state", "pass_count", "fail_count", "review_count", "ocr_count", "report_path", "started_at", "finished_at").
		Values(run.ID.String(), run.Mode, string(run.State), run.Pass, run.Fail, run.Review, run.OCR, run.ReportPath, run.StartedAt.UTC(), run.FinishedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	s.logger.Debug("history.record.ok", "run_id", run.ID, "state", string(run.State))
	return nil
}

// LastCompleted returns the most recent completed run, letting the CLI rerun
// flagged files against the last produced report without retyping its path.
func (s *Store) LastCompleted(ctx context.Context) (Run, error) {
	query, args, err := sq.Select("id", "mode", "state", "pass_count", "fail_count", "review_count", "ocr_count", "report_path", "started_at", "finished_at").
		From("runs").
		Where(sq.Eq{"state": string(constants.JobStateCompleted)}).
		OrderBy("finished_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return Run{}, fmt.Errorf("build select: %w", err)
	}
	run, err := s.scanRun(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	return run, err
}

// ListRuns returns up to limit most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := sq.Select("id", "mode", "state", "pass_count", "fail_count", "review_count", "ocr_count", "report_path", "started_at", "finished_at").
		From("runs").
		OrderBy("finished_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(row scanner) (Run, error) {
	var run Run
	var id, state string
	err := row.Scan(&id, &run.Mode, &state, &run.Pass, &run.Fail, &run.Review, &run.OCR, &run.ReportPath, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return Run{}, err
	}
	run.ID, err = uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("parse run id: %w", err)
	}
	run.State = constants.JobState(state)
	return run, nil
}
