package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"triagebench/internal/rank"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullFloat maps SQL NULL back to NaN, the value it was stored from.
func nullFloat(nf sql.NullFloat64) float64 {
	if nf.Valid {
		return nf.Float64
	}
	return math.NaN()
}

// floatOrNil stores NaN as NULL; SQLite has no NaN.
func floatOrNil(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations, creating
// the parent directory when needed.
func Open(path string) (*SqlStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	return open(path, 0)
}

// OpenMemory returns a store backed by a private in-memory database.
func OpenMemory() (*SqlStore, error) {
	// Every pooled connection to :memory: would see its own empty database.
	return open(":memory:", 1)
}

func open(dsn string, maxConns int) (*SqlStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		v = schemaVersionV1
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", v); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	switch v {
	case currentSchemaVersion:
		return nil
	case schemaVersionV1:
		return s.migrateV1ToV2()
	default:
		return fmt.Errorf("unknown schema version %d", v)
	}
}

func (s *SqlStore) freshInstall() error {
	if _, err := s.db.Exec(schemaV2); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

func (s *SqlStore) migrateV1ToV2() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(migrationV1ToV2); err != nil {
		return fmt.Errorf("v1→v2 migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration tx: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// --- Run ---

func (s *SqlStore) CreateRun(r *Run) (int64, error) {
	if r == nil {
		return 0, errors.New("run is nil")
	}
	if r.StartedAt == "" {
		r.StartedAt = nowUTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO runs(dataset, total_issues, assigned_issues, seed, trials, tie_break, started_at, ended_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Dataset, r.TotalIssues, r.AssignedIssues, strconv.FormatUint(r.Seed, 10),
		r.Trials, r.TieBreak, r.StartedAt, nilIfEmpty(r.EndedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

func (s *SqlStore) FinishRun(id int64) error {
	res, err := s.db.Exec(`UPDATE runs SET ended_at = ? WHERE id = ?`, nowUTC(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %d not found", id)
	}
	return nil
}

const runColumns = `id, dataset, total_issues, assigned_issues, seed, trials, tie_break, started_at, ended_at`

func scanRun(sc interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	var seed string
	var ended sql.NullString
	if err := sc.Scan(&r.ID, &r.Dataset, &r.TotalIssues, &r.AssignedIssues, &seed,
		&r.Trials, &r.TieBreak, &r.StartedAt, &ended); err != nil {
		return nil, err
	}
	n, err := strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("run %d seed %q: %w", r.ID, seed, err)
	}
	r.Seed = n
	r.EndedAt = nullStr(ended)
	return &r, nil
}

// GetRun returns nil, nil when id does not exist.
func (s *SqlStore) GetRun(id int64) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *SqlStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Job results ---

// SaveJobResult writes the aggregate row and its trials in one transaction.
func (s *SqlStore) SaveJobResult(jr *JobResult) (int64, error) {
	if jr == nil {
		return 0, errors.New("job result is nil")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin job tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`INSERT INTO job_results(run_id, job, position, mrr, top1, top5, mrr_sd, top1_sd, top5_sd, elapsed_ms)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jr.RunID, jr.Job, jr.Position,
		floatOrNil(jr.Mean.MRR), floatOrNil(jr.Mean.Top1), floatOrNil(jr.Mean.Top5),
		floatOrNil(jr.StdDev.MRR), floatOrNil(jr.StdDev.Top1), floatOrNil(jr.StdDev.Top5),
		jr.ElapsedMS,
	)
	if err != nil {
		return 0, fmt.Errorf("insert job result %s: %w", jr.Job, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO trials(job_result_id, trial, mrr, top1, top5) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare trials: %w", err)
	}
	defer stmt.Close()
	for i, t := range jr.Trials {
		if _, err := stmt.Exec(id, i+1, floatOrNil(t.MRR), floatOrNil(t.Top1), floatOrNil(t.Top5)); err != nil {
			return 0, fmt.Errorf("insert trial %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit job tx: %w", err)
	}
	jr.ID = id
	return id, nil
}

// ListJobResults returns a run's jobs in report order, trials included.
func (s *SqlStore) ListJobResults(runID int64) ([]*JobResult, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, job, position, mrr, top1, top5, mrr_sd, top1_sd, top5_sd, elapsed_ms
		 FROM job_results WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list job results: %w", err)
	}
	var out []*JobResult
	for rows.Next() {
		var jr JobResult
		var m [6]sql.NullFloat64
		if err := rows.Scan(&jr.ID, &jr.RunID, &jr.Job, &jr.Position,
			&m[0], &m[1], &m[2], &m[3], &m[4], &m[5], &jr.ElapsedMS); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan job result: %w", err)
		}
		jr.Mean = rank.Triple{MRR: nullFloat(m[0]), Top1: nullFloat(m[1]), Top5: nullFloat(m[2])}
		jr.StdDev = rank.Triple{MRR: nullFloat(m[3]), Top1: nullFloat(m[4]), Top5: nullFloat(m[5])}
		out = append(out, &jr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, jr := range out {
		if jr.Trials, err = s.listTrials(jr.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SqlStore) listTrials(jobResultID int64) ([]rank.Triple, error) {
	rows, err := s.db.Query(
		`SELECT mrr, top1, top5 FROM trials WHERE job_result_id = ? ORDER BY trial`, jobResultID,
	)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()
	var out []rank.Triple
	for rows.Next() {
		var mrr, top1, top5 sql.NullFloat64
		if err := rows.Scan(&mrr, &top1, &top5); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		out = append(out, rank.Triple{MRR: nullFloat(mrr), Top1: nullFloat(top1), Top5: nullFloat(top5)})
	}
	return out, rows.Err()
}
