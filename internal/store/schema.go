package store

// schemaVersionV1 stored run summaries only.
const schemaVersionV1 = 1

// schemaVersionV2 adds per-trial rows and job timings.
const schemaVersionV2 = 2

const currentSchemaVersion = schemaVersionV2

// schemaV1 is the summaries-only DDL, kept for migration tests.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset          TEXT NOT NULL,
	total_issues     INTEGER NOT NULL,
	assigned_issues  INTEGER NOT NULL,
	seed             TEXT NOT NULL,
	trials           INTEGER NOT NULL,
	tie_break        TEXT NOT NULL,
	started_at       TEXT NOT NULL,
	ended_at         TEXT
);

CREATE TABLE IF NOT EXISTS job_results (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    INTEGER NOT NULL REFERENCES runs(id),
	job       TEXT NOT NULL,
	position  INTEGER NOT NULL,
	mrr       REAL,
	top1      REAL,
	top5      REAL,
	mrr_sd    REAL,
	top1_sd   REAL,
	top5_sd   REAL,
	UNIQUE(run_id, job)
);
`

// schemaV2 is the DDL for a fresh database.
var schemaV2 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset          TEXT NOT NULL,
	total_issues     INTEGER NOT NULL,
	assigned_issues  INTEGER NOT NULL,
	seed             TEXT NOT NULL,
	trials           INTEGER NOT NULL,
	tie_break        TEXT NOT NULL,
	started_at       TEXT NOT NULL,
	ended_at         TEXT
);

CREATE TABLE IF NOT EXISTS job_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	job         TEXT NOT NULL,
	position    INTEGER NOT NULL,
	mrr         REAL,
	top1        REAL,
	top5        REAL,
	mrr_sd      REAL,
	top1_sd     REAL,
	top5_sd     REAL,
	elapsed_ms  INTEGER NOT NULL DEFAULT 0,
	UNIQUE(run_id, job)
);

CREATE TABLE IF NOT EXISTS trials (
	job_result_id  INTEGER NOT NULL REFERENCES job_results(id),
	trial          INTEGER NOT NULL,
	mrr            REAL,
	top1           REAL,
	top5           REAL,
	PRIMARY KEY (job_result_id, trial)
);

CREATE INDEX IF NOT EXISTS idx_job_results_job ON job_results(job);
`

// migrationV1ToV2 upgrades a summaries-only database.
var migrationV1ToV2 = `
ALTER TABLE job_results ADD COLUMN elapsed_ms INTEGER NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS trials (
	job_result_id  INTEGER NOT NULL REFERENCES job_results(id),
	trial          INTEGER NOT NULL,
	mrr            REAL,
	top1           REAL,
	top5           REAL,
	PRIMARY KEY (job_result_id, trial)
);

CREATE INDEX IF NOT EXISTS idx_job_results_job ON job_results(job);

UPDATE schema_version SET version = 2;
`
