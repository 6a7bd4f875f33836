package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"carscout/models"
	"carscout/search"
)

// SQLiteStore holds operational data: job history, per-source run
// diagnostics, log lines, pending commands and saved searches. Search
// aggregation never reads it back; it exists for operators and the status
// API.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_jobs (
		id TEXT PRIMARY KEY,
		owner TEXT,
		status TEXT NOT NULL,
		criteria TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		finished_at DATETIME,
		total_items INTEGER DEFAULT 0,
		sites_scraped INTEGER DEFAULT 0,
		total_ms INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS site_runs (
		id INTEGER PRIMARY KEY,
		job_id TEXT NOT NULL,
		source TEXT NOT NULL,
		state TEXT NOT NULL,
		passes TEXT,
		item_count INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		error TEXT,
		note TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_site_runs_job ON site_runs(job_id);

	CREATE TABLE IF NOT EXISTS search_logs (
		id INTEGER PRIMARY KEY,
		job_id TEXT,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		source_id TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT NOT NULL,
		params TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS saved_searches (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		owner TEXT,
		criteria TEXT NOT NULL,
		active BOOLEAN DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_run_at DATETIME
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordJob implements search.Recorder.
func (s *SQLiteStore) RecordJob(job models.Job) {
	criteria, _ := json.Marshal(job.Criteria)
	s.db.Exec(
		`INSERT OR REPLACE INTO search_jobs (id, owner, status, criteria, created_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID.String(), job.Owner, string(job.Status), string(criteria), job.CreatedAt,
	)
}

// RecordSiteRun implements search.Recorder.
func (s *SQLiteStore) RecordSiteRun(jobID uuid.UUID, run models.SiteRun) {
	passes, _ := json.Marshal(run.Passes)
	s.db.Exec(
		`INSERT INTO site_runs (job_id, source, state, passes, item_count, duration_ms, error, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID.String(), run.Source, string(run.State), string(passes),
		run.ItemCount, run.Duration.Milliseconds(), run.Error, run.Note, time.Now(),
	)
}

// RecordJobDone implements search.Recorder.
func (s *SQLiteStore) RecordJobDone(job models.Job, stats search.Stats) {
	s.db.Exec(
		`UPDATE search_jobs SET status = ?, finished_at = ?, total_items = ?, sites_scraped = ?, total_ms = ? WHERE id = ?`,
		string(job.Status), job.FinishedAt, stats.TotalItems, stats.SitesScraped, stats.TotalMs, job.ID.String(),
	)
}

func (s *SQLiteStore) Log(jobID *string, level models.LogLevel, message, sourceID string) {
	s.db.Exec(
		`INSERT INTO search_logs (job_id, timestamp, level, message, source_id) VALUES (?, ?, ?, ?, ?)`,
		jobID, time.Now(), string(level), message, sourceID,
	)
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(
		`SELECT id, command, COALESCE(params, ''), created_at FROM commands WHERE processed_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params string
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Params = json.RawMessage(params)
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, fmt.Errorf("parse command params: %w", err)
	}
	return params, nil
}

func (s *SQLiteStore) CreateSavedSearch(name, owner string, criteria models.SearchCriteria) (int64, error) {
	data, err := json.Marshal(criteria)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO saved_searches (name, owner, criteria) VALUES (?, ?, ?)`,
		name, owner, string(data),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListActiveSavedSearches() ([]models.SavedSearch, error) {
	rows, err := s.db.Query(
		`SELECT id, name, COALESCE(owner, ''), criteria, active, created_at, last_run_at
		 FROM saved_searches WHERE active = TRUE ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var searches []models.SavedSearch
	for rows.Next() {
		var ss models.SavedSearch
		var criteria string
		if err := rows.Scan(&ss.ID, &ss.Name, &ss.Owner, &criteria, &ss.Active, &ss.CreatedAt, &ss.LastRunAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(criteria), &ss.Criteria); err != nil {
			return nil, fmt.Errorf("saved search %d: bad criteria: %w", ss.ID, err)
		}
		searches = append(searches, ss)
	}
	return searches, rows.Err()
}

func (s *SQLiteStore) GetSavedSearch(id int64) (*models.SavedSearch, error) {
	row := s.db.QueryRow(
		`SELECT id, name, COALESCE(owner, ''), criteria, active, created_at, last_run_at
		 FROM saved_searches WHERE id = ?`, id,
	)
	var ss models.SavedSearch
	var criteria string
	if err := row.Scan(&ss.ID, &ss.Name, &ss.Owner, &criteria, &ss.Active, &ss.CreatedAt, &ss.LastRunAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(criteria), &ss.Criteria); err != nil {
		return nil, fmt.Errorf("saved search %d: bad criteria: %w", ss.ID, err)
	}
	return &ss, nil
}

func (s *SQLiteStore) TouchSavedSearch(id int64) error {
	_, err := s.db.Exec(`UPDATE saved_searches SET last_run_at = ? WHERE id = ?`, time.Now(), id)
	return err
}
