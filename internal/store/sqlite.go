package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/quantumiracle/tiktok-apify/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	topics     TEXT NOT NULL,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS topic_results (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	topic        TEXT NOT NULL,
	profiles     TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	completed_at DATETIME NOT NULL,
	UNIQUE(run_id, topic)
);

CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	topic       TEXT NOT NULL,
	position    INTEGER NOT NULL DEFAULT 0,
	username    TEXT NOT NULL,
	profile_url TEXT NOT NULL,
	followers   INTEGER,
	likes       INTEGER,
	following   INTEGER,
	friends     INTEGER,
	video_count INTEGER,
	bio         TEXT NOT NULL DEFAULT '',
	email       TEXT,
	has_email   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_topic_results_run_id ON topic_results(run_id);
CREATE INDEX IF NOT EXISTS idx_profiles_run_topic ON profiles(run_id, topic);
CREATE INDEX IF NOT EXISTS idx_profiles_has_email ON profiles(has_email);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, topics []string, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal topics")
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, topics, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(topicsJSON), string(paramsJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Topics:    topics,
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunSummary(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(summary.Status()), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run summary %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, topics, params, status, summary, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, topics, params, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Topic != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(topics) WHERE json_each.value = ?)`
		args = append(args, filter.Topic)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveTopicResult(ctx context.Context, runID string, result model.TopicResult) error {
	profilesJSON, err := json.Marshal(result.Profiles)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profiles")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO topic_results (id, run_id, topic, profiles, error, completed_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, topic) DO UPDATE SET profiles = excluded.profiles, error = excluded.error, completed_at = excluded.completed_at`,
		uuid.New().String(), runID, result.Topic, string(profilesJSON), result.Error, result.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save topic result %s", result.Topic)
	}

	return s.replaceProfileRows(ctx, runID, result)
}

// replaceProfileRows refreshes the flat profiles projection for one topic.
// The pipeline reads the JSON checkpoints in topic_results; the flat table
// exists for ad-hoc SQL over discovered accounts.
func (s *SQLiteStore) replaceProfileRows(ctx context.Context, runID string, result model.TopicResult) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE run_id = ? AND topic = ?`,
		runID, result.Topic,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: clear profile rows for topic %s", result.Topic)
	}

	for i, p := range result.Profiles {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO profiles (id, run_id, topic, position, username, profile_url, followers, likes, following, friends, video_count, bio, email, has_email)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, result.Topic, i, p.Username, p.ProfileURL,
			p.Followers, p.Likes, p.Following, p.Friends, p.VideoCount,
			p.Bio, p.Email, p.HasEmail,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert profile row %s", p.Username)
		}
	}
	return nil
}

func (s *SQLiteStore) ListTopicResults(ctx context.Context, runID string) ([]model.TopicResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, profiles, error, completed_at FROM topic_results WHERE run_id = ? ORDER BY completed_at ASC, topic ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list topic results")
	}
	defer rows.Close()

	var results []model.TopicResult
	for rows.Next() {
		var tr model.TopicResult
		var profilesJSON string
		if err := rows.Scan(&tr.Topic, &profilesJSON, &tr.Error, &tr.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan topic result")
		}
		if err := json.Unmarshal([]byte(profilesJSON), &tr.Profiles); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal profiles")
		}
		results = append(results, tr)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list topic results iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var topicsJSON, paramsJSON string
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &topicsJSON, &paramsJSON, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(topicsJSON), &r.Topics); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal topics")
	}
	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	if summaryJSON.Valid {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
