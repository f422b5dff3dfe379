package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/quantumiracle/tiktok-apify/internal/db"
	"github.com/quantumiracle/tiktok-apify/internal/model"
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

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":            `INSERT INTO runs (id, topics, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_status":     `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"update_run_summary":    `UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":               `SELECT id, topics, params, status, summary, created_at, updated_at FROM runs WHERE id = $1`,
	"upsert_topic_result":   `INSERT INTO topic_results (id, run_id, topic, profiles, error, completed_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (run_id, topic) DO UPDATE SET profiles = $4, error = $5, completed_at = $6`,
	"list_topic_results":    `SELECT topic, profiles, error, completed_at FROM topic_results WHERE run_id = $1 ORDER BY completed_at ASC, topic ASC`,
	"delete_topic_profiles": `DELETE FROM profiles WHERE run_id = $1 AND topic = $2`,
}

// profileColumns is the column order used when bulk-copying profile rows.
var profileColumns = []string{
	"id", "run_id", "topic", "position", "username", "profile_url",
	"followers", "likes", "following", "friends", "video_count",
	"bio", "email", "has_email",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	topics     JSONB NOT NULL,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS topic_results (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	topic        TEXT NOT NULL,
	profiles     JSONB NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	completed_at TIMESTAMPTZ NOT NULL,
	UNIQUE (run_id, topic)
);

CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	topic       TEXT NOT NULL,
	position    INTEGER NOT NULL DEFAULT 0,
	username    TEXT NOT NULL,
	profile_url TEXT NOT NULL,
	followers   BIGINT,
	likes       BIGINT,
	following   BIGINT,
	friends     BIGINT,
	video_count BIGINT,
	bio         TEXT NOT NULL DEFAULT '',
	email       TEXT,
	has_email   BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_topic_results_run_id ON topic_results(run_id);
CREATE INDEX IF NOT EXISTS idx_profiles_run_topic ON profiles(run_id, topic);
CREATE INDEX IF NOT EXISTS idx_profiles_has_email ON profiles(has_email);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, topics []string, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal topics")
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, topics, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, topicsJSON, paramsJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunSummary(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(summary.Status()), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run summary %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var topicsJSON, paramsJSON []byte
	var summaryNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, topics, params, status, summary, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &topicsJSON, &paramsJSON, &r.Status, &summaryNull, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(topicsJSON, &r.Topics); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal topics")
	}
	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	if summaryNull != nil {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(*summaryNull, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, topics, params, status, summary, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Topic != "" {
		query += fmt.Sprintf(` AND topics @> to_jsonb($%d::text)`, argIdx)
		args = append(args, filter.Topic)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var topicsJSON, paramsJSON []byte
		var summaryNull *[]byte

		if err := rows.Scan(&r.ID, &topicsJSON, &paramsJSON, &r.Status, &summaryNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(topicsJSON, &r.Topics); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal topics")
		}
		if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal params")
		}
		if summaryNull != nil {
			r.Summary = &model.RunSummary{}
			if err := json.Unmarshal(*summaryNull, r.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveTopicResult(ctx context.Context, runID string, result model.TopicResult) error {
	profilesJSON, err := json.Marshal(result.Profiles)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profiles")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO topic_results (id, run_id, topic, profiles, error, completed_at) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (run_id, topic) DO UPDATE SET profiles = $4, error = $5, completed_at = $6`,
		uuid.New().String(), runID, result.Topic, profilesJSON, result.Error, result.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save topic result %s", result.Topic)
	}

	// Refresh the flat profiles projection for this topic. The pipeline
	// reads the JSON checkpoints in topic_results; the flat table exists
	// for ad-hoc SQL over discovered accounts.
	_, err = s.pool.Exec(ctx,
		`DELETE FROM profiles WHERE run_id = $1 AND topic = $2`,
		runID, result.Topic,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: clear profile rows for topic %s", result.Topic)
	}
	if len(result.Profiles) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(result.Profiles))
	for i, p := range result.Profiles {
		rows = append(rows, []any{
			uuid.New().String(), runID, result.Topic, i, p.Username, p.ProfileURL,
			p.Followers, p.Likes, p.Following, p.Friends, p.VideoCount,
			p.Bio, p.Email, p.HasEmail,
		})
	}
	_, err = db.CopyFrom(ctx, s.pool, "profiles", profileColumns, rows)
	return eris.Wrapf(err, "postgres: copy profile rows for topic %s", result.Topic)
}

func (s *PostgresStore) ListTopicResults(ctx context.Context, runID string) ([]model.TopicResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT topic, profiles, error, completed_at FROM topic_results WHERE run_id = $1 ORDER BY completed_at ASC, topic ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list topic results")
	}
	defer rows.Close()

	var results []model.TopicResult
	for rows.Next() {
		var tr model.TopicResult
		var profilesJSON []byte
		if err := rows.Scan(&tr.Topic, &profilesJSON, &tr.Error, &tr.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan topic result")
		}
		if err := json.Unmarshal(profilesJSON, &tr.Profiles); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal profiles")
		}
		results = append(results, tr)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list topic results iterate")
}
