package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/valid8/valid8/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the database and runs the migration.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'pending',
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// Migrate creates the jobs table if needed.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Create(ctx context.Context) (*model.Job, error) {
	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.New().String(),
		Status:    model.JobPending,
		Stage:     model.StageReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal job")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, payload, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		job.ID, string(job.Status), payload, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return job, nil
}

func (s *PostgresStore) Update(ctx context.Context, jobID string, fn Update) error {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM jobs WHERE id = $1`, jobID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: load job %s", jobID)
	}

	var job model.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return eris.Wrapf(err, "postgres: decode job %s", jobID)
	}

	fn(&job)
	job.UpdatedAt = time.Now().UTC()

	updated, err := json.Marshal(&job)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, payload = $2, updated_at = $3 WHERE id = $4`,
		string(job.Status), updated, job.UpdatedAt, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM jobs WHERE id = $1`, jobID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}

	var job model.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode job %s", jobID)
	}
	return &job, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		var job model.Job
		if err := json.Unmarshal(payload, &job); err != nil {
			return nil, eris.Wrap(err, "postgres: decode job")
		}
		jobs = append(jobs, job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}
