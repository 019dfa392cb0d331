package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valid8/valid8/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_Create(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(pgxmock.AnyArg(), "pending", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job, err := s.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, model.StageReceived, job.Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM jobs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	stored := model.Job{
		ID:        "job-1",
		Status:    model.JobProcessing,
		Stage:     model.StageValidation,
		Progress:  60,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(&stored)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload FROM jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	job, err := s.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, job.Status)
	assert.Equal(t, 60, job.Progress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	stored := model.Job{ID: "job-1", Status: model.JobPending, Stage: model.StageReceived}
	payload, err := json.Marshal(&stored)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT payload FROM jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))
	mock.ExpectExec(`UPDATE jobs SET status = \$1, payload = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("completed", pgxmock.AnyArg(), pgxmock.AnyArg(), "job-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = s.Update(context.Background(), "job-1", func(j *model.Job) {
		j.Status = model.JobCompleted
		j.Stage = model.StageCompleted
		j.Progress = 100
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM jobs WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	err := s.Update(context.Background(), "missing", func(j *model.Job) {})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a, _ := json.Marshal(&model.Job{ID: "job-a"})
	b, _ := json.Marshal(&model.Job{ID: "job-b"})

	mock.ExpectQuery(`SELECT payload FROM jobs ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(a).AddRow(b))

	jobs, err := s.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-a", jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM jobs`).
		WithArgs(100).
		WillReturnError(errors.New("connection refused"))

	_, err := s.List(context.Background(), 0)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
