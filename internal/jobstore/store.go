// Package jobstore persists pipeline jobs. Memory, SQLite, and
// Postgres backends share one interface so the orchestrator does not
// care which driver is configured.
package jobstore

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/valid8/valid8/internal/config"
	"github.com/valid8/valid8/internal/model"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = eris.New("jobstore: job not found")

// Update mutates a job in place inside the store's write path.
type Update func(job *model.Job)

// Store defines the persistence interface for pipeline jobs.
type Store interface {
	// Create inserts a new pending job and returns it.
	Create(ctx context.Context) (*model.Job, error)

	// Update applies fn to the stored job and bumps UpdatedAt.
	Update(ctx context.Context, jobID string, fn Update) error

	// Get returns a copy of the job, or ErrNotFound.
	Get(ctx context.Context, jobID string) (*model.Job, error)

	// List returns jobs ordered newest first, at most limit entries.
	List(ctx context.Context, limit int) ([]model.Job, error)

	// Close releases the backing resources.
	Close() error
}

// Open builds a Store for the configured driver.
func Open(ctx context.Context, cfg config.JobStoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("jobstore: unknown driver %q", cfg.Driver)
	}
}
