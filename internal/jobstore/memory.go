package jobstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valid8/valid8/internal/model"
)

// MemoryStore keeps jobs in a map. Jobs do not survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemory creates an in-memory job store.
func NewMemory() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

func (s *MemoryStore) Create(ctx context.Context) (*model.Job, error) {
	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.New().String(),
		Status:    model.JobPending,
		Stage:     model.StageReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	copied := *job
	return &copied, nil
}

func (s *MemoryStore) Update(ctx context.Context, jobID string, fn Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
