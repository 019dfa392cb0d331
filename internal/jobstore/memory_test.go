package jobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valid8/valid8/internal/model"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	job, err := s.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != model.JobPending || job.Stage != model.StageReceived {
		t.Errorf("unexpected initial job: %+v", job)
	}
	if job.ID == "" {
		t.Error("expected generated job id")
	}

	err = s.Update(ctx, job.ID, func(j *model.Job) {
		j.Status = model.JobProcessing
		j.Stage = model.StageCleaning
		j.Progress = 30
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.JobProcessing || got.Stage != model.StageCleaning || got.Progress != 30 {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.UpdatedAt.After(job.UpdatedAt) && !got.UpdatedAt.Equal(job.UpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v -> %v", job.UpdatedAt, got.UpdatedAt)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	job, _ := s.Create(ctx)

	got, _ := s.Get(ctx, job.ID)
	got.Status = model.JobFailed

	again, _ := s.Get(ctx, job.ID)
	if again.Status != model.JobPending {
		t.Error("mutating a returned job leaked into the store")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	err := s.Update(ctx, "missing", func(j *model.Job) {})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	first, _ := s.Create(ctx)
	// Force distinct creation times.
	s.Update(ctx, first.ID, func(j *model.Job) {
		j.CreatedAt = j.CreatedAt.Add(-time.Minute)
	})
	second, _ := s.Create(ctx)

	jobs, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != second.ID {
		t.Errorf("expected newest job first, got %s", jobs[0].ID)
	}

	limited, _ := s.List(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("limit not applied: %d", len(limited))
	}
}
