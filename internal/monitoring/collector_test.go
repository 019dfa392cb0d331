package monitoring

import (
	"context"
	"testing"

	"github.com/valid8/valid8/internal/jobstore"
	"github.com/valid8/valid8/internal/model"
)

func TestCollect(t *testing.T) {
	store := jobstore.NewMemory()
	ctx := context.Background()

	done, _ := store.Create(ctx)
	store.Update(ctx, done.ID, func(j *model.Job) {
		j.Status = model.JobCompleted
		j.Result = &model.PipelineReport{
			CleanedCount:   3,
			ValidatedCount: 3,
			ValidatedProviders: []model.ValidationResult{
				{RequiresManualReview: true},
				{RequiresManualReview: false},
				{RequiresManualReview: true},
			},
		}
	})

	failed, _ := store.Create(ctx)
	store.Update(ctx, failed.ID, func(j *model.Job) {
		j.Status = model.JobFailed
		j.Error = "validation unreachable"
	})

	store.Create(ctx) // stays pending

	snap, err := NewCollector(store).Collect(ctx)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if snap.JobsTotal != 3 || snap.JobsCompleted != 1 || snap.JobsFailed != 1 || snap.JobsPending != 1 {
		t.Errorf("unexpected job counts: %+v", snap)
	}
	if snap.ProvidersCleaned != 3 || snap.ProvidersValidated != 3 {
		t.Errorf("unexpected provider counts: %+v", snap)
	}
	if snap.ManualReviewCount != 2 {
		t.Errorf("expected 2 manual reviews, got %d", snap.ManualReviewCount)
	}
	if snap.JobFailRate < 0.33 || snap.JobFailRate > 0.34 {
		t.Errorf("unexpected fail rate: %v", snap.JobFailRate)
	}
}

func TestCollect_Empty(t *testing.T) {
	snap, err := NewCollector(jobstore.NewMemory()).Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if snap.JobsTotal != 0 || snap.JobFailRate != 0 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}
