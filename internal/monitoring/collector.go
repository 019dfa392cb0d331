// Package monitoring gathers job throughput metrics for the
// orchestrator's metrics endpoint.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/valid8/valid8/internal/jobstore"
	"github.com/valid8/valid8/internal/model"
)

// listLimit caps how many jobs one snapshot examines.
const listLimit = 10000

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	JobsTotal      int     `json:"jobs_total"`
	JobsPending    int     `json:"jobs_pending"`
	JobsProcessing int     `json:"jobs_processing"`
	JobsCompleted  int     `json:"jobs_completed"`
	JobsFailed     int     `json:"jobs_failed"`
	JobFailRate    float64 `json:"job_fail_rate"`

	ProvidersCleaned   int `json:"providers_cleaned"`
	ProvidersValidated int `json:"providers_validated"`
	ManualReviewCount  int `json:"manual_review_count"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the job store.
type Collector struct {
	store jobstore.Store
}

// NewCollector creates a metrics collector.
func NewCollector(store jobstore.Store) *Collector {
	return &Collector{store: store}
}

// Collect builds a snapshot from the stored jobs.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}

	jobs, err := c.store.List(ctx, listLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	snap.JobsTotal = len(jobs)
	for _, job := range jobs {
		switch job.Status {
		case model.JobPending:
			snap.JobsPending++
		case model.JobProcessing:
			snap.JobsProcessing++
		case model.JobCompleted:
			snap.JobsCompleted++
		case model.JobFailed:
			snap.JobsFailed++
		}

		if job.Result == nil {
			continue
		}
		snap.ProvidersCleaned += job.Result.CleanedCount
		snap.ProvidersValidated += job.Result.ValidatedCount
		for _, verdict := range job.Result.ValidatedProviders {
			if verdict.RequiresManualReview {
				snap.ManualReviewCount++
			}
		}
	}

	if snap.JobsTotal > 0 {
		snap.JobFailRate = float64(snap.JobsFailed) / float64(snap.JobsTotal)
	}
	return snap, nil
}
