package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/valid8/valid8/internal/jobstore"
	"github.com/valid8/valid8/internal/model"
	"github.com/valid8/valid8/internal/tabular"
)

// Pipeline drives one uploaded batch through cleaning and validation,
// recording progress on the job as it goes.
type Pipeline struct {
	store      jobstore.Store
	ingestion  *IngestionClient
	validation *ValidationClient
}

// NewPipeline wires the orchestration pipeline.
func NewPipeline(store jobstore.Store, ingestion *IngestionClient, validation *ValidationClient) *Pipeline {
	return &Pipeline{store: store, ingestion: ingestion, validation: validation}
}

// VetUpload rejects unusable uploads before a job is created. It
// returns a tabular.InputError for client mistakes.
func VetUpload(filename string, data []byte) error {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".csv"):
		_, err := tabular.DecodeCSV(data)
		return err
	case strings.HasSuffix(name, ".xlsx"):
		_, err := tabular.DecodeXLSX(data)
		return err
	default:
		return &tabular.InputError{Reason: "only CSV and XLSX files are supported"}
	}
}

// Run processes the batch for an already-created job. It is meant to
// run in a background goroutine; all outcomes are recorded on the job.
func (p *Pipeline) Run(ctx context.Context, jobID, filename string, data []byte) {
	logger := zap.L().With(zap.String("job_id", jobID))

	p.update(ctx, jobID, model.JobProcessing, model.StageCleaning, 20)

	ingResp, err := p.ingestion.IngestCSV(ctx, filename, data)
	if err != nil {
		logger.Error("cleaning stage failed", zap.Error(err))
		p.fail(ctx, jobID, err)
		return
	}
	logger.Info("cleaning stage complete",
		zap.Int("providers", ingResp.TotalProviders))

	if len(ingResp.Providers) == 0 {
		// Nothing survived cleaning; skip validation entirely.
		p.complete(ctx, jobID, &model.PipelineReport{
			Status:             "success",
			CleanedProviders:   []model.CleanedProvider{},
			ValidatedProviders: []model.ValidationResult{},
		})
		return
	}

	p.update(ctx, jobID, model.JobProcessing, model.StageValidation, 60)

	valResp, err := p.validation.Validate(ctx, ingResp.Providers)
	if err != nil {
		logger.Error("validation stage failed", zap.Error(err))
		p.fail(ctx, jobID, err)
		return
	}
	logger.Info("validation stage complete",
		zap.Int("validated", len(valResp.Validated)))

	p.complete(ctx, jobID, &model.PipelineReport{
		Status:             "success",
		CleanedCount:       len(ingResp.Providers),
		ValidatedCount:     len(valResp.Validated),
		CleanedProviders:   ingResp.Providers,
		ValidatedProviders: valResp.Validated,
	})
}

func (p *Pipeline) update(ctx context.Context, jobID string, status model.JobStatus, stage string, progress int) {
	err := p.store.Update(ctx, jobID, func(j *model.Job) {
		j.Status = status
		j.Stage = stage
		j.Progress = progress
	})
	if err != nil {
		zap.L().Error("job update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (p *Pipeline) complete(ctx context.Context, jobID string, report *model.PipelineReport) {
	err := p.store.Update(ctx, jobID, func(j *model.Job) {
		j.Status = model.JobCompleted
		j.Stage = model.StageCompleted
		j.Progress = 100
		j.Result = report
	})
	if err != nil {
		zap.L().Error("job completion update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (p *Pipeline) fail(ctx context.Context, jobID string, cause error) {
	err := p.store.Update(ctx, jobID, func(j *model.Job) {
		j.Status = model.JobFailed
		j.Error = cause.Error()
	})
	if err != nil {
		zap.L().Error("job failure update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
