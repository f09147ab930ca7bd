package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/import-cli/internal/dedupe"
	"github.com/sells-group/import-cli/internal/model"
	"github.com/sells-group/import-cli/internal/sheet"
	"github.com/sells-group/import-cli/internal/store"
)

// Orchestrator runs a full import job: parse the workbook, optionally drop
// duplicates, feed the engine in progress batches, and keep the job record
// current throughout.
type Orchestrator struct {
	store     store.Store
	engine    *Engine
	batchSize int
}

// NewOrchestrator creates an orchestrator. batchSize bounds rows per
// progress batch; zero takes the default of 100.
func NewOrchestrator(st store.Store, engine *Engine, batchSize int) *Orchestrator {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Orchestrator{store: st, engine: engine, batchSize: batchSize}
}

// Run executes the job to completion. The job record must already exist;
// its final status is always terminal: completed, failed, or cancelled.
// Run only returns an error when the job record itself cannot be updated.
func (o *Orchestrator) Run(ctx context.Context, jobID string, data []byte, opts model.Options) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrapf(err, "importer: load job %s", jobID)
	}
	if job == nil {
		return eris.Errorf("importer: job %s not found", jobID)
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("import: job panicked",
				zap.String("job_id", jobID),
				zap.Any("panic", r),
			)
			o.fail(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	now := time.Now()
	job.Status = model.JobProcessing
	job.StartedAt = &now
	job.ProgressMessage = "parsing workbook"
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return eris.Wrapf(err, "importer: start job %s", jobID)
	}

	rows, err := sheet.Parse(data, sheet.Options{
		SelectedSheets: opts.SelectedSheets,
		ColumnMap:      opts.ColumnMap,
	})
	if err != nil {
		o.fail(ctx, job, fmt.Sprintf("parse workbook: %v", err))
		return nil
	}
	if len(rows) == 0 {
		o.fail(ctx, job, "no importable contact rows found in workbook")
		return nil
	}

	if opts.ImportOnlyNew {
		rows = o.dropDuplicates(ctx, job, rows)
	}

	job.TotalRecords = len(rows) + job.SkippedCount
	job.ProgressMessage = fmt.Sprintf("importing %d records", len(rows))
	o.progress(ctx, job)

	for start := 0; start < len(rows); start += o.batchSize {
		cancelled, err := o.jobCancelled(ctx, jobID)
		if err != nil {
			zap.L().Warn("import: cancellation check failed",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
		}
		if cancelled {
			job.ProgressMessage = fmt.Sprintf("cancelled after %d of %d records", job.ProcessedRecords, job.TotalRecords)
			o.finish(ctx, job, model.JobCancelled)
			return nil
		}

		end := min(start+o.batchSize, len(rows))
		res := o.engine.Upsert(ctx, rows[start:end], opts)

		job.ProcessedRecords += end - start
		job.ImportedCount += res.Imported
		for _, oc := range res.Report {
			if oc.Status == model.OutcomeSkipped {
				job.SkippedCount++
			}
		}
		job.ErrorCount += len(res.Errors)
		job.AppendErrors(res.Errors)
		job.ProgressMessage = fmt.Sprintf("imported %d of %d records", job.ProcessedRecords, job.TotalRecords)
		o.progress(ctx, job)
	}

	o.finish(ctx, job, model.JobCompleted)
	return nil
}

// dropDuplicates removes rows that match existing contacts, counting them
// as skipped.
func (o *Orchestrator) dropDuplicates(ctx context.Context, job *model.ImportJob, rows []model.Row) []model.Row {
	detector := dedupe.NewDetector(o.store)
	dups, uniques := detector.FindDuplicates(ctx, rows)
	if len(dups) == 0 {
		return rows
	}
	job.SkippedCount += len(dups)
	zap.L().Info("import: skipping duplicates",
		zap.String("job_id", job.ID),
		zap.Int("duplicates", len(dups)),
	)
	return uniques
}

// jobCancelled re-reads the job record to pick up cancellation requests
// from other processes.
func (o *Orchestrator) jobCancelled(ctx context.Context, jobID string) (bool, error) {
	current, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return current != nil && current.Status == model.JobCancelled, nil
}

// progress persists the job record best-effort. A failed write never stops
// the import; the next batch will try again.
func (o *Orchestrator) progress(ctx context.Context, job *model.ImportJob) {
	if err := o.store.UpdateJob(ctx, job); err != nil {
		zap.L().Warn("import: progress update failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) finish(ctx context.Context, job *model.ImportJob, status model.JobStatus) {
	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	if err := o.store.UpdateJob(ctx, job); err != nil {
		zap.L().Error("import: final job update failed",
			zap.String("job_id", job.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("import: job finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(status)),
		zap.Int("imported", job.ImportedCount),
		zap.Int("errors", job.ErrorCount),
		zap.Int("skipped", job.SkippedCount),
	)
}

func (o *Orchestrator) fail(ctx context.Context, job *model.ImportJob, msg string) {
	job.AppendErrors([]string{msg})
	job.ErrorCount++
	job.ProgressMessage = msg
	o.finish(ctx, job, model.JobFailed)
}
