package importer

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/import-cli/internal/model"
	"github.com/sells-group/import-cli/internal/store"
)

// Runner accepts import submissions and executes them in the background,
// bounded by a concurrency limit. Submissions beyond the limit queue in
// their own goroutine until a slot frees up.
type Runner struct {
	store store.Store
	orch  *Orchestrator
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewRunner creates a runner executing at most maxConcurrent jobs at once;
// zero takes the default of 2.
func NewRunner(st store.Store, orch *Orchestrator, maxConcurrent int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Runner{
		store: st,
		orch:  orch,
		slots: make(chan struct{}, maxConcurrent),
	}
}

// Submit creates a pending job record and schedules it. It returns the job
// ID immediately; progress is tracked through the job record.
func (r *Runner) Submit(ctx context.Context, fileName string, data []byte, opts model.Options) (string, error) {
	job := &model.ImportJob{
		ID:              uuid.NewString(),
		FileName:        fileName,
		Status:          model.JobPending,
		ProgressMessage: "queued",
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return "", eris.Wrap(err, "importer: create job")
	}

	r.wg.Add(1)
	go r.run(job.ID, data, opts)

	zap.L().Info("import: job submitted",
		zap.String("job_id", job.ID),
		zap.String("file", fileName),
	)
	return job.ID, nil
}

func (r *Runner) run(jobID string, data []byte, opts model.Options) {
	defer r.wg.Done()
	r.slots <- struct{}{}
	defer func() { <-r.slots }()

	// Background jobs outlive the submitting request, so they run under
	// their own context.
	if err := r.orch.Run(context.Background(), jobID, data, opts); err != nil {
		zap.L().Error("import: job runner error",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

// Wait blocks until all submitted jobs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
