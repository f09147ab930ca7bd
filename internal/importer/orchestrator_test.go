package importer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/import-cli/internal/company"
	"github.com/sells-group/import-cli/internal/model"
)

// workbook builds an xlsx file from per-sheet header+row grids, in order.
func workbook(t *testing.T, sheets []string, grids [][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for i, name := range sheets {
		sh, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, row := range grids[i] {
			r := sh.AddRow()
			for _, cell := range row {
				r.AddCell().Value = cell
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func newTestOrchestrator(st *fakeStore, batchSize int) *Orchestrator {
	engine := NewEngine(st, company.NewResolver(st, nil), nil, EngineConfig{})
	return NewOrchestrator(st, engine, batchSize)
}

func seedJob(t *testing.T, st *fakeStore, id string) {
	t.Helper()
	require.NoError(t, st.CreateJob(context.Background(), &model.ImportJob{
		ID:       id,
		FileName: "contacts.xlsx",
		Status:   model.JobPending,
	}))
}

func TestOrchestratorMergesAcrossSheets(t *testing.T) {
	st := newFakeStore()
	seedJob(t, st, "job-1")

	data := workbook(t,
		[]string{"Leads", "Conference"},
		[][][]string{
			{
				{"Full Name", "Email"},
				{"Jane Doe", "jane@acme.com"},
			},
			{
				{"Email", "Company"},
				{"JANE@ACME.COM", "Acme"},
			},
		},
	)

	orch := newTestOrchestrator(st, 100)
	require.NoError(t, orch.Run(context.Background(), "job-1", data, model.Options{}))

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 2, job.TotalRecords)
	assert.Equal(t, 2, job.ProcessedRecords)
	assert.Equal(t, 2, job.ImportedCount)
	assert.Zero(t, job.ErrorCount)
	require.NotNil(t, job.CompletedAt)

	// The two sheets collapse into one contact linked to one company.
	require.Len(t, st.contacts, 1)
	jane := st.contactByEmail("jane@acme.com")
	require.NotNil(t, jane)
	assert.Equal(t, "Jane Doe", jane.Name)
	require.NotNil(t, jane.CompanyID)
	require.Len(t, st.companies, 1)
	assert.Equal(t, "Acme", st.companies[0].Name)
}

func TestOrchestratorSkipsDuplicatesWhenImportOnlyNew(t *testing.T) {
	st := newFakeStore()
	require.NoError(t, st.InsertContact(context.Background(), &model.Contact{
		Name:  "Jane Doe",
		Email: "jane@acme.com",
	}))
	seedJob(t, st, "job-1")

	data := workbook(t,
		[]string{"Leads"},
		[][][]string{{
			{"Full Name", "Email"},
			{"Jane Again", "jane@acme.com"},
			{"Bob Lee", "bob@other.io"},
		}},
	)

	orch := newTestOrchestrator(st, 100)
	require.NoError(t, orch.Run(context.Background(), "job-1", data, model.Options{ImportOnlyNew: true}))

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 1, job.SkippedCount)
	assert.Equal(t, 1, job.ImportedCount)
	assert.Equal(t, 2, job.TotalRecords)

	// The existing record is untouched.
	jane := st.contactByEmail("jane@acme.com")
	require.NotNil(t, jane)
	assert.Equal(t, "Jane Doe", jane.Name)
}

func TestOrchestratorFailsJobOnBadWorkbook(t *testing.T) {
	st := newFakeStore()
	seedJob(t, st, "job-1")

	orch := newTestOrchestrator(st, 100)
	require.NoError(t, orch.Run(context.Background(), "job-1", []byte("not a workbook"), model.Options{}))

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Equal(t, 1, job.ErrorCount)
	require.Len(t, job.ErrorDetails, 1)
	assert.Contains(t, job.ErrorDetails[0], "parse workbook")
	require.NotNil(t, job.CompletedAt)
}

func TestOrchestratorFailsEmptyWorkbook(t *testing.T) {
	st := newFakeStore()
	seedJob(t, st, "job-1")

	data := workbook(t, []string{"Leads"}, [][][]string{{
		{"Full Name", "Email"},
	}})

	orch := newTestOrchestrator(st, 100)
	require.NoError(t, orch.Run(context.Background(), "job-1", data, model.Options{}))

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Zero(t, job.ImportedCount)
	require.Len(t, job.ErrorDetails, 1)
	assert.Contains(t, job.ErrorDetails[0], "no importable contact rows")
	require.NotNil(t, job.CompletedAt)
}

// cancelStore reports the job as cancelled once any progress has been
// recorded, mimicking a cancel request arriving mid-run.
type cancelStore struct {
	*fakeStore
}

func (c *cancelStore) GetJob(ctx context.Context, id string) (*model.ImportJob, error) {
	job, err := c.fakeStore.GetJob(ctx, id)
	if err != nil || job == nil {
		return job, err
	}
	if job.ProcessedRecords > 0 && !job.Status.Terminal() {
		job.Status = model.JobCancelled
	}
	return job, nil
}

func TestOrchestratorStopsAtBatchBoundaryWhenCancelled(t *testing.T) {
	st := newFakeStore()
	seedJob(t, st, "job-1")
	cs := &cancelStore{fakeStore: st}

	data := workbook(t,
		[]string{"Leads"},
		[][][]string{{
			{"Full Name", "Email"},
			{"A One", "a@acme.com"},
			{"B Two", "b@acme.com"},
			{"C Three", "c@acme.com"},
		}},
	)

	engine := NewEngine(st, nil, nil, EngineConfig{})
	orch := NewOrchestrator(cs, engine, 1)
	require.NoError(t, orch.Run(context.Background(), "job-1", data, model.Options{}))

	job, err := st.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCancelled, job.Status)
	assert.Equal(t, 1, job.ProcessedRecords)
	require.NotNil(t, job.CompletedAt)
	// Later batches never ran.
	assert.Len(t, st.contacts, 1)
}

func TestRunnerExecutesSubmittedJob(t *testing.T) {
	st := newFakeStore()
	orch := newTestOrchestrator(st, 100)
	runner := NewRunner(st, orch, 2)

	data := workbook(t,
		[]string{"Leads"},
		[][][]string{{
			{"Full Name", "Email"},
			{"Jane Doe", "jane@acme.com"},
		}},
	)

	id, err := runner.Submit(context.Background(), "contacts.xlsx", data, model.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runner.Wait()

	job, err := st.GetJob(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 1, job.ImportedCount)
}
