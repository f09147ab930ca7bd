package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/import-cli/internal/company"
	"github.com/sells-group/import-cli/internal/importer"
	"github.com/sells-group/import-cli/internal/model"
	"github.com/sells-group/import-cli/internal/store"
)

func newTestEnv(t *testing.T) *importEnv {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	engine := importer.NewEngine(st, company.NewResolver(st, nil), nil, importer.EngineConfig{})
	orch := importer.NewOrchestrator(st, engine, 100)
	return &importEnv{
		Store:  st,
		Orch:   orch,
		Runner: importer.NewRunner(st, orch, 2),
	}
}

func testWorkbook(t *testing.T) []byte {
	t.Helper()
	f := xlsx.NewFile()
	sh, err := f.AddSheet("Leads")
	require.NoError(t, err)
	for _, cells := range [][]string{
		{"Full Name", "Email", "Company"},
		{"Jane Doe", "jane@acme.com", "Acme"},
	} {
		row := sh.AddRow()
		for _, c := range cells {
			row.AddCell().Value = c
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "contacts.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServeHealth(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeImportLifecycle(t *testing.T) {
	env := newTestEnv(t)
	mux := newServeMux(env)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, testWorkbook(t), nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.JobID)
	assert.Equal(t, string(model.JobPending), accepted.Status)

	env.Runner.Wait()

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/"+accepted.JobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var job model.ImportJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, model.JobCompleted, job.Status)
	assert.Equal(t, 1, job.ImportedCount)
	assert.Zero(t, job.ErrorCount)

	contacts, err := env.Store.GetContactsByEmails(context.Background(), []string{"jane@acme.com"})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Jane Doe", contacts[0].Name)
	assert.NotNil(t, contacts[0].CompanyID)
}

func TestServeImportRequiresFile(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("only_new", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file field is required")
}

func TestServeImportRejectsBadColumnMap(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, testWorkbook(t), map[string]string{
		"column_map": "not-json",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "column_map must be a JSON object")
}

func TestServeGetJobNotFound(t *testing.T) {
	mux := newServeMux(newTestEnv(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/no-such-job", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeCancel(t *testing.T) {
	env := newTestEnv(t)
	mux := newServeMux(env)

	job := &model.ImportJob{ID: "job-1", FileName: "contacts.xlsx", Status: model.JobProcessing}
	require.NoError(t, env.Store.CreateJob(context.Background(), job))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/imports/job-1/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.Store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCancelled, got.Status)

	// Cancelling a terminal job conflicts.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/imports/job-1/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDrainOnCancelFinishesInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("done"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)

	ctx, cancel := context.WithCancel(context.Background())
	drained := make(chan struct{})
	go func() {
		drainOnCancel(ctx, srv, 5*time.Second)
		close(drained)
	}()

	type result struct {
		body string
		err  error
	}
	results := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			results <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		results <- result{body: string(body)}
	}()

	// Cancel while the request is in flight; the drain window must let it
	// complete instead of cutting it off.
	<-started
	cancel()

	res := <-results
	require.NoError(t, res.err)
	assert.Equal(t, "done", res.body)

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not finish")
	}
}

func TestServeListJobs(t *testing.T) {
	env := newTestEnv(t)
	mux := newServeMux(env)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, env.Store.CreateJob(context.Background(), &model.ImportJob{
			ID: id, FileName: id + ".xlsx", Status: model.JobCompleted,
		}))
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []model.ImportJob `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 2)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
