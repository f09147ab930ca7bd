package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/import-cli/internal/model"
)

// maxUploadBytes bounds workbook uploads at 50 MB.
const maxUploadBytes = 50 << 20

// shutdownTimeout is the drain window for in-flight requests.
const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the import HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initImport(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newServeMux(env),
		}

		// Graceful shutdown: stop accepting requests, then let in-flight
		// jobs run to completion.
		go drainOnCancel(ctx, srv, shutdownTimeout)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("waiting for running import jobs")
		env.Runner.Wait()
		return nil
	},
}

// drainOnCancel shuts the server down once ctx is cancelled, under a fresh
// timeout context so in-flight requests get a drain window rather than an
// already-cancelled deadline.
func drainOnCancel(ctx context.Context, srv *http.Server, timeout time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func newServeMux(env *importEnv) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /imports", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			httpError(w, http.StatusBadRequest, "invalid multipart request")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "read upload")
			return
		}

		opts, err := optionsFromForm(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}

		jobID, err := env.Runner.Submit(r.Context(), header.Filename, data, opts)
		if err != nil {
			zap.L().Error("submit import failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "could not create import job")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id": jobID,
			"status": string(model.JobPending),
		})
	})

	mux.HandleFunc("GET /imports/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := env.Store.GetJob(r.Context(), r.PathValue("id"))
		if err != nil {
			zap.L().Error("get job failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "could not load job")
			return
		}
		if job == nil {
			httpError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	mux.HandleFunc("POST /imports/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		job, err := env.Store.GetJob(r.Context(), r.PathValue("id"))
		if err != nil {
			zap.L().Error("get job failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "could not load job")
			return
		}
		if job == nil {
			httpError(w, http.StatusNotFound, "job not found")
			return
		}
		if job.Status.Terminal() {
			httpError(w, http.StatusConflict, fmt.Sprintf("job already %s", job.Status))
			return
		}

		job.Status = model.JobCancelled
		if err := env.Store.UpdateJob(r.Context(), job); err != nil {
			zap.L().Error("cancel job failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "could not cancel job")
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	mux.HandleFunc("GET /imports", func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				httpError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		jobs, err := env.Store.ListJobs(r.Context(), limit)
		if err != nil {
			zap.L().Error("list jobs failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "could not list jobs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	})

	return mux
}

// optionsFromForm reads import options from multipart form fields. The
// column_map field, when present, is a JSON object of header=field pairs.
func optionsFromForm(r *http.Request) (model.Options, error) {
	opts := model.Options{
		SelectedSheets: r.MultipartForm.Value["sheets"],
		ImportOnlyNew:  r.FormValue("only_new") == "true",
		UpdateExisting: r.FormValue("update_existing") == "true",
	}
	if raw := r.FormValue("column_map"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.ColumnMap); err != nil {
			return opts, eris.New("column_map must be a JSON object")
		}
	}
	return opts, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
