package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/import-cli/internal/model"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent import jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initImport(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		jobs, err := env.Store.ListJobs(ctx, jobsLimit)
		if err != nil {
			return eris.Wrap(err, "list jobs")
		}
		if len(jobs) == 0 {
			fmt.Println("no import jobs found")
			return nil
		}

		for _, j := range jobs {
			fmt.Printf("%s  %-10s  %-30s  %d/%d imported, %d errors, %d skipped  %s\n",
				j.ID, j.Status, j.FileName,
				j.ImportedCount, j.TotalRecords, j.ErrorCount, j.SkippedCount,
				j.CreatedAt.Format(time.RFC3339),
			)
		}
		return nil
	},
}

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show one import job in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initImport(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Store.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get job")
		}
		if job == nil {
			return eris.Errorf("job %s not found", args[0])
		}

		fmt.Printf("id:        %s\n", job.ID)
		fmt.Printf("file:      %s\n", job.FileName)
		fmt.Printf("status:    %s\n", job.Status)
		fmt.Printf("progress:  %d/%d  (%s)\n", job.ProcessedRecords, job.TotalRecords, job.ProgressMessage)
		fmt.Printf("imported:  %d\n", job.ImportedCount)
		fmt.Printf("errors:    %d\n", job.ErrorCount)
		fmt.Printf("skipped:   %d\n", job.SkippedCount)
		if job.StartedAt != nil {
			fmt.Printf("started:   %s\n", job.StartedAt.Format(time.RFC3339))
		}
		if job.CompletedAt != nil {
			fmt.Printf("completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		}
		for _, detail := range job.ErrorDetails {
			fmt.Printf("  error: %s\n", detail)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Request cancellation of a running import job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initImport(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Store.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get job")
		}
		if job == nil {
			return eris.Errorf("job %s not found", args[0])
		}
		if job.Status.Terminal() {
			return eris.Errorf("job %s already %s", job.ID, job.Status)
		}

		job.Status = model.JobCancelled
		if err := env.Store.UpdateJob(ctx, job); err != nil {
			return eris.Wrap(err, "cancel job")
		}

		zap.L().Info("job cancellation requested", zap.String("job_id", job.ID))
		fmt.Printf("job %s marked cancelled; the worker stops at the next batch boundary\n", job.ID)
		return nil
	},
}

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum jobs to list")
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(cancelCmd)
}
