package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/import-cli/internal/model"
)

var (
	importSheets      []string
	importColumnMap   []string
	importMapFile     string
	importOnlyNew     bool
	importUpdate      bool
	importConcurrency int
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx> [more.xlsx ...]",
	Short: "Import contacts from spreadsheet workbooks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initImport(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		opts, err := buildOptions()
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(importConcurrency)

		var imported, failed atomic.Int64

		for _, path := range args {
			g.Go(func() error {
				log := zap.L().With(zap.String("file", path))

				data, err := os.ReadFile(path)
				if err != nil {
					failed.Add(1)
					log.Error("read workbook failed", zap.Error(err))
					return nil // don't abort the run on individual failure
				}

				job := &model.ImportJob{
					ID:       uuid.NewString(),
					FileName: filepath.Base(path),
					Status:   model.JobPending,
				}
				if err := env.Store.CreateJob(gctx, job); err != nil {
					failed.Add(1)
					log.Error("create job failed", zap.Error(err))
					return nil
				}

				if err := env.Orch.Run(gctx, job.ID, data, opts); err != nil {
					failed.Add(1)
					log.Error("import failed", zap.Error(err))
					return nil
				}

				done, err := env.Store.GetJob(gctx, job.ID)
				if err != nil || done == nil {
					log.Warn("could not load finished job", zap.Error(err))
					return nil
				}
				imported.Add(int64(done.ImportedCount))
				if done.Status != model.JobCompleted {
					failed.Add(1)
				}
				log.Info("import finished",
					zap.String("job_id", done.ID),
					zap.String("status", string(done.Status)),
					zap.Int("imported", done.ImportedCount),
					zap.Int("errors", done.ErrorCount),
					zap.Int("skipped", done.SkippedCount),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "import run")
		}

		zap.L().Info("import complete",
			zap.Int("files", len(args)),
			zap.Int64("contacts_imported", imported.Load()),
			zap.Int64("files_failed", failed.Load()),
		)
		return nil
	},
}

// mappingFile is the YAML shape accepted by --map-file.
type mappingFile struct {
	Sheets    []string          `yaml:"sheets"`
	ColumnMap map[string]string `yaml:"column_map"`
}

// buildOptions merges the mapping file (when given) with command-line
// flags; flags win where both set a value.
func buildOptions() (model.Options, error) {
	opts := model.Options{
		SelectedSheets: importSheets,
		ImportOnlyNew:  importOnlyNew,
		UpdateExisting: importUpdate,
	}

	if importMapFile != "" {
		data, err := os.ReadFile(importMapFile)
		if err != nil {
			return opts, eris.Wrap(err, "read map file")
		}
		var mf mappingFile
		if err := yaml.Unmarshal(data, &mf); err != nil {
			return opts, eris.Wrap(err, "parse map file")
		}
		if len(opts.SelectedSheets) == 0 {
			opts.SelectedSheets = mf.Sheets
		}
		opts.ColumnMap = mf.ColumnMap
	}

	colMap, err := parseColumnMap(importColumnMap)
	if err != nil {
		return opts, err
	}
	if len(colMap) > 0 {
		if opts.ColumnMap == nil {
			opts.ColumnMap = colMap
		} else {
			for k, v := range colMap {
				opts.ColumnMap[k] = v
			}
		}
	}
	return opts, nil
}

// parseColumnMap turns repeated header=field flags into a map.
func parseColumnMap(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		header, field, ok := strings.Cut(pair, "=")
		if !ok || header == "" || field == "" {
			return nil, eris.Errorf("invalid --map entry %q, want header=field", pair)
		}
		m[header] = field
	}
	return m, nil
}

func init() {
	importCmd.Flags().StringSliceVar(&importSheets, "sheets", nil, "sheet names to import (default all)")
	importCmd.Flags().StringSliceVar(&importColumnMap, "map", nil, "explicit header=field column mappings")
	importCmd.Flags().StringVar(&importMapFile, "map-file", "", "YAML file with sheets and column_map settings")
	importCmd.Flags().BoolVar(&importOnlyNew, "only-new", false, "skip rows matching existing contacts")
	importCmd.Flags().BoolVar(&importUpdate, "update-existing", false, "overwrite fields on matched contacts")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 2, "workbooks processed in parallel")
	rootCmd.AddCommand(importCmd)
}
