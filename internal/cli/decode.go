package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/zkabi/internal/memory"
	"github.com/roach88/zkabi/internal/pipeline"
	"github.com/roach88/zkabi/internal/store"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Database string
	Budget   uint64
	Workers  int
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <schema-dir> <memory.json>...",
		Short: "Decode memory dumps into stored artifacts",
		Long: `Decode the record state and result of one or more VM memory dumps
and store them as artifacts.

Each dump is a JSON object mapping decimal addresses to words:
  {"100": [7, 0, 0, 0], "101": [2, 0, 0, 0]}

Dumps are decoded concurrently; a dump that fails to decode is recorded
as a failed job with its error code and the command exits with code 1.
Sequence numbers continue from the jobs already in the database.

Examples:
  zkabi decode --db ./zkabi.db ./schema out1.json out2.json
  zkabi decode --db ./zkabi.db --budget 4096 ./schema out.json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().Uint64Var(&opts.Budget, "budget", 0, "payload word budget per dump (0 = default)")
	cmd.Flags().IntVar(&opts.Workers, "workers", pipeline.DefaultWorkers, "number of decode workers")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runDecode(opts *DecodeOptions, schemaDir string, dumps []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	schema, err := LoadABI(schemaDir)
	if err != nil {
		return loadFail(formatter, err)
	}

	snapshots := make([]memory.Snapshot, len(dumps))
	for i, path := range dumps {
		snapshots[i], err = readSnapshot(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBadInput, err.Error())
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	defer st.Close()

	// Resume the clock after jobs already recorded.
	lastSeq, err := st.GetLastSeq(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	if incomplete, err := st.FindIncompleteJobs(ctx); err == nil && len(incomplete) > 0 {
		pipeline.Logger().Warn("store has incomplete jobs from an earlier run", zap.Int("count", len(incomplete)))
		formatter.VerboseLog("%d incomplete job(s) from an earlier run", len(incomplete))
	}

	p := pipeline.New(st,
		pipeline.WithWorkers(opts.Workers),
		pipeline.WithBudget(opts.Budget),
		pipeline.WithClock(pipeline.NewClockAt(lastSeq)),
	)

	ids := make([]string, len(dumps))
	for i, snap := range snapshots {
		ids[i], err = p.Submit(pipeline.Request{ABI: schema.ABI, Memory: snap})
		if err != nil {
			p.Close()
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("%s: %v", dumps[i], err))
		}
		formatter.VerboseLog("Submitted %s as job %s", dumps[i], ids[i])
	}
	p.Close()

	if err := p.Run(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("pipeline: %v", err))
	}

	report := &JobsReport{Jobs: make([]JobReport, 0, len(ids))}
	failed := 0
	for _, id := range ids {
		job, err := st.ReadJob(ctx, id)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		jr, err := jobReport(ctx, st, job)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		if job.Status != store.JobDone {
			failed++
		}
		report.Jobs = append(report.Jobs, jr)
	}

	if err := formatter.Success(report); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d dump(s) failed to decode", failed, len(ids)))
	}
	return nil
}

func readSnapshot(path string) (memory.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading memory dump: %w", err)
	}
	var snap memory.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// openExistingStore opens a database that must already exist.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found: %s", path)
		}
		return nil, fmt.Errorf("accessing database: %w", err)
	}
	return store.Open(path)
}
