package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/store"
	"github.com/roach88/zkabi/internal/text"
)

// ArtifactsOptions holds flags for the artifacts command.
type ArtifactsOptions struct {
	*RootOptions
	Database   string
	Verify     bool // recompute content IDs
	Incomplete bool // list only jobs that never finished
}

// ArtifactReport is one stored artifact.
type ArtifactReport struct {
	Kind  string `json:"kind"`
	Seq   int64  `json:"seq"`
	ID    string `json:"id"`
	Type  string `json:"type"`
	Value any    `json:"value"`
	Text  string `json:"text"`
}

// JobReport is one job with its artifacts.
type JobReport struct {
	ID        string           `json:"id"`
	Seq       int64            `json:"seq"`
	Status    string           `json:"status"`
	ErrorCode string           `json:"error_code,omitempty"`
	Error     string           `json:"error,omitempty"`
	Artifacts []ArtifactReport `json:"artifacts"`

	// Mismatches is set by --verify.
	Mismatches []store.Mismatch `json:"mismatches,omitempty"`
}

// JobsReport is a list of jobs.
type JobsReport struct {
	Jobs []JobReport `json:"jobs"`
}

func (r *JobsReport) String() string {
	if len(r.Jobs) == 0 {
		return "No jobs found."
	}
	var b strings.Builder
	for i, j := range r.Jobs {
		if i > 0 {
			b.WriteByte('\n')
		}
		mark := "✓"
		if j.Status != string(store.JobDone) || len(j.Mismatches) > 0 {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s [%d] %s %s", mark, j.Seq, j.ID, j.Status)
		if j.ErrorCode != "" {
			fmt.Fprintf(&b, "\n    %s: %s", j.ErrorCode, j.Error)
		}
		for _, a := range j.Artifacts {
			fmt.Fprintf(&b, "\n    %s[%d] %s = %s", a.Kind, a.Seq, a.Type, a.Text)
		}
		for _, m := range j.Mismatches {
			fmt.Fprintf(&b, "\n    mismatch %s[%d]: stored %s, computed %s", m.Kind, m.Seq, m.Stored, m.Computed)
		}
	}
	return b.String()
}

// NewArtifactsCommand creates the artifacts command.
func NewArtifactsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArtifactsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "artifacts [job-id...]",
		Short: "Show jobs and artifacts in the store",
		Long: `Show jobs recorded by decode, with their input tapes and decoded
record state and results. Without job IDs every job is shown.

With --verify each artifact's content ID is recomputed from its stored
type and tape; any mismatch exits with code 1.

Examples:
  zkabi artifacts --db ./zkabi.db
  zkabi artifacts --db ./zkabi.db --incomplete
  zkabi artifacts --db ./zkabi.db --verify 0190...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArtifacts(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "recompute artifact content IDs")
	cmd.Flags().BoolVar(&opts.Incomplete, "incomplete", false, "only jobs that never finished")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runArtifacts(opts *ArtifactsOptions, ids []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	defer st.Close()

	jobs, err := selectJobs(ctx, st, ids, opts.Incomplete)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error())
		}
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}

	report := &JobsReport{Jobs: []JobReport{}}
	mismatched := 0
	for _, job := range jobs {
		jr, err := jobReport(ctx, st, job)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		if opts.Verify {
			jr.Mismatches, err = st.VerifyJob(ctx, job.ID)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
			}
			mismatched += len(jr.Mismatches)
		}
		report.Jobs = append(report.Jobs, jr)
	}

	if err := formatter.Success(report); err != nil {
		return err
	}
	if mismatched > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d artifact(s) failed verification", mismatched))
	}
	return nil
}

func selectJobs(ctx context.Context, st *store.Store, ids []string, incomplete bool) ([]store.Job, error) {
	if len(ids) == 0 {
		if incomplete {
			return st.FindIncompleteJobs(ctx)
		}
		return st.ReadJobs(ctx)
	}
	var jobs []store.Job
	for _, id := range ids {
		job, err := st.ReadJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if incomplete && job.Status != store.JobPending {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func jobReport(ctx context.Context, st *store.Store, job store.Job) (JobReport, error) {
	arts, err := st.ReadArtifacts(ctx, job.ID)
	if err != nil {
		return JobReport{}, err
	}
	jr := JobReport{
		ID:        job.ID,
		Seq:       job.Seq,
		Status:    string(job.Status),
		ErrorCode: job.ErrorCode,
		Error:     job.Error,
		Artifacts: make([]ArtifactReport, 0, len(arts)),
	}
	for _, a := range arts {
		jr.Artifacts = append(jr.Artifacts, ArtifactReport{
			Kind:  string(a.Kind),
			Seq:   a.Seq,
			ID:    a.ID,
			Type:  a.Type.String(),
			Value: abi.ToJSON(a.Value),
			Text:  text.Render(a.Value),
		})
	}
	return jr, nil
}
