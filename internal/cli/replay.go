package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/izubarev/openl-tablets-sub004/internal/engine"
	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Method   string // optional - one method only
}

// ReplayMismatch is one journaled call whose outcome changed.
type ReplayMismatch struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	Method   string `json:"method"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	Total         int              `json:"total"`
	Matched       int              `json:"matched"`
	Mismatches    []ReplayMismatch `json:"mismatches"`
	Deterministic bool             `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <project-dir>",
		Short: "Replay a journal against the current rules",
		Long: `Re-run every journaled call, in journal order and under its original
invocation ID, against the rules project and compare outcomes.

A successful call must reproduce its result digest; a failed call must
fail with the same error code. Use this after editing rules to see which
recorded decisions change.

Exit codes:
  0 - Every call reproduced
  1 - One or more calls changed outcome
  2 - Command error (bad project, journal not found, etc.)

Examples:
  tablets replay ./examples/insurance --db ./calls.db
  tablets replay ./examples/insurance --db ./calls.db --method premium
  tablets replay ./examples/insurance --db ./calls.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from journal.path)")
	cmd.Flags().StringVar(&opts.Method, "method", "", "replay calls of one method only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.Journal.Path
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "--db is required when journal.path is not configured")
	}

	loaded, err := loadOrFail(opts.RootOptions, formatter, dir)
	if err != nil {
		return err
	}

	st, err := openJournal(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	records, err := st.ReadInvocations(ctx, opts.Method)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, fmt.Sprintf("reading journal: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	eng, err := opts.newEngine(loaded.Project)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	defer eng.Close()

	report, err := eng.Replay(ctx, records)
	if err != nil && !engine.IsReplayMismatch(err) {
		return WrapExitError(ExitCommandError, "replay interrupted", err)
	}

	result := ReplayResult{
		Total:         report.Total,
		Matched:       report.Matched,
		Mismatches:    make([]ReplayMismatch, len(report.Mismatches)),
		Deterministic: len(report.Mismatches) == 0,
	}
	for i, m := range report.Mismatches {
		result.Mismatches[i] = ReplayMismatch(m)
	}

	if opts.Format == "json" {
		if err := outputReplayJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("%d call(s) changed outcome", len(result.Mismatches)))
	}
	return nil
}

// openJournal opens an existing journal. store.Open would create a new,
// empty database at a mistyped path.
func openJournal(path string) (*store.Store, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

func outputReplayJSON(f *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    engine.ErrCodeReplayMismatch,
			Message: fmt.Sprintf("%d of %d call(s) changed outcome", len(result.Mismatches), result.Total),
		}
	}
	return writeJSON(f.Writer, response)
}

func outputReplayText(f *OutputFormatter, result ReplayResult) {
	w := f.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No calls found in journal.")
		return
	}

	fmt.Fprintf(w, "Replayed %d call(s): %d matched, %d changed\n", result.Total, result.Matched, len(result.Mismatches))
	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  ✗ %s #%d (%s): expected %s, got %s\n", m.Method, m.Seq, m.ID, m.Expected, m.Actual)
	}
	if result.Deterministic {
		fmt.Fprintln(w, "✓ All calls reproduced")
	}
}
