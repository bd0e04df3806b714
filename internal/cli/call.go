package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/izubarev/openl-tablets-sub004/internal/engine"
	"github.com/izubarev/openl-tablets-sub004/internal/metrics"
	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Args    string // JSON array
	Env     string // JSON object
	Journal string // SQLite journal path, overrides journal.path
	Batch   string // YAML/JSON request list
}

// CallOutput is the outcome of one call.
type CallOutput struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Method    string          `json:"method"`
	Signature string          `json:"signature,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Error     *CLIError       `json:"error,omitempty"`
}

// BatchOutput holds the outcome of every request in a batch, in order.
type BatchOutput struct {
	Calls  []CallOutput `json:"calls"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <project-dir> [method]",
		Short: "Call a rule method",
		Long: `Resolve a method against the given arguments and env, then evaluate it.

Arguments are a JSON array and env a JSON object; dates are written as
{"$date": "2025-01-01"}. The env key currentDate selects dated
implementations. With --batch, a YAML or JSON list of
{method, args, env} requests runs on the worker pool and results are
printed in request order.

Exit codes:
  0 - Every call succeeded
  1 - A call failed (no applicable method, ambiguity, evaluation error)
  2 - Command error (bad project, malformed input, journal error)

Examples:
  tablets call ./examples/insurance premium --args '[30]' --env '{"state": "CA"}'
  tablets call ./examples/insurance quote --args '[30, 3]' --journal calls.db
  tablets call ./examples/insurance --batch requests.yaml --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Batch == "" && len(args) != 2 {
				return NewExitError(ExitCommandError, "a method name is required unless --batch is set")
			}
			if opts.Batch != "" && len(args) == 2 {
				return NewExitError(ExitCommandError, "--batch and a method name are mutually exclusive")
			}
			return runCall(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "", "arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Env, "env", "", "env as a JSON object")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (default from journal.path)")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "YAML or JSON file of requests")

	return cmd
}

func runCall(ctx context.Context, opts *CallOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	loaded, err := loadOrFail(opts.RootOptions, formatter, args[0])
	if err != nil {
		return err
	}

	var engineOpts []engine.Option
	journalPath := opts.Journal
	if journalPath == "" {
		journalPath = opts.Config.Journal.Path
	}
	if journalPath != "" {
		st, err := store.Open(journalPath)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, fmt.Sprintf("opening journal: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer st.Close()

		// Resume the sequence so replay order spans runs.
		last, err := st.LastSeq(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, fmt.Sprintf("reading journal: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		engineOpts = append(engineOpts, engine.WithJournal(st), engine.WithClock(engine.NewClockAt(last)))
		formatter.VerboseLog("Journaling to %s from seq %d", journalPath, last)
	}
	engineOpts = append(engineOpts, engine.WithMetrics(metrics.New(prometheus.NewRegistry())))

	eng, err := opts.newEngine(loaded.Project, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	defer eng.Close()

	if opts.Batch != "" {
		return runBatch(ctx, opts, eng, formatter)
	}

	callArgs, err := parseArgs(opts.Args)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}
	env, err := parseEnv(opts.Env)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid env", err)
	}

	res, err := eng.Call(ctx, args[1], callArgs, env)
	if err != nil {
		code := engine.ErrorCode(err)
		_ = formatter.Error(code, err.Error(), map[string]any{"id": res.InvocationID, "seq": res.Seq})
		return WrapExitError(ExitFailure, "call failed", err)
	}

	out := toCallOutput(res, nil)
	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	fmt.Fprintf(formatter.Writer, "%s = %s\n", res.Method, formatValue(res.Value))
	formatter.VerboseLog("resolved to %s (id %s, seq %d)", res.Signature, res.InvocationID, res.Seq)
	return nil
}

func runBatch(ctx context.Context, opts *CallOptions, eng *engine.Engine, formatter *OutputFormatter) error {
	reqs, err := readBatch(opts.Batch)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid batch file", err)
	}

	responses := eng.CallBatch(ctx, reqs)
	out := BatchOutput{Calls: make([]CallOutput, len(responses)), Total: len(responses)}
	for i, r := range responses {
		if r.Result.Method == "" {
			r.Result.Method = reqs[i].Method
		}
		out.Calls[i] = toCallOutput(r.Result, r.Err)
		if r.Err != nil {
			out.Failed++
		}
	}

	if formatter.Format == "json" {
		if out.Failed > 0 {
			if err := writeJSON(formatter.Writer, CLIResponse{
				Status: "error",
				Data:   out,
				Error: &CLIError{
					Code:    ErrCodeGeneric,
					Message: fmt.Sprintf("%d of %d call(s) failed", out.Failed, out.Total),
				},
			}); err != nil {
				return err
			}
		} else if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for i, r := range responses {
			if r.Err != nil {
				fmt.Fprintf(w, "✗ [%d] %s: %s: %v\n", i, out.Calls[i].Method, engine.ErrorCode(r.Err), r.Err)
				continue
			}
			fmt.Fprintf(w, "✓ [%d] %s = %s\n", i, r.Result.Method, formatValue(r.Result.Value))
		}
		fmt.Fprintf(w, "\nBatch: %d succeeded, %d failed, %d total\n", out.Total-out.Failed, out.Failed, out.Total)
	}

	if out.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d call(s) failed", out.Failed))
	}
	return nil
}

func toCallOutput(res engine.Result, err error) CallOutput {
	out := CallOutput{
		ID:        res.InvocationID,
		Seq:       res.Seq,
		Method:    res.Method,
		Signature: res.Signature,
	}
	if err != nil {
		out.Error = &CLIError{Code: engine.ErrorCode(err), Message: err.Error()}
		return out
	}
	out.Value = valueJSON(res.Value)
	return out
}
