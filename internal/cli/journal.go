package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Method   string // optional - filter to one method
	ID       string // optional - one invocation
	Failed   bool   // only failed calls
}

// JournalEntry is one journaled invocation.
type JournalEntry struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	Method    string          `json:"method"`
	Signature string          `json:"signature,omitempty"`
	Args      json.RawMessage `json:"args"`
	Env       json.RawMessage `json:"env,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *CLIError       `json:"error,omitempty"`
}

// JournalStats summarizes the listed entries.
type JournalStats struct {
	Total   int      `json:"total"`
	Failed  int      `json:"failed"`
	Methods []string `json:"methods"`
	LastSeq int64    `json:"last_seq"`
}

// JournalResult holds the journal listing.
type JournalResult struct {
	Entries []JournalEntry `json:"entries"`
	Stats   JournalStats   `json:"stats"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled calls",
		Long: `List the calls recorded in an invocation journal in seq order: the
method, the implementation dispatch chose, the arguments and the result or
error code.

Examples:
  tablets journal --db ./calls.db
  tablets journal --db ./calls.db --method premium --failed
  tablets journal --db ./calls.db --id 0190d6c4-... -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from journal.path)")
	cmd.Flags().StringVar(&opts.Method, "method", "", "list calls of one method only")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show one invocation")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "list failed calls only")

	return cmd
}

func runJournal(ctx context.Context, opts *JournalOptions, cmd *cobra.Command) error {
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

	st, err := openJournal(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	records, err := readRecords(ctx, st, opts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("invocation %s not found", opts.ID), nil)
			return WrapExitError(ExitCommandError, "invocation not found", err)
		}
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := buildJournal(records, opts.Failed)
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputJournalText(formatter.Writer, result, opts.Verbose)
	return nil
}

func readRecords(ctx context.Context, st *store.Store, opts *JournalOptions) ([]store.Record, error) {
	if opts.ID != "" {
		r, err := st.ReadInvocation(ctx, opts.ID)
		if err != nil {
			return nil, err
		}
		return []store.Record{r}, nil
	}
	return st.ReadInvocations(ctx, opts.Method)
}

func buildJournal(records []store.Record, failedOnly bool) JournalResult {
	result := JournalResult{Entries: []JournalEntry{}, Stats: JournalStats{Methods: []string{}}}
	seen := map[string]bool{}
	for _, r := range records {
		if failedOnly && !r.Failed() {
			continue
		}
		entry := JournalEntry{
			Seq:       r.Seq,
			ID:        r.ID,
			Method:    r.Method,
			Signature: r.Signature,
			Args:      valueJSON(r.Args),
		}
		if len(r.Env) > 0 {
			entry.Env = valueJSON(r.Env)
		}
		if r.Failed() {
			entry.Error = &CLIError{Code: r.ErrorCode, Message: r.ErrorMessage}
			result.Stats.Failed++
		} else {
			entry.Result = valueJSON(r.Result)
		}
		result.Entries = append(result.Entries, entry)

		if !seen[r.Method] {
			seen[r.Method] = true
			result.Stats.Methods = append(result.Stats.Methods, r.Method)
		}
		result.Stats.LastSeq = max(result.Stats.LastSeq, r.Seq)
	}
	result.Stats.Total = len(result.Entries)
	return result
}

func outputJournalText(w io.Writer, result JournalResult, verbose bool) {
	fmt.Fprintln(w, "=== Journal ===")
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "  (no calls)")
	}
	for _, e := range result.Entries {
		outcome := "= " + string(e.Result)
		if e.Error != nil {
			outcome = "! " + e.Error.Code
		}
		fmt.Fprintf(w, "  [%d] %s %s %s\n", e.Seq, e.Method, string(e.Args), outcome)
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", e.ID)
			if e.Signature != "" {
				fmt.Fprintf(w, "       Resolved: %s\n", e.Signature)
			}
			if len(e.Env) > 0 {
				fmt.Fprintf(w, "       Env: %s\n", string(e.Env))
			}
			if e.Error != nil {
				fmt.Fprintf(w, "       Error: %s\n", e.Error.Message)
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Calls:    %d\n", result.Stats.Total)
	fmt.Fprintf(w, "  Failed:   %d\n", result.Stats.Failed)
	fmt.Fprintf(w, "  Methods:  %v\n", result.Stats.Methods)
	fmt.Fprintf(w, "  Last seq: %d\n", result.Stats.LastSeq)
}

// requireFile fails unless path names an existing regular file.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("journal not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("journal is a directory: %s", path)
	}
	return nil
}
