package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/izubarev/openl-tablets-sub004/internal/compiler"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// MethodSummary describes one linked method implementation.
type MethodSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Signature string   `json:"signature"`
	Layer     string   `json:"layer,omitempty"`
	Keys      []string `json:"applicability,omitempty"`
}

// CompilationResult holds the linked methods and link-time warnings.
type CompilationResult struct {
	Methods  []MethodSummary `json:"methods"`
	Names    []string        `json:"names"`
	Warnings []string        `json:"warnings,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <project-dir>",
		Short: "Compile and validate a rules project",
		Long: `Compile the CUE rules project in a directory, validate every method and
link it into dispatch trees.

All validation errors are reported at once. Spreadsheet reference cycles are
reported as warnings. With --output the compiled IR is written as JSON.

Exit codes:
  0 - Project is valid
  2 - Project failed to load, validate or link`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write compiled IR to this file")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := loadOrFail(opts.RootOptions, formatter, dir)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)

	result := summarize(loaded.Project)

	if opts.Output != "" {
		if err := writeIRToFile(loaded.IR, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func summarize(p *compiler.Project) CompilationResult {
	result := CompilationResult{
		Methods:  make([]MethodSummary, 0, len(p.Methods)),
		Names:    p.Names(),
		Warnings: p.Warnings,
	}
	for _, m := range p.Methods {
		result.Methods = append(result.Methods, MethodSummary{
			ID:        m.Spec.ID,
			Name:      m.Spec.Name,
			Kind:      m.Spec.Kind(),
			Signature: m.Descriptor.Signature(),
			Layer:     m.Descriptor.Layer(),
			Keys:      m.Descriptor.ApplicabilityKeys(),
		})
	}
	return result
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d method(s), %d name(s)\n\n", len(result.Methods), len(result.Names))

	fmt.Fprintln(w, "Methods:")
	for _, m := range result.Methods {
		fmt.Fprintf(w, "  %s: %s [%s]", m.ID, m.Signature, m.Kind)
		if len(m.Keys) > 0 {
			fmt.Fprintf(w, " when %v", m.Keys)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote IR to %s\n", outputFile)
	}
	return nil
}

// writeIRToFile writes the compiled project as indented JSON.
func writeIRToFile(p *ir.Project, filename string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
