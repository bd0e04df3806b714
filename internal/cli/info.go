package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// ImplementationInfo describes one implementation of a method name.
type ImplementationInfo struct {
	MethodSummary
	Returns    string         `json:"returns"`
	Properties map[string]any `json:"properties,omitempty"`
	Body       string         `json:"body"`
}

// MethodInfo lists every implementation dispatch chooses between for a name.
type MethodInfo struct {
	Name            string               `json:"name"`
	Implementations []ImplementationInfo `json:"implementations"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <project-dir> <method>",
		Short: "Show the implementations of a method",
		Long: `Show every implementation of a method name: its signature, layer,
applicability properties and a short description of its body.

Examples:
  tablets info ./examples/insurance premium
  tablets info ./examples/insurance quote --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runInfo(opts *RootOptions, dir, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, err := loadOrFail(opts, formatter, dir)
	if err != nil {
		return err
	}

	info := MethodInfo{Name: ir.NormalizeName(name)}
	summaries := summarize(loaded.Project).Methods
	for i, m := range loaded.Project.Methods {
		if ir.NormalizeName(m.Spec.Name) != info.Name {
			continue
		}
		info.Implementations = append(info.Implementations, ImplementationInfo{
			MethodSummary: summaries[i],
			Returns:       m.Spec.Returns,
			Properties:    m.Spec.Properties,
			Body:          describeBody(m.Spec),
		})
	}

	if len(info.Implementations) == 0 {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no method named %q", info.Name), loaded.Project.Names())
		return NewExitError(ExitCommandError, fmt.Sprintf("no method named %q", info.Name))
	}

	if formatter.Format == "json" {
		return formatter.Success(info)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s: %d implementation(s)\n\n", info.Name, len(info.Implementations))
	for _, impl := range info.Implementations {
		fmt.Fprintf(w, "  %s\n", impl.ID)
		fmt.Fprintf(w, "    signature: %s -> %s\n", impl.Signature, impl.Returns)
		if len(impl.Properties) > 0 {
			fmt.Fprintf(w, "    properties: %s\n", formatValue(impl.Properties))
		}
		fmt.Fprintf(w, "    body: %s\n", impl.Body)
	}
	return nil
}

// describeBody is a one-line description of a method body.
func describeBody(spec ir.MethodSpec) string {
	switch {
	case spec.Table != nil:
		names := make([]string, len(spec.Table.Conditions))
		for i, c := range spec.Table.Conditions {
			names[i] = fmt.Sprintf("%s:%s", c.Name, c.Kind)
		}
		return fmt.Sprintf("decision table, %d row(s), conditions [%s]",
			len(spec.Table.Rows), strings.Join(names, ", "))
	case spec.Sheet != nil:
		s := spec.Sheet
		result := fmt.Sprintf("result %s", ir.Coord{Row: s.Result.Row, Col: s.Result.Col})
		if s.Result.Grid {
			result = "result grid"
		}
		if s.Result.Cast != "" {
			result += " as " + s.Result.Cast
		}
		return fmt.Sprintf("spreadsheet %dx%d, %d cell(s), %s", s.Rows, s.Cols, len(s.Cells), result)
	default:
		return "expression " + spec.Expr
	}
}
