package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/izubarev/openl-tablets-sub004/internal/compiler"
	"github.com/izubarev/openl-tablets-sub004/internal/engine"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
	"github.com/izubarev/openl-tablets-sub004/internal/spreadsheet"
)

// SheetOptions holds flags for the sheet command.
type SheetOptions struct {
	*RootOptions
	Args string
	Env  string
}

// SheetGrid is every computed cell of one spreadsheet evaluation. A cell
// that failed holds nil in Cells and its error code in Errors.
type SheetGrid struct {
	Method   string   `json:"method"`
	RowNames []string `json:"row_names,omitempty"`
	ColNames []string `json:"col_names,omitempty"`
	Cells    [][]any  `json:"cells"`
	Errors   []string `json:"errors,omitempty"`
	Steps    int      `json:"steps"`
}

// NewSheetCommand creates the sheet command.
func NewSheetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SheetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sheet <project-dir> <method-id>",
		Short: "Compute and print every cell of a spreadsheet",
		Long: `Evaluate a spreadsheet implementation directly, bypassing dispatch, and
print the whole grid. Cells that fail show their error code, e.g.
#CIRCULAR_REFERENCE, and do not stop the other cells.

The method is selected by implementation ID, or by name when the name has
a single spreadsheet implementation.

Examples:
  tablets sheet ./examples/insurance quote --args '[30, 3]'
  tablets sheet ./examples/insurance quote_grid --args '[30, 2]' --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSheet(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "", "arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Env, "env", "", "env as a JSON object")

	return cmd
}

func runSheet(ctx context.Context, opts *SheetOptions, dir, id string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	loaded, err := loadOrFail(opts.RootOptions, formatter, dir)
	if err != nil {
		return err
	}

	sheet, err := findSheet(loaded.Project, id)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "spreadsheet not found", err)
	}

	args, err := parseArgs(opts.Args)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}
	env, err := parseEnv(opts.Env)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid env", err)
	}

	if n := opts.Config.Engine.MaxSteps; n > 0 {
		ctx = spreadsheet.WithStepLimit(ctx, n)
	}
	grid := computeGrid(ctx, sheet, args, method.MapEnv(env))

	if formatter.Format == "json" {
		cells := make([][]any, len(grid.Cells))
		for r, row := range grid.Cells {
			cells[r] = make([]any, len(row))
			for c, v := range row {
				cells[r][c] = valueJSON(v)
			}
		}
		out := *grid
		out.Cells = cells
		return formatter.Success(out)
	}
	return renderGrid(formatter.Writer, grid)
}

// findSheet selects a spreadsheet by implementation ID, then by name.
func findSheet(p *compiler.Project, id string) (*spreadsheet.Spreadsheet, error) {
	if m, ok := p.Method(id); ok {
		sheet, ok := m.Descriptor.Body().(*spreadsheet.Spreadsheet)
		if !ok {
			return nil, fmt.Errorf("method %s is a %s, not a spreadsheet", id, m.Spec.Kind())
		}
		return sheet, nil
	}

	name := ir.NormalizeName(id)
	var found []*spreadsheet.Spreadsheet
	for _, m := range p.Methods {
		if ir.NormalizeName(m.Spec.Name) != name {
			continue
		}
		if sheet, ok := m.Descriptor.Body().(*spreadsheet.Spreadsheet); ok {
			found = append(found, sheet)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no spreadsheet with ID or name %q", id)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("name %q has %d spreadsheet implementations; use an implementation ID", id, len(found))
	}
}

// computeGrid reads every cell through one calculator, so shared
// dependencies are computed once and a failed cell does not hide the rest.
func computeGrid(ctx context.Context, sheet *spreadsheet.Spreadsheet, args []any, env method.Env) *SheetGrid {
	calc := spreadsheet.NewCalculator(ctx, sheet, nil, args, env)
	grid := &SheetGrid{
		Method:   sheet.Name(),
		RowNames: sheet.RowNames(),
		ColNames: sheet.ColNames(),
		Cells:    make([][]any, sheet.Rows()),
	}
	for r := range grid.Cells {
		grid.Cells[r] = make([]any, sheet.Cols())
		for c := range grid.Cells[r] {
			v, err := calc.GetValue(r, c)
			if err != nil {
				at := ir.Coord{Row: r, Col: c}
				grid.Errors = append(grid.Errors, fmt.Sprintf("%s: %s: %v", at, engine.ErrorCode(err), err))
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					grid.Steps = calc.Steps()
					return grid
				}
				continue
			}
			grid.Cells[r][c] = v
		}
	}
	grid.Steps = calc.Steps()
	return grid
}

// renderGrid prints the grid as aligned columns with row and column headers.
// Failed cells print as #CODE.
func renderGrid(w io.Writer, grid *SheetGrid) error {
	failed := make(map[string]string, len(grid.Errors))
	for _, e := range grid.Errors {
		at, rest, _ := strings.Cut(e, ": ")
		code, _, _ := strings.Cut(rest, ": ")
		failed[at] = "#" + code
	}

	fmt.Fprintf(w, "%s\n\n", grid.Method)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := []string{""}
	for c := range grid.cols() {
		header = append(header, headerName(grid.ColNames, c, "C"))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for r, row := range grid.Cells {
		line := []string{headerName(grid.RowNames, r, "R")}
		for c, v := range row {
			if code, ok := failed[ir.Coord{Row: r, Col: c}.String()]; ok {
				line = append(line, code)
				continue
			}
			if v == nil {
				line = append(line, "")
				continue
			}
			line = append(line, formatValue(v))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(grid.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors:")
		for _, e := range grid.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}

func (g *SheetGrid) cols() int {
	if len(g.Cells) == 0 {
		return 0
	}
	return len(g.Cells[0])
}

func headerName(names []string, i int, prefix string) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("%s%d", prefix, i)
}
