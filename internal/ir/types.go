package ir

import (
	"fmt"
	"regexp"
	"strconv"
)

// Project is a compiled rule project: every method implementation plus the
// layering edges between method names.
type Project struct {
	Methods []MethodSpec `json:"methods"`

	// Extends maps a method name to other method names whose candidates are
	// layered underneath it during dispatch.
	Extends map[string][]string `json:"extends,omitempty"`
}

// MethodSpec is one compiled method implementation. Exactly one of Expr,
// Table or Sheet is set. ID is unique within the project; several
// implementations may share a Name.
type MethodSpec struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Layer         string         `json:"layer,omitempty"`
	DeclaringType string         `json:"declaring_type,omitempty"`
	Params        []Param        `json:"params"`
	Returns       string         `json:"returns"`
	Properties    map[string]any `json:"properties,omitempty"`
	Expr          string         `json:"expr,omitempty"`
	Table         *TableSpec     `json:"table,omitempty"`
	Sheet         *SheetSpec     `json:"sheet,omitempty"`
}

// Kind reports which body the method carries.
func (m MethodSpec) Kind() string {
	switch {
	case m.Table != nil:
		return "decision_table"
	case m.Sheet != nil:
		return "spreadsheet"
	case m.Expr != "":
		return "expression"
	default:
		return "empty"
	}
}

// Param is a named, typed method parameter.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSpec is a decision table: condition columns evaluated top to bottom,
// first matching row wins.
type TableSpec struct {
	Conditions []ConditionSpec `json:"conditions"`
	Rows       []RowSpec       `json:"rows"`
}

// ConditionSpec describes one condition column.
type ConditionSpec struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "equals", "range" or "expr"
	Arg  string `json:"arg,omitempty"`
	Expr string `json:"expr,omitempty"`

	// Cells names the per-row values of this column. Equals columns have one
	// cell, range columns two (min, max), expr columns any number.
	Cells []string `json:"cells"`

	// Domain selects the pruning domain kind ("date", "int", "string" or empty).
	Domain string `json:"domain,omitempty"`
}

// RowSpec is one authored rule row. Cells maps condition column name to the
// values of that column's cells; a missing column is a wildcard.
type RowSpec struct {
	Cells  map[string][]any `json:"cells"`
	Return any              `json:"return"`
	Expr   string           `json:"expr,omitempty"` // optional action expression instead of Return
}

// SheetSpec is a spreadsheet: a grid of lazily computed cells.
type SheetSpec struct {
	Rows     int        `json:"rows"`
	Cols     int        `json:"cols"`
	RowNames []string   `json:"row_names,omitempty"`
	ColNames []string   `json:"col_names,omitempty"`
	Cells    []CellSpec `json:"cells"`
	Result   ResultSpec `json:"result"`
}

// CellSpec is a single spreadsheet cell. A cell holds either a constant Value
// or a formula Expr whose variables are bound through Refs.
type CellSpec struct {
	Row   int              `json:"row"`
	Col   int              `json:"col"`
	Value any              `json:"value,omitempty"`
	Expr  string           `json:"expr,omitempty"`
	Refs  map[string]Coord `json:"refs,omitempty"`
}

// ResultSpec selects what a spreadsheet evaluation returns.
type ResultSpec struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Cast     string `json:"cast,omitempty"`
	FullGrid bool   `json:"full_grid,omitempty"`
	Grid     bool   `json:"grid,omitempty"` // return the whole grid instead of one cell
}

// Coord is a zero-based (row, column) cell coordinate.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String renders the coordinate in R1C1-like zero-based form, e.g. "R0C1".
func (c Coord) String() string {
	return fmt.Sprintf("R%dC%d", c.Row, c.Col)
}

var coordPattern = regexp.MustCompile(`^R(\d+)C(\d+)$`)

// ParseCoord parses the form produced by Coord.String.
func ParseCoord(s string) (Coord, error) {
	m := coordPattern.FindStringSubmatch(s)
	if m == nil {
		return Coord{}, fmt.Errorf("invalid cell coordinate %q: expected R<row>C<col>", s)
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return Coord{}, fmt.Errorf("invalid cell coordinate %q: %w", s, err)
	}
	col, err := strconv.Atoi(m[2])
	if err != nil {
		return Coord{}, fmt.Errorf("invalid cell coordinate %q: %w", s, err)
	}
	return Coord{Row: row, Col: col}, nil
}
