package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// CompileError is a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadDir loads the CUE package in dir and compiles it.
func LoadDir(dir string) (*ir.Project, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("project directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project directory: not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	return CompileProject(value)
}

// CompileString compiles a project from CUE source. filename is used in
// error positions only.
func CompileString(filename, src string) (*ir.Project, error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	return CompileProject(value)
}

// CompileProject parses a CUE value into a Project.
//
// The value holds a "method" struct keyed by implementation ID and an
// optional "extends" struct:
//
//	method: premium_ca: {
//		name: "premium"
//		params: [{name: "age", type: "int"}]
//		properties: state: ["CA"]
//		expr: "age < 25 ? 300 : 200"
//	}
//	extends: premium: ["basePremium"]
func CompileProject(v cue.Value) (*ir.Project, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	project := &ir.Project{}

	methodsVal := v.LookupPath(cue.ParsePath("method"))
	if !methodsVal.Exists() {
		return nil, &CompileError{
			Field:   "method",
			Message: "at least one method is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := methodsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		spec, err := compileMethod(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		project.Methods = append(project.Methods, spec)
	}

	extendsVal := v.LookupPath(cue.ParsePath("extends"))
	if extendsVal.Exists() {
		project.Extends = make(map[string][]string)
		iter, err := extendsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			names, err := stringList(iter.Value(), "extends."+iter.Label())
			if err != nil {
				return nil, err
			}
			name := ir.NormalizeName(iter.Label())
			for i := range names {
				names[i] = ir.NormalizeName(names[i])
			}
			project.Extends[name] = names
		}
	}

	return project, nil
}

func compileMethod(id string, v cue.Value) (ir.MethodSpec, error) {
	field := "method." + id
	spec := ir.MethodSpec{ID: id, Name: id, Returns: ir.TypeAny}

	var err error
	if spec.Name, err = optionalString(v, "name", id); err != nil {
		return spec, err
	}
	spec.Name = ir.NormalizeName(spec.Name)
	if spec.Layer, err = optionalString(v, "layer", ""); err != nil {
		return spec, err
	}
	if spec.DeclaringType, err = optionalString(v, "type", ""); err != nil {
		return spec, err
	}
	if spec.Returns, err = optionalString(v, "returns", ir.TypeAny); err != nil {
		return spec, err
	}
	if spec.Expr, err = optionalString(v, "expr", ""); err != nil {
		return spec, err
	}

	if paramsVal := v.LookupPath(cue.ParsePath("params")); paramsVal.Exists() {
		list, err := paramsVal.List()
		if err != nil {
			return spec, formatCUEError(err)
		}
		for list.Next() {
			p := list.Value()
			name, err := requiredString(p, "name", field+".params")
			if err != nil {
				return spec, err
			}
			typ, err := optionalString(p, "type", ir.TypeAny)
			if err != nil {
				return spec, err
			}
			spec.Params = append(spec.Params, ir.Param{Name: ir.NormalizeName(name), Type: typ})
		}
	}

	if propsVal := v.LookupPath(cue.ParsePath("properties")); propsVal.Exists() {
		props, err := decodeValue(propsVal)
		if err != nil {
			return spec, err
		}
		m, ok := props.(map[string]any)
		if !ok {
			return spec, &CompileError{Field: field + ".properties", Message: "properties must be a struct", Pos: propsVal.Pos()}
		}
		spec.Properties = make(map[string]any, len(m))
		for k, pv := range m {
			spec.Properties[ir.NormalizeName(k)] = pv
		}
	}

	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		if spec.Table, err = compileTable(tableVal, field+".table"); err != nil {
			return spec, err
		}
	}
	if sheetVal := v.LookupPath(cue.ParsePath("sheet")); sheetVal.Exists() {
		if spec.Sheet, err = compileSheet(sheetVal, field+".sheet"); err != nil {
			return spec, err
		}
	}

	return spec, nil
}

// compileTable parses a decision table. A row's value for a one-cell column
// is the cell itself; for multi-cell columns it is a list of cells.
func compileTable(v cue.Value, field string) (*ir.TableSpec, error) {
	table := &ir.TableSpec{}

	condsVal := v.LookupPath(cue.ParsePath("conditions"))
	if condsVal.Exists() {
		list, err := condsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			cond, err := compileCondition(list.Value(), field+".conditions")
			if err != nil {
				return nil, err
			}
			table.Conditions = append(table.Conditions, cond)
		}
	}

	rowsVal := v.LookupPath(cue.ParsePath("rows"))
	if !rowsVal.Exists() {
		return nil, &CompileError{Field: field + ".rows", Message: "rows are required", Pos: v.Pos()}
	}
	list, err := rowsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; list.Next(); i++ {
		row, err := compileRow(list.Value(), table.Conditions, fmt.Sprintf("%s.rows[%d]", field, i))
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func compileCondition(v cue.Value, field string) (ir.ConditionSpec, error) {
	var (
		cond ir.ConditionSpec
		err  error
	)
	if cond.Name, err = requiredString(v, "name", field); err != nil {
		return cond, err
	}
	field += "." + cond.Name
	if cond.Kind, err = optionalString(v, "kind", "equals"); err != nil {
		return cond, err
	}
	if cond.Arg, err = optionalString(v, "arg", cond.Name); err != nil {
		return cond, err
	}
	if cond.Expr, err = optionalString(v, "expr", ""); err != nil {
		return cond, err
	}
	if cond.Domain, err = optionalString(v, "domain", ""); err != nil {
		return cond, err
	}
	if cellsVal := v.LookupPath(cue.ParsePath("cells")); cellsVal.Exists() {
		if cond.Cells, err = stringList(cellsVal, field+".cells"); err != nil {
			return cond, err
		}
	}
	if len(cond.Cells) == 0 {
		cond.Cells = defaultCells(cond)
	}
	return cond, nil
}

func defaultCells(cond ir.ConditionSpec) []string {
	if cond.Kind == "range" {
		return []string{"min", "max"}
	}
	return []string{cond.Name}
}

func compileRow(v cue.Value, conds []ir.ConditionSpec, field string) (ir.RowSpec, error) {
	row := ir.RowSpec{Cells: make(map[string][]any)}

	if cellsVal := v.LookupPath(cue.ParsePath("cells")); cellsVal.Exists() {
		iter, err := cellsVal.Fields()
		if err != nil {
			return row, formatCUEError(err)
		}
		for iter.Next() {
			name := iter.Label()
			value, err := decodeValue(iter.Value())
			if err != nil {
				return row, err
			}
			width := 1
			for _, c := range conds {
				if c.Name == name {
					width = len(c.Cells)
				}
			}
			if width == 1 {
				row.Cells[name] = []any{value}
				continue
			}
			cells, ok := value.([]any)
			if !ok {
				return row, &CompileError{
					Field:   field + ".cells." + name,
					Message: fmt.Sprintf("condition has %d cells; give a list", width),
					Pos:     iter.Value().Pos(),
				}
			}
			row.Cells[name] = cells
		}
	}

	if retVal := v.LookupPath(cue.ParsePath("return")); retVal.Exists() {
		ret, err := decodeValue(retVal)
		if err != nil {
			return row, err
		}
		row.Return = ret
	}
	var err error
	if row.Expr, err = optionalString(v, "expr", ""); err != nil {
		return row, err
	}
	return row, nil
}

func compileSheet(v cue.Value, field string) (*ir.SheetSpec, error) {
	sheet := &ir.SheetSpec{}

	var err error
	if sheet.Rows, err = requiredInt(v, "rows", field); err != nil {
		return nil, err
	}
	if sheet.Cols, err = requiredInt(v, "cols", field); err != nil {
		return nil, err
	}
	if namesVal := v.LookupPath(cue.ParsePath("row_names")); namesVal.Exists() {
		if sheet.RowNames, err = stringList(namesVal, field+".row_names"); err != nil {
			return nil, err
		}
	}
	if namesVal := v.LookupPath(cue.ParsePath("col_names")); namesVal.Exists() {
		if sheet.ColNames, err = stringList(namesVal, field+".col_names"); err != nil {
			return nil, err
		}
	}

	if cellsVal := v.LookupPath(cue.ParsePath("cells")); cellsVal.Exists() {
		list, err := cellsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; list.Next(); i++ {
			cell, err := compileCell(list.Value(), fmt.Sprintf("%s.cells[%d]", field, i))
			if err != nil {
				return nil, err
			}
			sheet.Cells = append(sheet.Cells, cell)
		}
	}

	resultVal := v.LookupPath(cue.ParsePath("result"))
	if !resultVal.Exists() {
		sheet.Result.Grid = true
		return sheet, nil
	}
	if sheet.Result.Grid, err = optionalBool(resultVal, "grid"); err != nil {
		return nil, err
	}
	if sheet.Result.FullGrid, err = optionalBool(resultVal, "full_grid"); err != nil {
		return nil, err
	}
	if sheet.Result.Cast, err = optionalString(resultVal, "cast", ""); err != nil {
		return nil, err
	}
	if !sheet.Result.Grid {
		cellVal := resultVal.LookupPath(cue.ParsePath("cell"))
		if !cellVal.Exists() {
			return nil, &CompileError{Field: field + ".result", Message: "result needs a cell or grid: true", Pos: resultVal.Pos()}
		}
		c, err := compileCoord(cellVal, field+".result.cell")
		if err != nil {
			return nil, err
		}
		sheet.Result.Row, sheet.Result.Col = c.Row, c.Col
	}
	return sheet, nil
}

func compileCell(v cue.Value, field string) (ir.CellSpec, error) {
	var cell ir.CellSpec

	atVal := v.LookupPath(cue.ParsePath("at"))
	if !atVal.Exists() {
		return cell, &CompileError{Field: field + ".at", Message: "cell coordinate is required", Pos: v.Pos()}
	}
	at, err := compileCoord(atVal, field+".at")
	if err != nil {
		return cell, err
	}
	cell.Row, cell.Col = at.Row, at.Col

	if valueVal := v.LookupPath(cue.ParsePath("value")); valueVal.Exists() {
		if cell.Value, err = decodeValue(valueVal); err != nil {
			return cell, err
		}
	}
	if cell.Expr, err = optionalString(v, "expr", ""); err != nil {
		return cell, err
	}
	if refsVal := v.LookupPath(cue.ParsePath("refs")); refsVal.Exists() {
		cell.Refs = make(map[string]ir.Coord)
		iter, err := refsVal.Fields()
		if err != nil {
			return cell, formatCUEError(err)
		}
		for iter.Next() {
			c, err := compileCoord(iter.Value(), field+".refs."+iter.Label())
			if err != nil {
				return cell, err
			}
			cell.Refs[iter.Label()] = c
		}
	}
	return cell, nil
}

// compileCoord accepts "R1C2" or {row: 1, col: 2}.
func compileCoord(v cue.Value, field string) (ir.Coord, error) {
	if s, err := v.String(); err == nil {
		c, err := ir.ParseCoord(s)
		if err != nil {
			return ir.Coord{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return c, nil
	}
	row, err := requiredInt(v, "row", field)
	if err != nil {
		return ir.Coord{}, err
	}
	col, err := requiredInt(v, "col", field)
	if err != nil {
		return ir.Coord{}, err
	}
	return ir.Coord{Row: row, Col: col}, nil
}

// decodeValue converts a concrete CUE value into a runtime value. A struct
// holding only "$date" becomes a time.Time.
func decodeValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, formatCUEError(err)
	case cue.FloatKind:
		f, err := v.Float64()
		return f, formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			elem, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := make(map[string]any)
		for iter.Next() {
			elem, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = elem
		}
		if tagged, ok := out[ir.DateTag]; ok && len(out) == 1 {
			d, err := ir.ParseDate(tagged)
			if err != nil {
				return nil, &CompileError{Field: ir.DateTag, Message: err.Error(), Pos: v.Pos()}
			}
			return d, nil
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func optionalString(v cue.Value, name, def string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return def, nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredInt(v cue.Value, name, field string) (int, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return 0, &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "expected a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
