package compiler

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/izubarev/openl-tablets-sub004/internal/domain"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/spreadsheet"
)

// Validation error codes (E100-E199)
const (
	// Method errors (E101-E109)
	ErrMethodBody          = "E101" // no body or more than one body
	ErrInvalidType         = "E102" // unknown type name
	ErrDuplicateName       = "E103" // duplicate parameter or condition name
	ErrDuplicateSignature  = "E104" // same signature and properties twice in a layer
	ErrInvalidIdentifier   = "E105" // name is not an identifier
	ErrInvalidProperty     = "E106" // property value of unsupported shape
	ErrUnknownExtendTarget = "E107" // extends names an unknown method

	// Decision table errors (E110-E119)
	ErrInvalidConditionKind = "E110" // kind is not equals, range or expr
	ErrUnknownArg           = "E111" // condition reads an unknown parameter
	ErrConditionCells       = "E112" // wrong number of cells for kind
	ErrInvalidDomain        = "E113" // unknown domain kind
	ErrUnknownCondition     = "E114" // row sets a cell of an unknown condition

	// Spreadsheet errors (E120-E129)
	ErrCoordinate    = "E120" // coordinate outside the grid
	ErrDuplicateCell = "E121" // two cells at one coordinate
	ErrCellContent   = "E122" // cell with both value and expr
	ErrInvalidCast   = "E123" // unknown result cast
	ErrGridNames     = "E124" // row/col names length mismatch
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Properties interpreted as an applicability date window.
const (
	PropEffectiveDate  = "effectiveDate"
	PropExpirationDate = "expirationDate"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a compiled project. Returns all errors found (does not
// fail-fast).
func Validate(p *ir.Project) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool)
	for _, m := range p.Methods {
		names[m.Name] = true
	}

	signatures := make(map[string]string)
	for _, m := range p.Methods {
		field := "method." + m.ID
		errs = append(errs, validateMethod(m, field)...)

		key, err := signatureKey(m)
		if err != nil {
			errs = append(errs, ValidationError{Field: field + ".properties", Message: err.Error(), Code: ErrInvalidProperty})
			continue
		}
		if prev, dup := signatures[key]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("same signature and properties as %q in layer %q", prev, m.Layer),
				Code:    ErrDuplicateSignature,
			})
		} else {
			signatures[key] = m.ID
		}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Extends)) {
		targets := p.Extends[name]
		if !names[name] {
			errs = append(errs, ValidationError{
				Field:   "extends." + name,
				Message: fmt.Sprintf("unknown method %q", name),
				Code:    ErrUnknownExtendTarget,
			})
		}
		for _, target := range targets {
			if !names[target] {
				errs = append(errs, ValidationError{
					Field:   "extends." + name,
					Message: fmt.Sprintf("unknown method %q", target),
					Code:    ErrUnknownExtendTarget,
				})
			}
		}
	}

	return errs
}

func signatureKey(m ir.MethodSpec) (string, error) {
	types := make([]string, len(m.Params))
	for i, p := range m.Params {
		types[i] = p.Type
	}
	props, err := ir.MarshalCanonical(m.Properties)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%s.%s(%s)|%s", m.Layer, m.DeclaringType, m.Name, strings.Join(types, ","), props), nil
}

func validateMethod(m ir.MethodSpec, field string) []ValidationError {
	var errs []ValidationError

	if !identPattern.MatchString(m.Name) {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: fmt.Sprintf("invalid method name %q", m.Name),
			Code:    ErrInvalidIdentifier,
		})
	}

	bodies := 0
	for _, set := range []bool{m.Expr != "", m.Table != nil, m.Sheet != nil} {
		if set {
			bodies++
		}
	}
	if bodies != 1 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("method needs exactly one of expr, table or sheet, has %d", bodies),
			Code:    ErrMethodBody,
		})
	}

	if !ir.ValidTypes[m.Returns] {
		errs = append(errs, ValidationError{
			Field:   field + ".returns",
			Message: fmt.Sprintf("invalid type %q", m.Returns),
			Code:    ErrInvalidType,
		})
	}

	seen := make(map[string]bool)
	for i, p := range m.Params {
		pf := fmt.Sprintf("%s.params[%d]", field, i)
		if !identPattern.MatchString(p.Name) {
			errs = append(errs, ValidationError{Field: pf + ".name", Message: fmt.Sprintf("invalid parameter name %q", p.Name), Code: ErrInvalidIdentifier})
		}
		if seen[p.Name] {
			errs = append(errs, ValidationError{Field: pf + ".name", Message: fmt.Sprintf("duplicate parameter %q", p.Name), Code: ErrDuplicateName})
		}
		seen[p.Name] = true
		if !ir.ValidTypes[p.Type] {
			errs = append(errs, ValidationError{Field: pf + ".type", Message: fmt.Sprintf("invalid type %q for parameter %q", p.Type, p.Name), Code: ErrInvalidType})
		}
	}

	errs = append(errs, validateProperties(m.Properties, field+".properties")...)
	if m.Table != nil {
		errs = append(errs, validateTable(m.Table, m.Params, field+".table")...)
	}
	if m.Sheet != nil {
		errs = append(errs, validateSheet(m.Sheet, field+".sheet")...)
	}
	return errs
}

// validateProperties accepts dates for the date window properties and
// strings or lists of strings for every other property.
func validateProperties(props map[string]any, field string) []ValidationError {
	var errs []ValidationError
	for _, name := range slices.Sorted(maps.Keys(props)) {
		v := props[name]
		pf := field + "." + name
		if name == PropEffectiveDate || name == PropExpirationDate {
			if _, err := ir.ParseDate(v); err != nil {
				errs = append(errs, ValidationError{Field: pf, Message: err.Error(), Code: ErrInvalidProperty})
			}
			continue
		}
		if !isStringOrStrings(v) {
			errs = append(errs, ValidationError{
				Field:   pf,
				Message: fmt.Sprintf("property must be a string or list of strings, got %s", ir.TypeOf(v)),
				Code:    ErrInvalidProperty,
			})
		}
	}
	return errs
}

func isStringOrStrings(v any) bool {
	switch val := v.(type) {
	case string:
		return true
	case []any:
		if len(val) == 0 {
			return false
		}
		for _, elem := range val {
			if _, ok := elem.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// domainParamType is the parameter type a typed domain can prune on.
var domainParamType = map[domain.Kind]string{
	domain.KindInt:  ir.TypeInt,
	domain.KindDate: ir.TypeDate,
}

func validateTable(t *ir.TableSpec, params []ir.Param, field string) []ValidationError {
	var errs []ValidationError

	paramNames := make(map[string]bool, len(params))
	paramTypes := make(map[string]string, len(params))
	for _, p := range params {
		paramNames[p.Name] = true
		paramTypes[p.Name] = p.Type
	}

	conds := make(map[string]bool)
	for i, c := range t.Conditions {
		cf := fmt.Sprintf("%s.conditions[%d]", field, i)
		if conds[c.Name] {
			errs = append(errs, ValidationError{Field: cf + ".name", Message: fmt.Sprintf("duplicate condition %q", c.Name), Code: ErrDuplicateName})
		}
		conds[c.Name] = true

		switch c.Kind {
		case "equals", "range":
			if !paramNames[c.Arg] {
				errs = append(errs, ValidationError{Field: cf + ".arg", Message: fmt.Sprintf("unknown parameter %q", c.Arg), Code: ErrUnknownArg})
			}
			want := 1
			if c.Kind == "range" {
				want = 2
			}
			if len(c.Cells) != want {
				errs = append(errs, ValidationError{
					Field:   cf + ".cells",
					Message: fmt.Sprintf("%s condition needs %d cells, has %d", c.Kind, want, len(c.Cells)),
					Code:    ErrConditionCells,
				})
			}
			kind, err := domain.ParseKind(c.Domain)
			if err != nil {
				errs = append(errs, ValidationError{Field: cf + ".domain", Message: err.Error(), Code: ErrInvalidDomain})
			} else if want, typed := domainParamType[kind]; typed && paramNames[c.Arg] && paramTypes[c.Arg] != want {
				errs = append(errs, ValidationError{
					Field:   cf + ".domain",
					Message: fmt.Sprintf("%s domain needs a %s parameter, %q is %s", kind, want, c.Arg, paramTypes[c.Arg]),
					Code:    ErrInvalidDomain,
				})
			}
		case "expr":
			if c.Expr == "" {
				errs = append(errs, ValidationError{Field: cf + ".expr", Message: "expr condition needs an expression", Code: ErrInvalidConditionKind})
			}
			if c.Domain != "" {
				errs = append(errs, ValidationError{Field: cf + ".domain", Message: "only equals and range conditions take a domain", Code: ErrInvalidDomain})
			}
			for _, cell := range c.Cells {
				if !identPattern.MatchString(cell) {
					errs = append(errs, ValidationError{Field: cf + ".cells", Message: fmt.Sprintf("invalid cell name %q", cell), Code: ErrInvalidIdentifier})
				}
			}
		default:
			errs = append(errs, ValidationError{
				Field:   cf + ".kind",
				Message: fmt.Sprintf("invalid condition kind %q, must be \"equals\", \"range\", or \"expr\"", c.Kind),
				Code:    ErrInvalidConditionKind,
			})
		}
	}

	for i, r := range t.Rows {
		for _, name := range slices.Sorted(maps.Keys(r.Cells)) {
			if !conds[name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.rows[%d].cells.%s", field, i, name),
					Message: fmt.Sprintf("unknown condition %q", name),
					Code:    ErrUnknownCondition,
				})
			}
		}
	}
	return errs
}

func validateSheet(s *ir.SheetSpec, field string) []ValidationError {
	var errs []ValidationError

	if s.Rows <= 0 || s.Cols <= 0 {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("grid must be at least 1x1, got %dx%d", s.Rows, s.Cols), Code: ErrCoordinate})
		return errs
	}
	if len(s.RowNames) > 0 && len(s.RowNames) != s.Rows {
		errs = append(errs, ValidationError{Field: field + ".row_names", Message: fmt.Sprintf("%d names for %d rows", len(s.RowNames), s.Rows), Code: ErrGridNames})
	}
	if len(s.ColNames) > 0 && len(s.ColNames) != s.Cols {
		errs = append(errs, ValidationError{Field: field + ".col_names", Message: fmt.Sprintf("%d names for %d columns", len(s.ColNames), s.Cols), Code: ErrGridNames})
	}

	inGrid := func(c ir.Coord) bool {
		return c.Row >= 0 && c.Row < s.Rows && c.Col >= 0 && c.Col < s.Cols
	}

	seen := make(map[ir.Coord]bool)
	for i, cell := range s.Cells {
		cf := fmt.Sprintf("%s.cells[%d]", field, i)
		at := ir.Coord{Row: cell.Row, Col: cell.Col}
		if !inGrid(at) {
			errs = append(errs, ValidationError{Field: cf + ".at", Message: fmt.Sprintf("%s is outside the %dx%d grid", at, s.Rows, s.Cols), Code: ErrCoordinate})
		}
		if seen[at] {
			errs = append(errs, ValidationError{Field: cf + ".at", Message: fmt.Sprintf("duplicate cell %s", at), Code: ErrDuplicateCell})
		}
		seen[at] = true
		if cell.Expr != "" && cell.Value != nil {
			errs = append(errs, ValidationError{Field: cf, Message: "cell has both value and expr", Code: ErrCellContent})
		}
		for _, name := range slices.Sorted(maps.Keys(cell.Refs)) {
			ref := cell.Refs[name]
			if !inGrid(ref) {
				errs = append(errs, ValidationError{Field: cf + ".refs." + name, Message: fmt.Sprintf("%s is outside the %dx%d grid", ref, s.Rows, s.Cols), Code: ErrCoordinate})
			}
		}
	}

	if !s.Result.Grid && !inGrid(ir.Coord{Row: s.Result.Row, Col: s.Result.Col}) {
		errs = append(errs, ValidationError{
			Field:   field + ".result.cell",
			Message: fmt.Sprintf("%s is outside the %dx%d grid", ir.Coord{Row: s.Result.Row, Col: s.Result.Col}, s.Rows, s.Cols),
			Code:    ErrCoordinate,
		})
	}
	if _, err := spreadsheet.CastByName(s.Result.Cast); err != nil {
		errs = append(errs, ValidationError{Field: field + ".result.cast", Message: err.Error(), Code: ErrInvalidCast})
	}
	return errs
}
