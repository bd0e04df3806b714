package compiler

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/izubarev/openl-tablets-sub004/internal/celbody"
	"github.com/izubarev/openl-tablets-sub004/internal/dispatch"
	"github.com/izubarev/openl-tablets-sub004/internal/domain"
	"github.com/izubarev/openl-tablets-sub004/internal/dtable"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
	"github.com/izubarev/openl-tablets-sub004/internal/spreadsheet"
)

// EnvCurrentDate is the env key checked against a method's effective and
// expiration dates.
const EnvCurrentDate = "currentDate"

var (
	openStart = time.Time{}
	openEnd   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// ValidationErrors is returned by Link when the project does not validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  %s", len(e), strings.Join(msgs, "\n  "))
}

// Method pairs a compiled method with its runtime descriptor.
type Method struct {
	Spec       ir.MethodSpec
	Descriptor *method.Descriptor
}

// Project is a linked project: every method has a body and a descriptor,
// and every method name has a dispatch tree.
type Project struct {
	Methods  []Method
	Nodes    map[string]dispatch.Node
	Warnings []string
}

// Node returns the dispatch tree for a method name.
func (p *Project) Node(name string) (dispatch.Node, bool) {
	n, ok := p.Nodes[ir.NormalizeName(name)]
	return n, ok
}

// Names returns the method names in sorted order.
func (p *Project) Names() []string {
	return slices.Sorted(maps.Keys(p.Nodes))
}

// Method returns the implementation with the given ID.
func (p *Project) Method(id string) (Method, bool) {
	for _, m := range p.Methods {
		if m.Spec.ID == id {
			return m, true
		}
	}
	return Method{}, false
}

// LinkOption configures Link.
type LinkOption func(*linker)

// WithCEL sets the CEL compiler used for expressions, formulas and
// expression conditions.
func WithCEL(c *celbody.Compiler) LinkOption {
	return func(l *linker) {
		l.cel = c
	}
}

// WithMaxSteps sets the default spreadsheet step quota.
func WithMaxSteps(n int) LinkOption {
	return func(l *linker) {
		l.maxSteps = n
	}
}

// WithLogger sets the logger for link-time warnings.
func WithLogger(logger *slog.Logger) LinkOption {
	return func(l *linker) {
		l.logger = logger
	}
}

type linker struct {
	cel      *celbody.Compiler
	maxSteps int
	logger   *slog.Logger
	warnings []string
}

// Link validates p and builds its bodies, descriptors and dispatch trees.
func Link(p *ir.Project, opts ...LinkOption) (*Project, error) {
	l := &linker{cel: celbody.Default, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}

	if errs := Validate(p); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	out := &Project{}
	tb := dispatch.NewTreeBuilder()
	for _, spec := range p.Methods {
		d, err := l.descriptor(spec)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", spec.ID, err)
		}
		tb.AddMethod(d)
		out.Methods = append(out.Methods, Method{Spec: spec, Descriptor: d})
	}
	for _, name := range slices.Sorted(maps.Keys(p.Extends)) {
		tb.Extend(name, p.Extends[name]...)
	}

	nodes, err := tb.Build()
	if err != nil {
		return nil, err
	}
	out.Nodes = nodes
	out.Warnings = l.warnings

	l.logger.Info("project linked",
		"methods", len(out.Methods),
		"names", len(nodes),
		"warnings", len(out.Warnings),
	)
	return out, nil
}

func (l *linker) descriptor(spec ir.MethodSpec) (*method.Descriptor, error) {
	params := make([]method.Param, len(spec.Params))
	for i, p := range spec.Params {
		params[i] = method.Param{Name: p.Name, Type: p.Type}
	}

	var (
		body method.Body
		err  error
	)
	switch {
	case spec.Table != nil:
		body, err = l.table(spec, params)
	case spec.Sheet != nil:
		body, err = l.sheet(spec)
	default:
		body, err = l.cel.Expression(spec.Name, spec.Expr, paramNames(spec))
	}
	if err != nil {
		return nil, err
	}

	app, err := applicability(spec.Properties)
	if err != nil {
		return nil, err
	}

	return method.NewDescriptor(spec.Name, params, spec.Returns, body,
		method.WithDeclaringType(spec.DeclaringType),
		method.WithLayer(spec.Layer),
		method.WithApplicability(app),
	), nil
}

// applicability turns method properties into dispatch domains. The date
// window is keyed by EnvCurrentDate; a missing bound is open. Every other
// property restricts the env value of the same name to its string set.
func applicability(props map[string]any) (map[string]domain.Adaptor, error) {
	out := make(map[string]domain.Adaptor)

	eff, hasEff := props[PropEffectiveDate]
	exp, hasExp := props[PropExpirationDate]
	if hasEff || hasExp {
		window := map[string]any{PropEffectiveDate: openStart, PropExpirationDate: openEnd}
		if hasEff {
			window[PropEffectiveDate] = eff
		}
		if hasExp {
			window[PropExpirationDate] = exp
		}
		start, err := ir.ParseDate(window[PropEffectiveDate])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", PropEffectiveDate, err)
		}
		end, err := ir.ParseDate(window[PropExpirationDate])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", PropExpirationDate, err)
		}
		if start.After(end) {
			return nil, fmt.Errorf("effective date %s is after expiration date %s",
				start.Format(time.DateOnly), end.Format(time.DateOnly))
		}

		c, err := domain.NewCollector(domain.KindDate)
		if err != nil {
			return nil, err
		}
		c.AddPropertyToSearch(PropEffectiveDate)
		c.AddPropertyToSearch(PropExpirationDate)
		if err := c.GatherDomains(window); err != nil {
			return nil, err
		}
		if d, ok := c.GatheredDomain(); ok {
			out[EnvCurrentDate] = d
		}
	}

	for _, name := range slices.Sorted(maps.Keys(props)) {
		if name == PropEffectiveDate || name == PropExpirationDate {
			continue
		}
		c, err := domain.NewCollector(domain.KindString)
		if err != nil {
			return nil, err
		}
		c.AddPropertyToSearch(name)
		if err := c.GatherDomains(map[string]any{name: props[name]}); err != nil {
			return nil, err
		}
		if d, ok := c.GatheredDomain(); ok {
			out[name] = d
		}
	}
	return out, nil
}

func (l *linker) table(spec ir.MethodSpec, params []method.Param) (*dtable.Table, error) {
	names := paramNames(spec)
	b := dtable.NewBuilder(spec.Name, params)

	dateColumns := make(map[string]bool)
	for _, c := range spec.Table.Conditions {
		var cond dtable.Condition
		switch c.Kind {
		case "equals":
			cond = dtable.Equals(slices.Index(names, c.Arg))
		case "range":
			cond = dtable.Range(slices.Index(names, c.Arg))
		case "expr":
			cc, err := l.cel.Condition(spec.Name+"."+c.Name, c.Expr, names, c.Cells)
			if err != nil {
				return nil, err
			}
			cond = cc
		}
		kind, err := domain.ParseKind(c.Domain)
		if err != nil {
			return nil, err
		}
		if err := b.AddCondition(c.Name, cond, c.Cells, kind); err != nil {
			return nil, err
		}
		if i := slices.Index(names, c.Arg); kind == domain.KindDate || (c.Kind != "expr" && i >= 0 && params[i].Type == ir.TypeDate) {
			dateColumns[c.Name] = true
		}
	}

	for i, r := range spec.Table.Rows {
		cells := make(map[string][]any, len(r.Cells))
		for name, values := range r.Cells {
			if !dateColumns[name] {
				cells[name] = values
				continue
			}
			converted, err := toDates(values)
			if err != nil {
				return nil, fmt.Errorf("row %d: condition %q: %w", i, name, err)
			}
			cells[name] = converted
		}

		ret := r.Return
		if r.Expr != "" {
			action, err := l.cel.Expression(fmt.Sprintf("%s.row%d", spec.Name, i), r.Expr, names)
			if err != nil {
				return nil, err
			}
			ret = action
		}
		if err := b.AddRow(cells, ret); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// toDates parses date cells, descending into list cells. nil stays nil.
func toDates(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case nil:
		case []any:
			list, err := toDates(val)
			if err != nil {
				return nil, err
			}
			out[i] = list
		default:
			d, err := ir.ParseDate(val)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
	}
	return out, nil
}

func (l *linker) sheet(spec ir.MethodSpec) (*spreadsheet.Spreadsheet, error) {
	s := spec.Sheet
	names := paramNames(spec)

	cells := make([]spreadsheet.Cell, 0, len(s.Cells))
	for _, c := range s.Cells {
		cell := spreadsheet.Cell{Coord: ir.Coord{Row: c.Row, Col: c.Col}, Value: c.Value}
		if c.Expr != "" {
			f, err := l.cel.Formula(fmt.Sprintf("%s.%s", spec.Name, cell.Coord), c.Expr, names, c.Refs)
			if err != nil {
				return nil, err
			}
			cell.Formula = f
		}
		cells = append(cells, cell)
	}

	cast, err := spreadsheet.CastByName(s.Result.Cast)
	if err != nil {
		return nil, err
	}
	var result spreadsheet.ResultBuilder = spreadsheet.GridResultBuilder{Cast: cast}
	if !s.Result.Grid {
		result = spreadsheet.ScalarResultBuilder{
			Coord:    ir.Coord{Row: s.Result.Row, Col: s.Result.Col},
			Cast:     cast,
			FullGrid: s.Result.FullGrid,
		}
	}

	sheet, err := spreadsheet.New(spec.Name, s.Rows, s.Cols, cells, result,
		spreadsheet.WithNames(s.RowNames, s.ColNames),
		spreadsheet.WithMaxSteps(l.maxSteps),
	)
	if err != nil {
		return nil, err
	}

	for _, cycle := range spreadsheet.AnalyzeReferences(sheet) {
		w := fmt.Sprintf("method %s: %s", spec.ID, cycle)
		l.logger.Warn("spreadsheet reference cycle", "method", spec.ID, "cycle", cycle.String())
		l.warnings = append(l.warnings, w)
	}
	return sheet, nil
}

func paramNames(spec ir.MethodSpec) []string {
	names := make([]string, len(spec.Params))
	for i, p := range spec.Params {
		names[i] = p.Name
	}
	return names
}
