package dtable

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/izubarev/openl-tablets-sub004/internal/domain"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
	"github.com/izubarev/openl-tablets-sub004/internal/storage"
)

type column struct {
	name      string
	cond      Condition
	cellNames []string
	kind      domain.Kind
}

type row struct {
	cells map[string][]any
	ret   any
	slots int
}

// Builder collects the columns and rows of one table. It is used by one
// compilation pass and discarded after Build.
type Builder struct {
	name    string
	params  []method.Param
	columns []column
	rows    []row
}

// NewBuilder starts a table for a method with the given parameters.
func NewBuilder(name string, params []method.Param) *Builder {
	return &Builder{name: name, params: slices.Clone(params)}
}

// AddCondition appends a condition column. cellNames names the per-row
// values the condition reads; kind selects the pruning domain of built-in
// columns and may be empty.
func (b *Builder) AddCondition(name string, cond Condition, cellNames []string, kind domain.Kind) error {
	if slices.ContainsFunc(b.columns, func(c column) bool { return c.name == name }) {
		return fmt.Errorf("table %s: duplicate condition %q", b.name, name)
	}
	if len(cellNames) == 0 {
		return fmt.Errorf("table %s: condition %q has no cells", b.name, name)
	}
	if ac, ok := cond.(ArgCondition); ok {
		if ac.ArgIndex() < 0 || ac.ArgIndex() >= len(b.params) {
			return fmt.Errorf("table %s: condition %q reads argument %d of %d", b.name, name, ac.ArgIndex(), len(b.params))
		}
	} else if kind != "" {
		return fmt.Errorf("table %s: condition %q: only built-in conditions take a domain", b.name, name)
	}
	b.columns = append(b.columns, column{name: name, cond: cond, cellNames: slices.Clone(cellNames), kind: kind})
	return nil
}

// AddRow appends a rule row. cells maps a condition name to its cell values;
// an omitted condition is a wildcard. In built-in columns a list cell
// expands the row into one slot per element; list cells of one row must
// have equal length or length 1.
func (b *Builder) AddRow(cells map[string][]any, ret any) error {
	r := row{cells: make(map[string][]any, len(cells)), ret: ret, slots: 1}
	for name, values := range cells {
		i := slices.IndexFunc(b.columns, func(c column) bool { return c.name == name })
		if i < 0 {
			return fmt.Errorf("table %s row %d: unknown condition %q", b.name, len(b.rows), name)
		}
		col := b.columns[i]
		if len(values) != len(col.cellNames) {
			return fmt.Errorf("table %s row %d: condition %q needs %d cells, got %d",
				b.name, len(b.rows), name, len(col.cellNames), len(values))
		}
		if _, builtin := col.cond.(ArgCondition); builtin {
			for _, v := range values {
				list, ok := v.([]any)
				if !ok || len(list) == 1 {
					continue
				}
				if slices.Contains(list, nil) {
					return fmt.Errorf("table %s row %d: condition %q: list cells cannot hold nil", b.name, len(b.rows), name)
				}
				switch {
				case len(list) == 0:
					return fmt.Errorf("table %s row %d: condition %q: empty list cell", b.name, len(b.rows), name)
				case r.slots == 1:
					r.slots = len(list)
				case r.slots != len(list):
					return fmt.Errorf("table %s row %d: list cells have different lengths (%d and %d)",
						b.name, len(b.rows), r.slots, len(list))
				}
			}
		}
		r.cells[name] = slices.Clone(values)
	}
	b.rows = append(b.rows, r)
	return nil
}

// Build freezes the table into column storage.
func (b *Builder) Build() (*Table, error) {
	n := len(b.rows)
	m := 1
	for _, r := range b.rows {
		m = max(m, r.slots)
	}
	scale, err := storage.MultiplyScale(m)
	if err != nil {
		return nil, err
	}

	t := &Table{
		name:    b.name,
		params:  slices.Clone(b.params),
		rows:    n,
		scale:   scale,
		columns: make([]builtColumn, len(b.columns)),
	}

	slotBuilder := storage.NewBuilder(n)
	retBuilder := storage.NewScaleStorageBuilder(scale, storage.NewBuilder(n))
	for i, r := range b.rows {
		if err := slotBuilder.WriteObject(r.slots, i); err != nil {
			return nil, err
		}
		if err := retBuilder.WriteObject(r.ret, i); err != nil {
			return nil, err
		}
	}
	if t.slots, err = slotBuilder.OptimizeAndBuild(); err != nil {
		return nil, err
	}
	if t.returns, err = buildScaled(retBuilder); err != nil {
		return nil, err
	}

	for ci, col := range b.columns {
		bc, err := b.buildColumn(col, scale)
		if err != nil {
			return nil, fmt.Errorf("table %s: condition %q: %w", b.name, col.name, err)
		}
		t.columns[ci] = bc
	}

	slog.Debug("decision table built",
		"table", b.name,
		"rows", n,
		"multiplier", m,
		"columns", len(b.columns),
	)
	return t, nil
}

func (b *Builder) buildColumn(col column, scale storage.RowScale) (builtColumn, error) {
	bc := builtColumn{
		name:       col.name,
		cond:       col.cond,
		cellNames:  col.cellNames,
		constraint: make([]bool, len(b.rows)),
		arg:        -1,
	}
	ac, builtin := col.cond.(ArgCondition)
	if builtin {
		bc.arg = ac.ArgIndex()
	}

	var collector domain.Collector
	if builtin && col.kind != "" {
		c, err := domain.NewCollector(col.kind)
		if err != nil {
			return builtColumn{}, err
		}
		for _, name := range col.cellNames {
			c.AddPropertyToSearch(name)
		}
		collector = c
	}

	cellBuilders := make([]*storage.ScaleStorageBuilder, len(col.cellNames))
	for k := range cellBuilders {
		cellBuilders[k] = storage.NewScaleStorageBuilder(scale, storage.NewBuilder(len(b.rows)))
	}

	for i, r := range b.rows {
		values, ok := r.cells[col.name]
		if !ok {
			continue
		}
		props := make(map[string]any, len(values))
		bc.constraint[i] = true
		for k, v := range values {
			if v == nil {
				bc.constraint[i] = false
			}
			props[col.cellNames[k]] = v
			if err := writeCell(cellBuilders[k], i, v, builtin); err != nil {
				return builtColumn{}, err
			}
		}
		if collector != nil && bc.constraint[i] {
			if err := collector.GatherDomains(props); err != nil {
				return builtColumn{}, fmt.Errorf("row %d: %w", i, err)
			}
		}
	}

	if collector != nil {
		if d, ok := collector.GatheredDomain(); ok {
			bc.domain = d
		}
	}

	bc.cells = make([]*storage.ScaledStorage, len(cellBuilders))
	for k, cb := range cellBuilders {
		s, err := buildScaled(cb)
		if err != nil {
			return builtColumn{}, err
		}
		bc.cells[k] = s
	}
	return bc, nil
}

// writeCell stores v in logical row i. Lists in built-in columns fill one
// slot per element; a one-element list is a plain value.
func writeCell(b *storage.ScaleStorageBuilder, i int, v any, expand bool) error {
	list, isList := v.([]any)
	if !expand || !isList {
		return b.WriteObject(v, i)
	}
	if len(list) == 1 {
		return b.WriteObject(list[0], i)
	}
	for k, elem := range list {
		if err := b.WriteSlot(elem, i, k); err != nil {
			return err
		}
	}
	return nil
}

func buildScaled(b *storage.ScaleStorageBuilder) (*storage.ScaledStorage, error) {
	s, err := b.OptimizeAndBuild()
	if err != nil {
		return nil, err
	}
	return s.(*storage.ScaledStorage), nil
}

type builtColumn struct {
	name      string
	cond      Condition
	cellNames []string
	cells     []*storage.ScaledStorage
	arg       int

	// constraint[i] is true when row i has non-nil values in every cell
	// of this column; only such rows can be pruned.
	constraint []bool
	domain     domain.Adaptor
}

// Table is an immutable decision table. It implements method.Body.
type Table struct {
	name    string
	params  []method.Param
	rows    int
	scale   storage.RowScale
	slots   storage.Storage
	returns *storage.ScaledStorage
	columns []builtColumn
}

func (t *Table) Name() string    { return t.name }
func (t *Table) Rows() int       { return t.rows }
func (t *Table) Multiplier() int { return t.scale.Multiplier() }

// Evaluate implements method.Body. The first matching row's return value
// is the result; a return value that is itself a method.Body is evaluated
// with the same call inputs.
func (t *Table) Evaluate(ctx context.Context, target any, args []any, env method.Env) (any, error) {
	if len(args) != len(t.params) {
		return nil, &method.ExecutionError{
			Method: t.name,
			Err:    fmt.Errorf("table takes %d arguments, got %d", len(t.params), len(args)),
		}
	}

	for i := 0; i < t.rows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.pruned(i, args) {
			continue
		}
		matched, err := t.matchRow(ctx, i, args)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}

		ret, err := t.returns.Get(i)
		if err != nil {
			return nil, err
		}
		if body, ok := ret.(method.Body); ok {
			return body.Evaluate(ctx, target, args, env)
		}
		return ret, nil
	}

	return nil, &method.ExecutionError{
		Method: t.name,
		Err:    &NoMatchError{Table: t.name, ArgTypes: argTypes(args)},
	}
}

// pruned reports whether some column's domain excludes the argument while
// row i is constrained in that column. An argument of another kind than the
// domain is left to the condition.
func (t *Table) pruned(i int, args []any) bool {
	for _, col := range t.columns {
		if col.domain == nil || !col.constraint[i] {
			continue
		}
		arg := args[col.arg]
		if !domainKindOf(arg, col.domain.Kind()) {
			continue
		}
		if !col.domain.Contains(arg) {
			return true
		}
	}
	return false
}

func domainKindOf(v any, kind domain.Kind) bool {
	switch kind {
	case domain.KindInt:
		return ir.TypeOf(v) == ir.TypeInt
	case domain.KindDate:
		return ir.TypeOf(v) == ir.TypeDate
	case domain.KindString:
		return ir.TypeOf(v) == ir.TypeString
	default:
		return false
	}
}

// matchRow tries each slot of row i. A column whose cells are all empty in
// the row matches without evaluating its condition.
func (t *Table) matchRow(ctx context.Context, i int, args []any) (bool, error) {
	raw, err := t.slots.Get(i)
	if err != nil {
		return false, err
	}
	slots := raw.(int)

	cells := make([]any, 0, 2)
	for k := 0; k < slots; k++ {
		all := true
		for _, col := range t.columns {
			cells = cells[:0]
			wildcard := true
			for _, s := range col.cells {
				v, err := s.Slot(i, k)
				if err != nil {
					return false, err
				}
				wildcard = wildcard && v == nil
				cells = append(cells, v)
			}
			if wildcard {
				continue
			}
			ok, err := col.cond.Match(ctx, args, cells)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

// ColumnInfo describes one condition column.
type ColumnInfo struct {
	Name   string         `json:"name"`
	Domain string         `json:"domain,omitempty"`
	Cells  []storage.Info `json:"cells"`
}

// Info describes a built table.
type Info struct {
	Name       string       `json:"name"`
	Rows       int          `json:"rows"`
	Multiplier int          `json:"multiplier"`
	Returns    storage.Info `json:"returns"`
	Columns    []ColumnInfo `json:"columns"`
}

// Info reports the storage layout of every column.
func (t *Table) Info() Info {
	info := Info{
		Name:       t.name,
		Rows:       t.rows,
		Multiplier: t.scale.Multiplier(),
		Returns:    t.returns.Info(),
	}
	for _, col := range t.columns {
		ci := ColumnInfo{Name: col.name}
		if col.domain != nil {
			ci.Domain = col.domain.String()
		}
		for _, s := range col.cells {
			ci.Cells = append(ci.Cells, s.Info())
		}
		info.Columns = append(info.Columns, ci)
	}
	return info
}
