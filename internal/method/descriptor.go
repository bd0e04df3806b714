package method

import (
	"maps"
	"slices"
	"strings"

	"github.com/izubarev/openl-tablets-sub004/internal/domain"
)

// Param is a named, typed parameter. Type is one of the ir type names.
type Param struct {
	Name string
	Type string
}

// Descriptor is an immutable method implementation.
type Descriptor struct {
	name          string
	declaringType string
	layer         string
	params        []Param
	returns       string
	body          Body
	applicability map[string]domain.Adaptor
}

// DescriptorOption configures optional descriptor fields.
type DescriptorOption func(*Descriptor)

// WithDeclaringType sets the owning type name.
func WithDeclaringType(t string) DescriptorOption {
	return func(d *Descriptor) {
		d.declaringType = t
	}
}

// WithLayer records the layer (module, version or overlay) that declared
// the method.
func WithLayer(layer string) DescriptorOption {
	return func(d *Descriptor) {
		d.layer = layer
	}
}

// WithApplicability restricts the method to calls whose env values fall
// inside the given property domains. The map is copied.
func WithApplicability(domains map[string]domain.Adaptor) DescriptorOption {
	return func(d *Descriptor) {
		d.applicability = maps.Clone(domains)
	}
}

// NewDescriptor builds a descriptor. params is copied.
func NewDescriptor(name string, params []Param, returns string, body Body, opts ...DescriptorOption) *Descriptor {
	d := &Descriptor{
		name:    name,
		params:  slices.Clone(params),
		returns: returns,
		body:    body,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Descriptor) Name() string          { return d.name }
func (d *Descriptor) DeclaringType() string { return d.declaringType }
func (d *Descriptor) Layer() string         { return d.layer }
func (d *Descriptor) Returns() string       { return d.returns }
func (d *Descriptor) Body() Body            { return d.body }
func (d *Descriptor) Arity() int            { return len(d.params) }

// Params returns a copy of the parameter list.
func (d *Descriptor) Params() []Param {
	return slices.Clone(d.params)
}

// ParamTypes returns the declared parameter types in order.
func (d *Descriptor) ParamTypes() []string {
	types := make([]string, len(d.params))
	for i, p := range d.params {
		types[i] = p.Type
	}
	return types
}

// Applicability returns the domain for one property.
func (d *Descriptor) Applicability(property string) (domain.Adaptor, bool) {
	a, ok := d.applicability[property]
	return a, ok
}

// ApplicabilityKeys returns the restricted property names, sorted.
func (d *Descriptor) ApplicabilityKeys() []string {
	return slices.Sorted(maps.Keys(d.applicability))
}

// Signature renders the descriptor as name(type,...), prefixed by the
// declaring type and suffixed by the layer when present.
func (d *Descriptor) Signature() string {
	var b strings.Builder
	if d.declaringType != "" {
		b.WriteString(d.declaringType)
		b.WriteByte('.')
	}
	b.WriteString(d.name)
	b.WriteByte('(')
	b.WriteString(strings.Join(d.ParamTypes(), ","))
	b.WriteByte(')')
	if d.layer != "" {
		b.WriteString("@")
		b.WriteString(d.layer)
	}
	return b.String()
}

func (d *Descriptor) String() string { return d.Signature() }
