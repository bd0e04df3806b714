package dispatch

import (
	"errors"
	"slices"

	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// ErrEmptyComposite is returned when a composite would have no children.
var ErrEmptyComposite = errors.New("dispatch: composite node needs at least one child")

// Node is a dispatch tree node: either *Leaf or *Composite.
type Node interface {
	Name() string
	node()
}

// Leaf wraps one candidate descriptor.
type Leaf struct {
	Descriptor *method.Descriptor
}

// NewLeaf creates a leaf for d.
func NewLeaf(d *method.Descriptor) *Leaf {
	return &Leaf{Descriptor: d}
}

func (l *Leaf) Name() string { return l.Descriptor.Name() }
func (*Leaf) node()          {}

// Composite groups child nodes in declaration order.
type Composite struct {
	name     string
	children []Node
}

// NewComposite creates a composite. children is copied.
func NewComposite(name string, children ...Node) (*Composite, error) {
	if len(children) == 0 {
		return nil, ErrEmptyComposite
	}
	return &Composite{name: name, children: slices.Clone(children)}, nil
}

func (c *Composite) Name() string { return c.name }
func (*Composite) node()          {}

// Children returns a copy of the child list.
func (c *Composite) Children() []Node {
	return slices.Clone(c.children)
}
