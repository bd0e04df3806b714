package dispatch

import (
	"fmt"
	"slices"

	"github.com/izubarev/openl-tablets-sub004/internal/graph"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// TreeBuilder assembles dispatch trees during compilation. It is used by one
// goroutine and discarded after Build.
//
// For every method name the tree is
//
//	Composite(name)
//	├── Composite(name@layer)   one per layer, declaration order
//	│   └── Leaf ...
//	└── <root of each extended name>
type TreeBuilder struct {
	names   []string
	layers  map[string][]string
	methods map[string]map[string][]*method.Descriptor
	extends map[string][]string
}

// NewTreeBuilder creates an empty builder.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{
		layers:  make(map[string][]string),
		methods: make(map[string]map[string][]*method.Descriptor),
		extends: make(map[string][]string),
	}
}

func (b *TreeBuilder) addName(name string) {
	if _, ok := b.methods[name]; !ok {
		b.names = append(b.names, name)
		b.methods[name] = make(map[string][]*method.Descriptor)
	}
}

// AddMethod registers d under its name and layer.
func (b *TreeBuilder) AddMethod(d *method.Descriptor) {
	name, layer := d.Name(), d.Layer()
	b.addName(name)
	if !slices.Contains(b.layers[name], layer) {
		b.layers[name] = append(b.layers[name], layer)
	}
	b.methods[name][layer] = append(b.methods[name][layer], d)
}

// Extend layers the candidates of every included name underneath name.
func (b *TreeBuilder) Extend(name string, included ...string) {
	b.addName(name)
	b.extends[name] = append(b.extends[name], included...)
}

// Build returns the root node of every method name. It fails with
// CycleError when names include each other, and when an Extend names a
// method that was never added.
func (b *TreeBuilder) Build() (map[string]Node, error) {
	g := graph.New[string]()
	for _, name := range b.names {
		g.AddNode(name)
		for _, inc := range b.extends[name] {
			if _, ok := b.methods[inc]; !ok {
				return nil, fmt.Errorf("method %q extends unknown method %q", name, inc)
			}
			g.AddEdge(name, inc)
		}
	}
	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, &CycleError{Path: cycles[0]}
	}

	roots := make(map[string]Node, len(b.names))
	var buildName func(name string) (Node, error)
	buildName = func(name string) (Node, error) {
		if n, ok := roots[name]; ok {
			return n, nil
		}
		var children []Node
		for _, layer := range b.layers[name] {
			label := name
			if layer != "" {
				label = name + "@" + layer
			}
			c, err := NewComposite(label, Leaves(b.methods[name][layer])...)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		for _, inc := range b.extends[name] {
			n, err := buildName(inc)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		root, err := NewComposite(name, children...)
		if err != nil {
			return nil, fmt.Errorf("method %q: %w", name, err)
		}
		roots[name] = root
		return root, nil
	}

	for _, name := range b.names {
		if _, err := buildName(name); err != nil {
			return nil, err
		}
	}
	return roots, nil
}
