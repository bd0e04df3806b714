package dispatch

import "github.com/izubarev/openl-tablets-sub004/internal/method"

// ExtractMethods flattens nodes into their leaf descriptors, depth-first and
// left to right. Duplicates reachable through several paths are kept.
//
// The walk uses an explicit stack, so deep trees cannot exhaust the
// goroutine stack. Leaves come back in encounter order, which makes the
// function idempotent: flattening a flat list of leaves returns the same
// list.
func ExtractMethods(nodes ...Node) []*method.Descriptor {
	var out []*method.Descriptor

	stack := make([]Node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch v := n.(type) {
		case *Leaf:
			out = append(out, v.Descriptor)
		case *Composite:
			for i := len(v.children) - 1; i >= 0; i-- {
				stack = append(stack, v.children[i])
			}
		}
	}
	return out
}

// Leaves wraps descriptors as leaf nodes.
func Leaves(ds []*method.Descriptor) []Node {
	nodes := make([]Node, len(ds))
	for i, d := range ds {
		nodes[i] = NewLeaf(d)
	}
	return nodes
}
