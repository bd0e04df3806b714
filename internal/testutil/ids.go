// Package testutil holds deterministic stand-ins used by the harness and
// tests.
package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates invocation IDs of the form prefix-0001, prefix-0002
// and so on. Unlike method.FixedGenerator it never runs out.
//
// Thread-safety: SequenceIDs is safe for concurrent use.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator. An empty prefix yields "inv".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "inv"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
