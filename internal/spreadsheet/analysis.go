package spreadsheet

import (
	"fmt"
	"strings"

	"github.com/izubarev/openl-tablets-sub004/internal/graph"
)

// Referencer is implemented by formula bodies that can list the cells they
// read.
type Referencer interface {
	References() []Coord
}

// ReferenceCycle is a statically detected dependency cycle.
type ReferenceCycle struct {
	Sheet string  `json:"sheet"`
	Path  []Coord `json:"path"`
}

func (w ReferenceCycle) String() string {
	parts := make([]string, len(w.Path))
	for i, c := range w.Path {
		parts[i] = c.String()
	}
	return fmt.Sprintf("spreadsheet %s: cells reference each other: %s", w.Sheet, strings.Join(parts, " -> "))
}

// AnalyzeReferences reports reference cycles among formula cells whose
// bodies implement Referencer.
//
// Cycles are warnings, not errors: a formula may reference a cell only on
// some branches, so a static cycle need not fail at run time.
func AnalyzeReferences(s *Spreadsheet) []ReferenceCycle {
	g := graph.New[Coord]()
	for _, cell := range s.cells {
		ref, ok := cell.Formula.(Referencer)
		if !ok {
			continue
		}
		g.AddNode(cell.Coord)
		for _, to := range ref.References() {
			if s.inRange(to) {
				g.AddEdge(cell.Coord, to)
			}
		}
	}

	var out []ReferenceCycle
	for _, path := range g.Cycles() {
		out = append(out, ReferenceCycle{Sheet: s.name, Path: path})
	}
	return out
}
