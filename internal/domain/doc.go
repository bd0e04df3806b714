// Package domain provides value domains used to prune rule rows and method
// candidates before full condition evaluation.
//
// A Collector is attached to one condition column (or one set of method
// properties) during the single-threaded compilation pass. It watches a
// configured subset of property names, accumulates the matching typed values
// row by row, and finalizes them into an immutable Adaptor. The only runtime
// capability of an Adaptor is Contains.
//
// INVARIANTS:
//   - Built adaptors are immutable and safe for concurrent use
//   - The gathered domain does not depend on the order rows were gathered in
//   - Zero observations yield no domain (nil, false), never an empty range
//   - A collector is finished once GatheredDomain is called
package domain
