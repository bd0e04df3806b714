// Package spreadsheet evaluates grids of interdependent cells.
//
// A Spreadsheet is immutable and shared by every call. Each evaluation gets
// its own Calculator, which computes cells lazily on first read and
// memoises both values and errors. A cell that is read while it is still
// being computed closes a cycle and fails with CircularReferenceError.
//
// The Spreadsheet's ResultBuilder turns the calculator into the method
// result: one cast cell, or the whole grid.
package spreadsheet
