// Package storage holds the compact cell storage of decision tables.
//
// Values are written into a Builder by index in any order. OptimizeAndBuild
// freezes the builder and picks a physical layout (empty, constant, indexed
// or array) without changing what Get returns for any index. Built Storage
// values are immutable and safe for concurrent reads.
//
// A ScaleStorageBuilder lets one authored row occupy several physical slots:
// writes at logical index i land at RowScale.ActualIndex(i) of the inner
// builder, and the resulting ScaledStorage applies the same translation on
// read.
package storage
