// Package dtable implements decision tables as method bodies.
//
// A table has condition columns and rule rows. Evaluation walks the rows
// top to bottom and returns the result of the first row whose conditions
// all match the call arguments.
//
// Cells are held in column storage built through storage.ScaleStorageBuilder.
// A row whose built-in condition cell lists several values expands into one
// physical slot per value, so `state in [CA, NY]` is stored as two slots of
// one logical row. Each built-in column also collects a value domain; when
// an argument falls outside it, rows constrained in that column are skipped
// without evaluating their conditions.
package dtable
