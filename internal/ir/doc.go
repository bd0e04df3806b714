// Package ir provides the compiled project representation for table-authored
// rules.
//
// This package contains type definitions and value helpers only. The compiler
// produces an ir.Project from CUE sources; the linker in internal/compiler
// turns it into executable descriptors. ir imports nothing internal so every
// other package can depend on it without cycles.
//
// Key design constraints:
//   - Names are NFC normalized at the boundary (NormalizeName)
//   - Values are normalized to int64/float64/string/bool/time.Time/[]any/map[string]any
//   - Canonical JSON (MarshalCanonical) is the only encoding used for digests
//   - All JSON tags use snake_case
package ir
