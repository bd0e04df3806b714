package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a successful invocation record.
func createTestRecord(id, method string, seq int64, args []any, result any) Record {
	return Record{
		ID:        id,
		Seq:       seq,
		Method:    method,
		Signature: method + "(int)",
		Args:      args,
		Result:    result,
	}
}
