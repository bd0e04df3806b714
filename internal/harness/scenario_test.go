package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ParseScenario
// =============================================================================

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: inline
source: |
  method: double: {params: [{name: "n", type: "int"}], expr: "n * 2"}
calls:
  - method: double
    args: [2]
    env: {currentDate: {$date: "2025-01-02T00:00:00Z"}, ratio: 1.5}
    expect: {value: 4}
assertions:
  - {type: trace_count, method: double, count: 1}
`))
	require.NoError(t, err)
	assert.Equal(t, "inline", s.Name)
	require.Len(t, s.Calls, 1)

	call := s.Calls[0]
	assert.Equal(t, []any{int64(2)}, call.Args, "ints normalize to int64")
	date, ok := call.Env["currentDate"].(time.Time)
	require.True(t, ok, "$date maps become dates")
	assert.True(t, date.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1.5, call.Env["ratio"])
	assert.Equal(t, int64(4), call.Expect.Value)
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
source: "x: 1"
calls: [{method: m}]
asertions: []
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asertions")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "source: x\ncalls: [{method: m}]", "name is required"},
		{"no project", "name: a\ncalls: [{method: m}]", "exactly one of project and source"},
		{"both projects", "name: a\nproject: p\nsource: s\ncalls: [{method: m}]", "exactly one of project and source"},
		{"no calls", "name: a\nsource: s", "calls list is required"},
		{"no method", "name: a\nsource: s\ncalls: [{args: [1]}]", "calls[0]: method is required"},
		{"value and error", "name: a\nsource: s\ncalls: [{method: m, expect: {value: 1, error: EXECUTION}}]", "exclusive"},
		{"unknown assertion", "name: a\nsource: s\ncalls: [{method: m}]\nassertions: [{type: magic}]", "unknown assertion type"},
		{"order too short", "name: a\nsource: s\ncalls: [{method: m}]\nassertions: [{type: trace_order, methods: [m]}]", "at least 2"},
		{"resolved_to range", "name: a\nsource: s\ncalls: [{method: m}]\nassertions: [{type: resolved_to, call: 2, signature: m()}]", "call must be in [1, 1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// =============================================================================
// LoadScenario
// =============================================================================

func TestLoadScenario_ResolvesProjectPath(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/premium.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "../../../../examples/insurance"), s.Project)
	assert.Len(t, s.Calls, 6)
}

func TestLoadScenario_MissingProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\nproject: nowhere\ncalls: [{method: m}]\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/missing.yaml")
	assert.Error(t, err)
}
