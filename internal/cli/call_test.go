package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izubarev/openl-tablets-sub004/internal/dispatch"
	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

// =============================================================================
// Single calls
// =============================================================================

func TestCallTable(t *testing.T) {
	out, err := execute(t, NewCallCommand(textOpts()), insuranceDir, "premium", "--args", "[30]")
	require.NoError(t, err)
	assert.Equal(t, "premium = 200\n", out)
}

func TestCallDispatchesOnEnv(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{"west", `{"state": "NV"}`, "premium = 350\n"},
		{"california before 2025", `{"state": "CA", "currentDate": {"$date": "2024-06-01"}}`, "premium = 350\n"},
		{"california 2025", `{"state": "CA", "currentDate": {"$date": "2025-06-01"}}`, "premium = 380\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewCallCommand(textOpts()), insuranceDir, "premium", "--args", "[20]", "--env", tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCallJSON(t *testing.T) {
	out, err := execute(t, NewCallCommand(jsonOpts()), insuranceDir, "quote", "--args", "[30, 3]")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   CallOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "quote(int,int)", resp.Data.Signature)
	assert.Equal(t, int64(1), resp.Data.Seq)
	assert.JSONEq(t, "540", string(resp.Data.Value))
	assert.NotEmpty(t, resp.Data.ID)
}

func TestCallNoApplicableMethod(t *testing.T) {
	out, err := execute(t, NewCallCommand(jsonOpts()), insuranceDir, "premium", "--args", `["old"]`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dispatch.ErrCodeNoApplicableMethod, resp.Error.Code)
}

func TestCallBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"args not an array", []string{"--args", `{"age": 30}`}},
		{"args not JSON", []string{"--args", "[30"}},
		{"env not an object", []string{"--args", "[30]", "--env", `["CA"]`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{insuranceDir, "premium"}, tt.args...)
			out, err := execute(t, NewCallCommand(textOpts()), args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, ErrCodeBadInput)
		})
	}
}

func TestCallRequiresMethodOrBatch(t *testing.T) {
	_, err := execute(t, NewCallCommand(textOpts()), insuranceDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method name is required")
}

// =============================================================================
// Journal
// =============================================================================

func TestCallJournals(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calls.db")

	for _, age := range []string{"[30]", "[70]"} {
		_, err := execute(t, NewCallCommand(textOpts()), insuranceDir, "premium", "--args", age, "--journal", dbPath)
		require.NoError(t, err)
	}
	_, err := execute(t, NewCallCommand(textOpts()), insuranceDir, "premium", "--args", "[10]", "--journal", dbPath)
	require.Error(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	records, err := st.ReadInvocations(context.Background(), "premium")
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Each run resumes the sequence of the previous one.
	assert.Equal(t, []int64{1, 2, 3}, []int64{records[0].Seq, records[1].Seq, records[2].Seq})
	assert.Equal(t, int64(400), records[1].Result)
	assert.True(t, records[2].Failed())
	assert.Equal(t, "premium(int)", records[0].Signature)
}

func TestCallJournalFromConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	opts := textOpts()
	opts.Config.Journal.Path = dbPath

	_, err := execute(t, NewCallCommand(opts), insuranceDir, "discount", "--args", `["gold", 7]`)
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

// =============================================================================
// Batch
// =============================================================================

func TestCallBatch(t *testing.T) {
	batch := filepath.Join(t.TempDir(), "requests.yaml")
	require.NoError(t, os.WriteFile(batch, []byte(`
- method: premium
  args: [30]
- method: premium
  args: [20]
  env: {state: CA, currentDate: {$date: "2025-02-01"}}
- method: discount
  args: [platinum, 6]
- method: quote_grid
  args: [30, 2]
`), 0o644))

	out, err := execute(t, NewCallCommand(textOpts()), insuranceDir, "--batch", batch)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ [0] premium = 200")
	assert.Contains(t, out, "✓ [1] premium = 380")
	assert.Contains(t, out, "✓ [2] discount = 20")
	assert.Contains(t, out, "✓ [3] quote_grid = [[base, 200], [total, 400]]")
	assert.Contains(t, out, "Batch: 4 succeeded, 0 failed, 4 total")
}

func TestCallBatchFailuresJSON(t *testing.T) {
	batch := filepath.Join(t.TempDir(), "requests.json")
	require.NoError(t, os.WriteFile(batch, []byte(`[
		{"method": "premium", "args": [30]},
		{"method": "premium", "args": [10]},
		{"method": "missing", "args": []}
	]`), 0o644))

	out, err := execute(t, NewCallCommand(jsonOpts()), insuranceDir, "--batch", batch)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string      `json:"status"`
		Data   BatchOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Failed)
	require.Len(t, resp.Data.Calls, 3)
	assert.JSONEq(t, "200", string(resp.Data.Calls[0].Value))
	assert.Equal(t, "EXECUTION", resp.Data.Calls[1].Error.Code)
	assert.Equal(t, dispatch.ErrCodeNoApplicableMethod, resp.Data.Calls[2].Error.Code)
}

func TestReadBatchRequiresMethod(t *testing.T) {
	batch := filepath.Join(t.TempDir(), "requests.yaml")
	require.NoError(t, os.WriteFile(batch, []byte("- args: [1]\n"), 0o644))

	_, err := readBatch(batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method is required")
}
