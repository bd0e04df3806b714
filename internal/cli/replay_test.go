package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izubarev/openl-tablets-sub004/internal/engine"
	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

// journalCalls records premium calls for ages 20, 30 and 10 (which fails)
// into a new journal.
func journalCalls(t *testing.T, project string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "calls.db")
	for _, args := range []string{"[20]", "[30]", "[10]"} {
		_, _ = execute(t, NewCallCommand(textOpts()), project, "premium", "--args", args, "--journal", dbPath)
	}
	return dbPath
}

func TestReplayReproduces(t *testing.T) {
	dbPath := journalCalls(t, insuranceDir)

	out, err := execute(t, NewReplayCommand(textOpts()), insuranceDir, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 3 call(s): 3 matched, 0 changed")
	assert.Contains(t, out, "✓ All calls reproduced")
}

func TestReplayDetectsChangedRules(t *testing.T) {
	project := copyProject(t)
	dbPath := journalCalls(t, project)

	// Raise the 26-64 band.
	path := filepath.Join(project, "premium.cue")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.Replace(string(data), "return: 200", "return: 210", 1)
	require.NotEqual(t, string(data), edited)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	out, err := execute(t, NewReplayCommand(jsonOpts()), project, "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, engine.ErrCodeReplayMismatch, resp.Error.Code)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Matched)
	require.Len(t, resp.Data.Mismatches, 1)
	assert.Equal(t, int64(2), resp.Data.Mismatches[0].Seq)
	assert.False(t, resp.Data.Deterministic)
}

func TestReplayMethodFilter(t *testing.T) {
	dbPath := journalCalls(t, insuranceDir)
	_, err := execute(t, NewCallCommand(textOpts()), insuranceDir, "discount", "--args", `["gold", 1]`, "--journal", dbPath)
	require.NoError(t, err)

	out, err := execute(t, NewReplayCommand(textOpts()), insuranceDir, "--db", dbPath, "--method", "discount")
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 1 call(s)")
}

func TestReplayEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(textOpts()), insuranceDir, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No calls found in journal")
}

func TestReplayMissingDatabase(t *testing.T) {
	_, err := execute(t, NewReplayCommand(textOpts()), insuranceDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db is required")

	missing := filepath.Join(t.TempDir(), "missing.db")
	out, err := execute(t, NewReplayCommand(textOpts()), insuranceDir, "--db", missing)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "journal not found")

	_, err = os.Stat(missing)
	assert.True(t, os.IsNotExist(err), "replay must not create a journal")
}
