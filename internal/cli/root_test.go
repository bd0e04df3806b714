package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tablets", cmd.Use)
	assert.Contains(t, cmd.Long, "decision tables")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "info", "call", "sheet", "test", "replay", "journal"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestCallCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	callCmd, _, err := cmd.Find([]string{"call"})
	require.NoError(t, err)

	for _, name := range []string{"args", "env", "journal", "batch"} {
		assert.NotNil(t, callCmd.Flags().Lookup(name), "flag --%s", name)
	}
}

func TestRootInvalidFormat(t *testing.T) {
	_, err := execute(t, NewRootCommand(), "--format", "xml", "compile", insuranceDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootLoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "calls.db")
	cfgPath := filepath.Join(dir, "tablets.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: warn\njournal:\n  path: "+dbPath+"\n"), 0o644))

	out, err := execute(t, NewRootCommand(), "--config", cfgPath, "call", insuranceDir, "premium", "--args", "[30]")
	require.NoError(t, err)
	assert.Equal(t, "premium = 200\n", out)

	// journal.path from the file enabled journaling.
	_, err = os.Stat(dbPath)
	require.NoError(t, err)
}

func TestRootConfigFromEnv(t *testing.T) {
	t.Setenv("TABLETS_ENGINE_MAX_STEPS", "2")

	out, err := execute(t, NewRootCommand(), "sheet", insuranceDir, "quote", "--args", "[30, 3]")
	require.NoError(t, err)
	assert.Contains(t, out, "#STEPS_EXCEEDED")
}

func TestRootBadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "tablets.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: loud\n"), 0o644))

	_, err := execute(t, NewRootCommand(), "--config", cfgPath, "info", insuranceDir, "premium")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
