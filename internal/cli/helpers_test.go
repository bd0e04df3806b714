package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// insuranceDir is the example rules project shipped with the repository.
var insuranceDir = filepath.Join("..", "..", "examples", "insurance")

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeProject writes CUE files into a fresh directory. Each source gets the
// package clause prepended.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		data := "package rules\n\n" + strings.TrimSpace(src) + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}
	return dir
}

// copyProject copies the insurance example so a test can edit it.
func copyProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files, err := FindCUEFiles(insuranceDir)
	require.NoError(t, err)
	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.Base(f)), data, 0o644))
	}
	return dir
}

func textOpts() *RootOptions { return &RootOptions{Format: "text"} }

func jsonOpts() *RootOptions { return &RootOptions{Format: "json"} }
