package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izubarev/openl-tablets-sub004/internal/compiler"
)

func TestLoadProject(t *testing.T) {
	result, errs := LoadProject(insuranceDir)
	require.Empty(t, errs)
	assert.Equal(t, 3, result.FileCount)
	assert.Len(t, result.IR.Methods, 6)

	_, ok := result.Project.Node("premium")
	assert.True(t, ok)
}

func TestLoadProjectErrorCodes(t *testing.T) {
	file := filepath.Join(t.TempDir(), "rules.cue")
	require.NoError(t, os.WriteFile(file, []byte("package rules\n"), 0o644))

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing", "/nonexistent/project", ErrCodeNotFound},
		{"file", file, ErrCodeNotFound},
		{"empty", t.TempDir(), ErrCodeNoFiles},
		{"unknown body", writeProject(t, map[string]string{
			"a.cue": `method: m: {returns: "int"}`,
		}), compiler.ErrMethodBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := LoadProject(tt.dir)
			require.NotEmpty(t, errs)
			var loadErr *LoadError
			require.True(t, errors.As(errs[0], &loadErr))
			assert.Equal(t, tt.code, loadErr.Code)
		})
	}
}

func TestConvertCompileError(t *testing.T) {
	err := convertCompileError(&compiler.CompileError{Field: "method.x", Message: "bad"}, ErrCodeLoadFailed)
	assert.Equal(t, ErrCodeLoadFailed, err.Code)
	assert.Equal(t, "method.x: bad", err.Message)
	assert.Equal(t, "E004: method.x: bad", err.Error())

	err = convertCompileError(errors.New("plain"), ErrCodeBuildFailed)
	assert.Equal(t, ErrCodeBuildFailed, err.Code)
	assert.Equal(t, "plain", err.Message)
}

func TestOutputLoadErrorsText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	err := outputLoadErrors(f, []error{
		&LoadError{Code: "E102", Message: "method.a.returns: invalid type"},
		errors.New("unexpected"),
	})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E102: method.a.returns: invalid type")
	assert.Contains(t, buf.String(), ErrCodeGeneric+": unexpected")
}
