package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// OutputFormatter
// ============================================================================

func TestOutputFormatter_JSON(t *testing.T) {
	tests := []struct {
		name       string
		write      func(f *OutputFormatter) error
		wantStatus string
		wantCode   string
		details    bool
	}{
		{
			name:       "success",
			write:      func(f *OutputFormatter) error { return f.Success(map[string]int64{"premium": 200}) },
			wantStatus: "ok",
		},
		{
			name: "error",
			write: func(f *OutputFormatter) error {
				return f.Error(ErrCodeNotFound, `no method named "premium"`, nil)
			},
			wantStatus: "error",
			wantCode:   ErrCodeNotFound,
		},
		{
			name: "error with position",
			write: func(f *OutputFormatter) error {
				return f.Error(ErrCodeLoadFailed, "expected '}'", map[string]string{"position": "premium.cue:3:1"})
			},
			wantStatus: "error",
			wantCode:   ErrCodeLoadFailed,
			details:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			require.NoError(t, tt.write(&OutputFormatter{Format: "json", Writer: buf}))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			if tt.wantCode == "" {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Data)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.details, resp.Error.Details != nil)
		})
	}
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Success("premium = 200"))
	assert.Contains(t, buf.String(), "premium = 200")

	buf.Reset()
	require.NoError(t, f.Error(ErrCodeBadInput, "--args: expected a JSON array", map[string]string{"flag": "args"}))
	assert.Contains(t, buf.String(), "Error ["+ErrCodeBadInput+"]")
	assert.Contains(t, buf.String(), "expected a JSON array")
	assert.NotContains(t, buf.String(), "Details:", "details are verbose-only")

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error(ErrCodeBadInput, "--args: expected a JSON array", map[string]string{"flag": "args"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "test.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Processing test.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E100",
		Message: "validation failed",
		Details: []string{"missing field: name"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E100", decoded.Code)
	assert.Equal(t, "validation failed", decoded.Message)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "call failed", errors.New("boom")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "call failed: boom")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"int", int64(42), "42"},
		{"date", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "2025-01-02"},
		{"timestamp", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), "2025-01-02T03:04:05Z"},
		{"map sorted", map[string]any{"b": int64(1), "a": "x"}, "{a=x, b=1}"},
		{"grid", [][]any{{"base", int64(200)}}, "[[base, 200]]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestValueJSONKeepsDateTag(t *testing.T) {
	got := valueJSON(map[string]any{"from": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.Contains(t, string(got), `"$date"`)
	assert.True(t, json.Valid(got))
}
