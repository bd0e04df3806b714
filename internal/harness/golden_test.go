package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_Scenarios(t *testing.T) {
	for _, path := range []string{
		"testdata/scenarios/premium.yaml",
		"testdata/scenarios/quote.yaml",
	} {
		t.Run(path, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestTraceJSON_Canonical(t *testing.T) {
	result := &Result{Trace: []TraceEvent{
		{Seq: 1, InvocationID: "inv-0001", Method: "m", Signature: "m()", Value: nil},
		{Seq: 2, InvocationID: "inv-0002", Method: "m", Args: []any{int64(1)}, Env: map[string]any{"b": "x", "a": true}, Error: "EXECUTION"},
	}}
	data, err := TraceJSON("canon", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario":"canon","trace":[`+
			`{"args":[],"id":"inv-0001","method":"m","seq":1,"signature":"m()","value":null},`+
			`{"args":[1],"env":{"a":true,"b":"x"},"error":"EXECUTION","id":"inv-0002","method":"m","seq":2}]}`,
		string(data))
}
