package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// GoldenDir holds golden traces relative to the test's package directory.
const GoldenDir = "testdata/golden"

// TraceJSON renders a scenario trace as canonical JSON.
func TraceJSON(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, event := range result.Trace {
		trace[i] = event.canonical()
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"trace":    trace,
	})
}

// RunWithGolden executes a scenario and compares its trace with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := TraceJSON(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
