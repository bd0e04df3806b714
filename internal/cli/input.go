package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/izubarev/openl-tablets-sub004/internal/engine"
	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// parseArgs reads a JSON array of call arguments. Dates are written as
// {"$date": "2025-01-01"}. An empty string means no arguments.
func parseArgs(s string) ([]any, error) {
	if s == "" {
		return nil, nil
	}
	v, err := ir.UnmarshalValue([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("--args: %w", err)
	}
	args, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("--args: expected a JSON array, got %s", ir.TypeOf(v))
	}
	return args, nil
}

// parseEnv reads a JSON object of env values.
func parseEnv(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	v, err := ir.UnmarshalValue([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("--env: %w", err)
	}
	env, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("--env: expected a JSON object, got %s", ir.TypeOf(v))
	}
	return env, nil
}

// readBatch loads a YAML or JSON list of requests. Values go through the
// canonical JSON reader so both formats accept {"$date": ...}.
func readBatch(path string) ([]engine.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reqs []engine.Request
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range reqs {
		if reqs[i].Method == "" {
			return nil, fmt.Errorf("%s: request %d: method is required", path, i)
		}
		args, err := normalizeInput(reqs[i].Args)
		if err != nil {
			return nil, fmt.Errorf("%s: request %d: args: %w", path, i, err)
		}
		env, err := normalizeInput(reqs[i].Env)
		if err != nil {
			return nil, fmt.Errorf("%s: request %d: env: %w", path, i, err)
		}
		reqs[i].Args, _ = args.([]any)
		reqs[i].Env, _ = env.(map[string]any)
	}
	return reqs, nil
}

func normalizeInput(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return ir.UnmarshalValue(data)
}
