package store

import (
	"fmt"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// marshalValue converts a runtime value to canonical JSON TEXT for storage.
func marshalValue(what string, v any) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

// unmarshalArgs parses stored args. Empty text is an empty argument list.
func unmarshalArgs(data string) ([]any, error) {
	if data == "" {
		return []any{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	args, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal args: expected array, got %s", ir.TypeOf(v))
	}
	return args, nil
}

// unmarshalEnv parses stored env values.
func unmarshalEnv(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal env: %w", err)
	}
	env, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal env: expected object, got %s", ir.TypeOf(v))
	}
	return env, nil
}

// unmarshalResult parses a stored result. A NULL column means the call
// failed and had no result.
func unmarshalResult(data *string) (any, error) {
	if data == nil {
		return nil, nil
	}
	v, err := ir.UnmarshalValue([]byte(*data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return v, nil
}
