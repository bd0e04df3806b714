package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// Scenario is a conformance scenario: a rule project, a list of calls with
// expected outcomes, and assertions over the resulting trace.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Project is a directory of CUE files, relative to the scenario file.
	Project string `yaml:"project,omitempty"`

	// Source is an inline CUE project. Exactly one of Project and Source
	// must be set.
	Source string `yaml:"source,omitempty"`

	Calls      []CallStep  `yaml:"calls"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// CallStep is one engine call.
type CallStep struct {
	Method string         `yaml:"method"`
	Args   []any          `yaml:"args"`
	Env    map[string]any `yaml:"env,omitempty"`

	// Expect is checked when present.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a call: a value, or an error code.
type Expect struct {
	Value any    `yaml:"value,omitempty"`
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the journal.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Method is used by trace_contains, trace_count, journal_count.
	Method string `yaml:"method,omitempty"`

	// Args is the exact argument list for trace_contains. Empty matches any.
	Args []any `yaml:"args,omitempty"`

	// Methods is the expected call order for trace_order.
	Methods []string `yaml:"methods,omitempty"`

	// Count is used by trace_count and journal_count.
	Count int `yaml:"count,omitempty"`

	// Call (1-based) and Signature are used by resolved_to.
	Call      int    `yaml:"call,omitempty"`
	Signature string `yaml:"signature,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertResolvedTo    = "resolved_to"
	AssertJournalCount  = "journal_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and Project is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Project != "" && !filepath.IsAbs(s.Project) {
		s.Project = filepath.Join(filepath.Dir(path), s.Project)
	}
	if s.Project != "" {
		if _, err := os.Stat(s.Project); err != nil {
			return nil, fmt.Errorf("%s: project: %w", path, err)
		}
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML. Values are normalized
// to engine values; {"$date": "..."} maps become dates.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) normalize() error {
	for i := range s.Calls {
		c := &s.Calls[i]
		args, err := decodeValue(c.Args)
		if err != nil {
			return fmt.Errorf("calls[%d].args: %w", i, err)
		}
		c.Args, _ = args.([]any)

		if c.Env != nil {
			env, err := decodeValue(c.Env)
			if err != nil {
				return fmt.Errorf("calls[%d].env: %w", i, err)
			}
			c.Env, _ = env.(map[string]any)
		}
		if c.Expect != nil && c.Expect.Value != nil {
			if c.Expect.Value, err = decodeValue(c.Expect.Value); err != nil {
				return fmt.Errorf("calls[%d].expect.value: %w", i, err)
			}
		}
	}
	for i := range s.Assertions {
		args, err := decodeValue(s.Assertions[i].Args)
		if err != nil {
			return fmt.Errorf("assertions[%d].args: %w", i, err)
		}
		s.Assertions[i].Args, _ = args.([]any)
	}
	return nil
}

// decodeValue maps a YAML-decoded value onto engine values through the
// canonical JSON reader.
func decodeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return ir.UnmarshalValue(data)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if (s.Project == "") == (s.Source == "") {
		return fmt.Errorf("exactly one of project and source is required")
	}
	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required and must be non-empty")
	}
	for i, c := range s.Calls {
		if c.Method == "" {
			return fmt.Errorf("calls[%d]: method is required", i)
		}
		if c.Expect != nil && c.Expect.Value != nil && c.Expect.Error != "" {
			return fmt.Errorf("calls[%d].expect: value and error are exclusive", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, len(s.Calls)); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, calls int) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains, AssertTraceCount:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: %s requires method", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Methods) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order requires at least 2 methods", index)
		}
	case AssertResolvedTo:
		if a.Call < 1 || a.Call > calls {
			return fmt.Errorf("assertions[%d]: resolved_to call must be in [1, %d]", index, calls)
		}
		if a.Signature == "" {
			return fmt.Errorf("assertions[%d]: resolved_to requires signature", index)
		}
	case AssertJournalCount:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
