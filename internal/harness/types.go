package harness

// TraceEvent is one executed call.
type TraceEvent struct {
	Seq          int64          `json:"seq"`
	InvocationID string         `json:"id"`
	Method       string         `json:"method"`
	Signature    string         `json:"signature,omitempty"`
	Args         []any          `json:"args"`
	Env          map[string]any `json:"env,omitempty"`
	Value        any            `json:"value,omitempty"`
	// Error is the error code of a failed call.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{
		"seq":    e.Seq,
		"id":     e.InvocationID,
		"method": e.Method,
		"args":   []any{},
	}
	if e.Args != nil {
		m["args"] = e.Args
	}
	if e.Signature != "" {
		m["signature"] = e.Signature
	}
	if len(e.Env) > 0 {
		m["env"] = e.Env
	}
	if e.Error != "" {
		m["error"] = e.Error
	} else {
		m["value"] = e.Value
	}
	return m
}
