package ir

// Version constants for IR schema and engine.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// EngineVersion is the rule engine version recorded in the journal.
	EngineVersion = "0.1.0"
)
