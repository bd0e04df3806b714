// Package harness runs conformance scenarios against the rule engine.
//
// A scenario is a YAML file naming a CUE project and a list of calls:
//
//	name: premium_by_state
//	project: ../projects/insurance
//	calls:
//	  - method: premium
//	    args: [20]
//	    env: {state: CA}
//	    expect: {value: 350}
//	  - method: premium
//	    args: ["old"]
//	    expect: {error: NO_APPLICABLE_METHOD}
//	assertions:
//	  - {type: resolved_to, call: 1, signature: "premium(int)"}
//
// Run compiles and links the project, then calls through a real engine with
// a deterministic clock, sequential invocation IDs (inv-0001, ...) and an
// in-memory journal. The trace is therefore byte-stable across runs and is
// compared with golden files by RunWithGolden.
package harness
