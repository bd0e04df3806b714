package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
)

// Record is one journaled invocation.
type Record struct {
	ID        string
	Seq       int64
	Method    string
	Signature string
	Args      []any
	Env       map[string]any

	// ArgsDigest is ir.ArgsDigest(Method, Args). WriteInvocation fills it
	// when empty.
	ArgsDigest string

	// Result is set when the call succeeded.
	Result       any
	ResultDigest string

	ErrorCode    string
	ErrorMessage string

	EngineVersion string
	IRVersion     string
}

// Failed reports whether the invocation ended with an error.
func (r Record) Failed() bool {
	return r.ErrorCode != "" || r.ErrorMessage != ""
}

// WriteInvocation inserts an invocation record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
//
// Args, env and result are serialized to canonical JSON for deterministic
// replay.
func (s *Store) WriteInvocation(ctx context.Context, r Record) error {
	if r.Args == nil {
		r.Args = []any{}
	}
	argsJSON, err := marshalValue("args", slices.Clone(r.Args))
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	envJSON, err := marshalValue("env", r.Env)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	if r.ArgsDigest == "" {
		if r.ArgsDigest, err = ir.ArgsDigest(r.Method, r.Args); err != nil {
			return fmt.Errorf("write invocation: %w", err)
		}
	}

	var resultJSON *string
	if !r.Failed() {
		data, err := marshalValue("result", r.Result)
		if err != nil {
			return fmt.Errorf("write invocation: %w", err)
		}
		resultJSON = &data
		if r.ResultDigest == "" {
			if r.ResultDigest, err = ir.ResultDigest(r.Result); err != nil {
				return fmt.Errorf("write invocation: %w", err)
			}
		}
	}

	if r.EngineVersion == "" {
		r.EngineVersion = ir.EngineVersion
	}
	if r.IRVersion == "" {
		r.IRVersion = ir.IRVersion
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, seq, method, signature, args, env, args_digest, result, result_digest,
		 error_code, error_message, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.Seq,
		r.Method,
		r.Signature,
		argsJSON,
		envJSON,
		r.ArgsDigest,
		resultJSON,
		r.ResultDigest,
		r.ErrorCode,
		r.ErrorMessage,
		r.EngineVersion,
		r.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	return nil
}
