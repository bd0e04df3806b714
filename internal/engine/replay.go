package engine

import (
	"context"
	"fmt"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/store"
)

// Mismatch describes one journaled call whose outcome changed.
type Mismatch struct {
	ID     string
	Seq    int64
	Method string
	// Expected and Actual hold a result digest or an error code.
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s #%d (%s): expected %s, got %s", m.Method, m.Seq, m.ID, m.Expected, m.Actual)
}

// ReplayReport summarizes a replay run.
type ReplayReport struct {
	Total      int
	Matched    int
	Mismatches []Mismatch
}

// Replay re-runs journaled calls in the given order under their original IDs
// and compares outcomes: a successful call must reproduce its result digest,
// a failed one its error code. Replayed calls are not journaled again.
//
// The report is always returned; the error is a ReplayMismatchError when
// any call diverged, or the context error.
func (e *Engine) Replay(ctx context.Context, records []store.Record) (ReplayReport, error) {
	report := ReplayReport{Total: len(records)}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := e.call(ctx, r.ID, r.Method, r.Args, r.Env, false)
		expected, actual := expectedOutcome(r), ""
		if err != nil {
			actual = "error " + ErrorCode(err)
		} else {
			digest, derr := ir.ResultDigest(res.Value)
			if derr != nil {
				actual = "error " + derr.Error()
			} else {
				actual = digest
			}
		}

		if expected == actual {
			report.Matched++
			continue
		}
		report.Mismatches = append(report.Mismatches, Mismatch{
			ID:       r.ID,
			Seq:      r.Seq,
			Method:   r.Method,
			Expected: expected,
			Actual:   actual,
		})
	}

	e.logger.Info("replay finished",
		"total", report.Total,
		"matched", report.Matched,
		"mismatches", len(report.Mismatches),
	)
	if len(report.Mismatches) > 0 {
		return report, &ReplayMismatchError{Mismatches: report.Mismatches}
	}
	return report, nil
}

func expectedOutcome(r store.Record) string {
	if r.Failed() {
		return "error " + r.ErrorCode
	}
	if r.ResultDigest != "" {
		return r.ResultDigest
	}
	digest, err := ir.ResultDigest(r.Result)
	if err != nil {
		return "error " + err.Error()
	}
	return digest
}
