package store

import (
	"context"
	"database/sql"
	"fmt"
)

const selectColumns = `
	SELECT id, seq, method, signature, args, env, args_digest, result, result_digest,
	       error_code, error_message, engine_version, ir_version
	FROM invocations`

// ReadInvocation retrieves a single invocation by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInvocation(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanRecord(row)
}

// ReadInvocations returns the invocations of one method, or of every
// method when method is empty. Results are ordered by seq ASC, id ASC.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadInvocations(ctx context.Context, method string) ([]Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if method == "" {
		rows, err = s.db.QueryContext(ctx, selectColumns+`
			ORDER BY seq ASC, id COLLATE BINARY ASC`)
	} else {
		rows, err = s.db.QueryContext(ctx, selectColumns+`
			WHERE method = ?
			ORDER BY seq ASC, id COLLATE BINARY ASC`, method)
	}
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return records, nil
}

// Methods returns the distinct journaled method names in sorted order.
func (s *Store) Methods(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT method FROM invocations ORDER BY method COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query methods: %w", err)
	}
	defer rows.Close()

	methods := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan method: %w", err)
		}
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate methods: %w", err)
	}
	return methods, nil
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
// Engines resume their clock from it.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM invocations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		r                 Record
		argsJSON, envJSON string
		resultJSON        sql.NullString
	)
	if err := sc.Scan(
		&r.ID, &r.Seq, &r.Method, &r.Signature, &argsJSON, &envJSON, &r.ArgsDigest,
		&resultJSON, &r.ResultDigest, &r.ErrorCode, &r.ErrorMessage,
		&r.EngineVersion, &r.IRVersion,
	); err != nil {
		return Record{}, err
	}

	var err error
	if r.Args, err = unmarshalArgs(argsJSON); err != nil {
		return Record{}, err
	}
	if r.Env, err = unmarshalEnv(envJSON); err != nil {
		return Record{}, err
	}
	if resultJSON.Valid {
		if r.Result, err = unmarshalResult(&resultJSON.String); err != nil {
			return Record{}, err
		}
	}
	return r, nil
}
