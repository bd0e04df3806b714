package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a journal from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order against journals whose user_version is lower.
var migrations = []migration{
	{1, "args digest index", `CREATE INDEX IF NOT EXISTS idx_invocations_args_digest
		ON invocations(args_digest)`},
	{2, "failed calls index", `CREATE INDEX IF NOT EXISTS idx_invocations_failed
		ON invocations(seq) WHERE error_code != ''`},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

const memoryPath = ":memory:"

// Store is the SQLite invocation journal.
type Store struct {
	db *sql.DB
}

// Option configures Open.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
}

// WithBusyTimeout sets how long a write waits for a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// Open creates or opens the journal at path and brings its schema up to
// date. ":memory:" opens a private in-memory journal.
//
// File journals run in WAL mode with synchronous=NORMAL; the pragmas are
// read back and Open fails if SQLite did not accept them.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.configure(path == memoryPath, o); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type pragma struct {
	name, value, want string
}

func (s *Store) configure(memory bool, o options) error {
	timeout := fmt.Sprint(o.busyTimeout.Milliseconds())
	pragmas := []pragma{{"busy_timeout", timeout, timeout}}
	if !memory {
		pragmas = append(pragmas,
			pragma{"journal_mode", "WAL", "wal"},
			pragma{"synchronous", "NORMAL", "1"},
		)
	}

	for _, p := range pragmas {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set %s: %w", p.name, err)
		}
		if err := s.verifyPragma(p.name, p.want); err != nil {
			return err
		}
	}
	return nil
}

// migrate applies the base schema, then every migration newer than the
// journal's user_version, in one transaction.
func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
	}
	if version < currentSchemaVersion {
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return tx.Commit()
}

// verifyPragma reads a pragma back and compares it case-insensitively.
func (s *Store) verifyPragma(name, want string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !strings.EqualFold(value, want) {
		return fmt.Errorf("%s = %q, expected %q", name, value, want)
	}
	return nil
}
