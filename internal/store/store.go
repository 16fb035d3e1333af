package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAttemptRejected is returned when a submission's precondition
// (active assignment with attempts left) no longer holds.
var ErrAttemptRejected = errors.New("attempt rejected")

type Store struct {
	db     *sql.DB
	driver string
}

// New opens the database and applies the schema.
func New(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection serializes writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		public_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		class_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		class_name TEXT NOT NULL,
		topic TEXT NOT NULL,
		exam_date TIMESTAMP NOT NULL,
		duration_minutes INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		option_a TEXT NOT NULL,
		option_b TEXT NOT NULL,
		option_c TEXT NOT NULL,
		option_d TEXT NOT NULL,
		correct_option INTEGER NOT NULL CHECK (correct_option BETWEEN 0 AND 3)
	);

	CREATE TABLE IF NOT EXISTS assignments (
		exam_id TEXT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
		student_id TEXT NOT NULL REFERENCES users(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		submitted BOOLEAN NOT NULL DEFAULT FALSE,
		attempts INTEGER NOT NULL DEFAULT 0 CHECK (attempts BETWEEN 0 AND 3),
		started_at TIMESTAMP,
		assigned_at TIMESTAMP NOT NULL,
		PRIMARY KEY (exam_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		attempt_number INTEGER NOT NULL DEFAULT 0,
		answers TEXT NOT NULL DEFAULT '{}',
		score INTEGER,
		total INTEGER NOT NULL DEFAULT 0,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		reviewed_by TEXT,
		status TEXT NOT NULL DEFAULT 'assigned',
		submitted_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_questions_exam ON questions(exam_id, position);
	CREATE INDEX IF NOT EXISTS idx_assignments_student ON assignments(student_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_pair ON attempts(exam_id, student_id);
	CREATE INDEX IF NOT EXISTS idx_attempts_student ON attempts(student_id, is_published);
	`
	_, err := s.db.Exec(schema)
	return err
}

// q rebinds ? placeholders to $n for postgres.
func (s *Store) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func now() time.Time {
	return time.Now().UTC()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
