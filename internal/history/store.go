package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Run is one compilation snapshot.
type Run struct {
	RunID         string
	Timestamp     time.Time
	FileCount     int
	ClassCount    int
	InputBinds    int
	Operations    int
	OutputBinds   int
	MethodCalls   int
	ParallelOps   int
	SequentialOps int
	KernelFiles   int
	Warnings      int
	Errors        int
	Duration      time.Duration
}

// Store persists compilation runs in a local sqlite database.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun records one compilation run. A missing run id is generated; a
// missing timestamp defaults to now.
func (s *Store) SaveRun(run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(run.RunID) == "" {
		run.RunID = uuid.New().String()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	query := `
INSERT INTO runs (
  run_id, schema_version, ts_utc, file_count, class_count, input_bind_count,
  operation_count, output_bind_count, method_call_count, parallel_count,
  sequential_count, kernel_file_count, warning_count, error_count, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	err := s.withRetry("save run", func() error {
		_, err := s.db.Exec(
			query,
			run.RunID,
			SchemaVersion,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.FileCount,
			run.ClassCount,
			run.InputBinds,
			run.Operations,
			run.OutputBinds,
			run.MethodCalls,
			run.ParallelOps,
			run.SequentialOps,
			run.KernelFiles,
			run.Warnings,
			run.Errors,
			run.Duration.Milliseconds(),
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return run.RunID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
SELECT run_id, ts_utc, file_count, class_count, input_bind_count,
  operation_count, output_bind_count, method_call_count, parallel_count,
  sequential_count, kernel_file_count, warning_count, error_count, duration_ms
FROM runs ORDER BY ts_utc DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var ts string
		var durationMS int64
		if err := rows.Scan(
			&run.RunID, &ts, &run.FileCount, &run.ClassCount, &run.InputBinds,
			&run.Operations, &run.OutputBinds, &run.MethodCalls, &run.ParallelOps,
			&run.SequentialOps, &run.KernelFiles, &run.Warnings, &run.Errors, &durationMS,
		); err != nil {
			return nil, err
		}
		run.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) withRetry(label string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !strings.Contains(strings.ToLower(err.Error()), "busy") &&
			!strings.Contains(strings.ToLower(err.Error()), "locked") {
			break
		}
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", label, err)
}
