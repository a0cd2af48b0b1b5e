package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/openfroyo/vtyctl/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStore is the SQLite backed run journal.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ engine.Journal = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	// Path is the database file, or ":memory:".
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime = 1, 1, 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Open creates, initializes and migrates a store at path.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	s, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database with foreign keys and WAL mode enabled.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	if s.cfg.Path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// StartRun implements engine.Journal. The run row and its configuration
// snapshot are written in one transaction.
func (s *SQLiteStore) StartRun(ctx context.Context, run *engine.RunResult, runningConfig string) error {
	digest := engine.Digest(runningConfig)
	now := time.Now().UTC()

	var summary engine.PlanSummary
	var planID string
	if run.Plan != nil {
		summary, planID = run.Plan.Summary, run.Plan.ID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (target, digest, config, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (target, digest) DO UPDATE SET last_seen = excluded.last_seen
	`, run.Target, digest, runningConfig, now, now)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, target, status, plan_id, config_digest, creates, updates, deletes, commands, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.Target,
		string(run.Status),
		planID,
		digest,
		summary.Create,
		summary.Update,
		summary.Delete,
		summary.Commands,
		run.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return tx.Commit()
}

// RecordChange implements engine.Journal.
func (s *SQLiteStore) RecordChange(ctx context.Context, runID string, rp engine.ResourcePlan, result engine.ApplyResult) error {
	commands, err := json.Marshal(nonNil(result.Commands))
	if err != nil {
		return fmt.Errorf("failed to encode commands: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO changes (run_id, resource, kind, operation, status, commands, error, duration_ns, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		rp.ID,
		string(rp.Kind),
		string(result.Operation),
		string(result.Status),
		string(commands),
		nullString(result.Error),
		int64(result.Duration),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record change: %w", err)
	}
	return nil
}

// FinishRun implements engine.Journal.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *engine.RunResult) error {
	completedAt := run.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, completed_at = ?, error = ?
		WHERE id = ?
	`, string(run.Status), completedAt.UTC(), nullString(run.Error), run.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", run.RunID, ErrNotFound)
	}

	return nil
}

const runColumns = `id, target, status, plan_id, config_digest, creates, updates, deletes, commands, started_at, completed_at, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := row.Scan(
		&run.ID,
		&run.Target,
		&status,
		&run.PlanID,
		&run.ConfigDigest,
		&run.Summary.Create,
		&run.Summary.Update,
		&run.Summary.Delete,
		&run.Summary.Commands,
		&run.StartedAt,
		&completedAt,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}

	run.Status = engine.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	return run, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	var where []string
	var args []any
	if filter.Target != "" {
		where = append(where, "target = ?")
		args = append(args, filter.Target)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// ListChanges returns the changes of a run in the order they were applied.
func (s *SQLiteStore) ListChanges(ctx context.Context, runID string) ([]*Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, resource, kind, operation, status, commands, error, duration_ns, recorded_at
		FROM changes
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer rows.Close()

	changes := []*Change{}
	for rows.Next() {
		c := &Change{}
		var operation, status, commands string
		var errMsg sql.NullString
		var duration int64

		if err := rows.Scan(&c.ID, &c.RunID, &c.Resource, &c.Kind, &operation, &status, &commands, &errMsg, &duration, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		if err := json.Unmarshal([]byte(commands), &c.Commands); err != nil {
			return nil, fmt.Errorf("failed to decode commands of change %d: %w", c.ID, err)
		}
		c.Operation = engine.OperationType(operation)
		c.Status = engine.ChangeStatus(status)
		c.Duration = time.Duration(duration)
		if errMsg.Valid {
			c.Error = &errMsg.String
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}

	return changes, nil
}

// GetSnapshot returns the configuration a target had when it hashed to
// digest.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, target, digest string) (*Snapshot, error) {
	snap := &Snapshot{}
	err := s.db.QueryRowContext(ctx, `
		SELECT target, digest, config, first_seen, last_seen
		FROM snapshots
		WHERE target = ? AND digest = ?
	`, target, digest).Scan(&snap.Target, &snap.Digest, &snap.Config, &snap.FirstSeen, &snap.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s of %s: %w", digest, target, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return snap, nil
}

// LastDigest returns the configuration digest recorded by the most recent
// run of target, or "" when there is none.
func (s *SQLiteStore) LastDigest(ctx context.Context, target string) (string, error) {
	var digest string
	err := s.db.QueryRowContext(ctx, `
		SELECT config_digest FROM runs
		WHERE target = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, target).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last digest: %w", err)
	}
	return digest, nil
}

// PruneRuns deletes runs that started before cutoff together with their
// changes, and snapshots no remaining run refers to.
func (s *SQLiteStore) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE NOT EXISTS (
			SELECT 1 FROM runs
			WHERE runs.target = snapshots.target AND runs.config_digest = snapshots.digest
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}

	return pruned, tx.Commit()
}

// HealthCheck verifies the database is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
