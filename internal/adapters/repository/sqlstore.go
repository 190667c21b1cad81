package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/okian/watchlog/pkg/logger"
	"github.com/okian/watchlog/pkg/metrics"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const sqlTimeLayout = "2006-01-02 15:04:05"

// SQLStore is a Store backed by SQLite.
type SQLStore struct {
	db   *sql.DB
	opts storeOptions
}

// OpenSQLStore opens (creating if needed) the database at path and applies
// pending migrations. Use ":memory:" for a private in-memory database.
func OpenSQLStore(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: opening database %s: %w", path, err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, o.logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, opts: o}
	s.updateGauges(ctx)
	return s, nil
}

// runMigrations applies all pending schema migrations to the database.
func runMigrations(ctx context.Context, db *sql.DB, log logger.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("repository: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("repository: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("repository: running migrations: %w", err)
	}

	for _, r := range results {
		log.Info(ctx, "applied migration",
			logger.String("migration", r.Source.Path),
			logger.Duration("duration_ms", r.Duration),
		)
	}
	return nil
}

// ListWatches implements Store.
func (s *SQLStore) ListWatches(ctx context.Context) ([]Watch, error) {
	defer observe("list_watches", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT w.watch_id, w.name, w.date_of_creation, l.cycle
		FROM watches w
		LEFT JOIN (SELECT DISTINCT watch_id, cycle FROM logs) l ON l.watch_id = w.watch_id
		ORDER BY w.watch_id, l.cycle`)
	if err != nil {
		return nil, fmt.Errorf("repository: listing watches: %w", err)
	}
	defer rows.Close()

	out := []Watch{}
	for rows.Next() {
		var (
			id      int64
			name    string
			created string
			cycle   sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &created, &cycle); err != nil {
			return nil, fmt.Errorf("repository: scanning watch: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != id {
			out = append(out, Watch{ID: id, Name: name, CreatedAt: parseSQLTime(created), Cycles: []int{}})
		}
		if cycle.Valid {
			last := &out[len(out)-1]
			last.Cycles = append(last.Cycles, int(cycle.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterating watches: %w", err)
	}
	return out, nil
}

// CreateWatch implements Store.
func (s *SQLStore) CreateWatch(ctx context.Context, name string) (Watch, error) {
	defer observe("create_watch", time.Now())
	name = strings.TrimSpace(name)
	if name == "" {
		return Watch{}, ErrEmptyName
	}

	created := s.opts.now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO watches (name, date_of_creation) VALUES (?, ?)`,
		name, created.Format(sqlTimeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return Watch{}, ErrDuplicateWatch
		}
		return Watch{}, fmt.Errorf("repository: creating watch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Watch{}, fmt.Errorf("repository: reading watch id: %w", err)
	}
	s.updateGauges(ctx)
	return Watch{ID: id, Name: name, CreatedAt: created, Cycles: []int{}}, nil
}

// DeleteWatch implements Store.
func (s *SQLStore) DeleteWatch(ctx context.Context, id int64) error {
	defer observe("delete_watch", time.Now())
	return s.deleteOne(ctx, `DELETE FROM watches WHERE watch_id = ?`, id)
}

// ListLogs implements Store.
func (s *SQLStore) ListLogs(ctx context.Context, watchID int64, cycle int) ([]Log, error) {
	defer observe("list_logs", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, watch_id, cycle, timedate, measure
		FROM logs
		WHERE watch_id = ? AND cycle = ?
		ORDER BY timedate, log_id`, watchID, cycle)
	if err != nil {
		return nil, fmt.Errorf("repository: listing logs: %w", err)
	}
	defer rows.Close()

	out := []Log{}
	for rows.Next() {
		var (
			l  Log
			at string
		)
		if err := rows.Scan(&l.ID, &l.WatchID, &l.Cycle, &at, &l.Measure); err != nil {
			return nil, fmt.Errorf("repository: scanning log: %w", err)
		}
		l.At = parseSQLTime(at)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: iterating logs: %w", err)
	}
	return out, nil
}

// AddLog implements Store.
func (s *SQLStore) AddLog(ctx context.Context, watchID int64, cycle int, at time.Time, measure float64) (Log, error) {
	defer observe("add_log", time.Now())
	if cycle < 0 {
		return Log{}, ErrNegativeCycle
	}

	at = at.UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (watch_id, cycle, timedate, measure) VALUES (?, ?, ?, ?)`,
		watchID, cycle, at.Format(sqlTimeLayout), measure)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Log{}, ErrWatchNotFound
		}
		return Log{}, fmt.Errorf("repository: adding log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Log{}, fmt.Errorf("repository: reading log id: %w", err)
	}
	s.updateGauges(ctx)
	return Log{ID: id, WatchID: watchID, Cycle: cycle, At: at, Measure: measure}, nil
}

// DeleteLog implements Store.
func (s *SQLStore) DeleteLog(ctx context.Context, id int64) error {
	defer observe("delete_log", time.Now())
	return s.deleteOne(ctx, `DELETE FROM logs WHERE log_id = ?`, id)
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context) (int, int, error) {
	var watches, logs int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM watches), (SELECT COUNT(*) FROM logs)`).Scan(&watches, &logs)
	if err != nil {
		return 0, 0, fmt.Errorf("repository: counting: %w", err)
	}
	return watches, logs, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) deleteOne(ctx context.Context, query string, id int64) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("repository: deleting %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.updateGauges(ctx)
	return nil
}

func (s *SQLStore) updateGauges(ctx context.Context) {
	watches, logs, err := s.Count(ctx)
	if err != nil {
		s.opts.logger.Warn(ctx, "count failed", logger.Error(err))
		return
	}
	metrics.UpdateRepositoryWatches(watches)
	metrics.UpdateRepositoryMeasurements(logs)
}

func parseSQLTime(s string) time.Time {
	t, err := time.ParseInLocation(sqlTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Constraint failures are matched on the driver's message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
