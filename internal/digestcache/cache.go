package digestcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dcpkit/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS digests (
	path       TEXT PRIMARY KEY,
	size       INTEGER NOT NULL,
	mtime_ns   INTEGER NOT NULL,
	digest     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Cache is a SQLite-backed digest store. It is safe for use by several
// processes at once.
type Cache struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or opens the cache database at path.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	logger = logging.NewComponentLogger(logger, "digestcache")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	logger.Debug("digest cache opened", logging.String(logging.FieldPath, path))
	return &Cache{db: db, path: path, logger: logger}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the database location.
func (c *Cache) Path() string { return c.path }

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Lookup returns the stored digest for path when size and modTime still
// match.
func (c *Cache) Lookup(path string, size int64, modTime time.Time) (string, bool, error) {
	ctx := context.Background()
	var digest string
	err := retryOnBusy(ctx, func() error {
		return c.db.QueryRowContext(ctx,
			`SELECT digest FROM digests WHERE path = ? AND size = ? AND mtime_ns = ?`,
			absPath(path), size, modTime.UnixNano(),
		).Scan(&digest)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup digest: %w", err)
	}
	return digest, true, nil
}

// Store records digest for path at the given size and modTime, replacing
// any earlier entry.
func (c *Cache) Store(path string, size int64, modTime time.Time, digest string) error {
	ctx := context.Background()
	err := retryOnBusy(ctx, func() error {
		_, err := c.db.ExecContext(ctx,
			`INSERT INTO digests (path, size, mtime_ns, digest, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET
			   size = excluded.size,
			   mtime_ns = excluded.mtime_ns,
			   digest = excluded.digest,
			   updated_at = excluded.updated_at`,
			absPath(path), size, modTime.UnixNano(), digest, time.Now().UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("store digest: %w", err)
	}
	c.logger.Debug("digest cached", logging.String(logging.FieldPath, path))
	return nil
}

// Prune removes entries whose files no longer exist and returns how many
// were removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT path FROM digests`)
	if err != nil {
		return 0, fmt.Errorf("list digests: %w", err)
	}
	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, err
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			stale = append(stale, path)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	for _, path := range stale {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM digests WHERE path = ?`, path); err != nil {
			return 0, fmt.Errorf("delete digest: %w", err)
		}
	}
	if len(stale) > 0 {
		c.logger.Info("pruned stale digests", logging.Int("count", len(stale)))
	}
	return len(stale), nil
}
