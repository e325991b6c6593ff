// Package sqlite implements internal/storage.Storage on SQLite, using the
// pure-Go/WASM driver so the daemon and CLI ship without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/cleo-dev/cleo/internal/clerr"
)

// Store implements storage.Storage on top of database/sql with the
// ncruces/go-sqlite3 driver.
type Store struct {
	db          *sql.DB
	txConn      *sql.Conn // set only on the per-transaction copy handed to RunInTransaction's fn
	dbPath      string
	connStr     string
	closed      atomic.Bool
	busyTimeout time.Duration
	readOnly    bool

	freshness   *FreshnessChecker
	reconnectMu sync.RWMutex
}

// conn returns the handle CRUD methods should issue queries against: the
// pinned transaction connection when this Store was obtained from
// RunInTransaction, otherwise the pooled connection.
func (s *Store) conn() execer {
	if s.txConn != nil {
		return s.txConn
	}
	return s.db
}

// withExec runs fn against the current connection/transaction after a
// freshness check, so every mutating method gets reconnect-on-replace for
// free without repeating the check at each call site.
func (s *Store) withExec(ctx context.Context, fn func(ex execer) error) error {
	s.checkFreshness()
	return fn(s.conn())
}

func setupWASMCache() {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "cleo", "wasm")
	}

	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

// Open creates or opens a CLEO store at path with a 30s busy timeout.
func Open(ctx context.Context, path string) (*Store, error) {
	return OpenWithTimeout(ctx, path, 30*time.Second)
}

// walVerifyAttempts and walVerifyBackoff bound verifyWALMode's
// read-back retry loop: running in delete journal mode under
// concurrency is a silent-data-loss bug, so a mismatch is retried a
// few times before the open is refused outright.
const (
	walVerifyAttempts = 3
	walVerifyBackoff  = 200 * time.Millisecond
)

// verifyWALMode issues PRAGMA journal_mode=WAL and reads the mode back,
// retrying up to walVerifyAttempts times with attempt*walVerifyBackoff
// delay between tries. It fails loudly rather than letting the store
// silently run in delete mode.
func verifyWALMode(db *sql.DB) error {
	var lastMode string
	var lastErr error
	for attempt := 1; attempt <= walVerifyAttempts; attempt++ {
		row := db.QueryRow("PRAGMA journal_mode=WAL")
		var mode string
		if err := row.Scan(&mode); err != nil {
			lastErr = err
		} else {
			lastMode = mode
			if strings.EqualFold(mode, "wal") {
				return nil
			}
			lastErr = nil
		}
		if attempt < walVerifyAttempts {
			time.Sleep(time.Duration(attempt) * walVerifyBackoff)
		}
	}
	if lastErr != nil {
		return clerr.Wrap(clerr.CodeFileError, clerr.ExitFileError, "enable WAL mode", lastErr)
	}
	return clerr.New(clerr.CodeFileError, clerr.ExitFileError,
		fmt.Sprintf("journal mode is %q after %d attempts, refusing to run without WAL", lastMode, walVerifyAttempts))
}

// OpenWithTimeout opens path with a configurable SQLITE_BUSY retry window.
// path == ":memory:" opens a private, single-connection database for tests.
func OpenWithTimeout(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	timeoutMs := int64(busyTimeout / time.Millisecond)

	var connStr string
	isInMemory := path == ":memory:"
	if isInMemory {
		connStr = fmt.Sprintf("file:memdb?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", timeoutMs)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		connStr = fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", path, timeoutMs)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, dbPath: path, connStr: connStr, busyTimeout: busyTimeout}
	s.configureConnectionPool(db)

	if !isInMemory {
		if err := verifyWALMode(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if !isInMemory {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve absolute path: %w", err)
		}
		s.dbPath = abs
	}
	return s, nil
}

// OpenReadOnly opens an existing database without schema init or migration,
// for commands that must never trigger a file-watcher by writing.
func OpenReadOnly(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	if path == ":memory:" {
		return nil, fmt.Errorf("read-only mode is not supported for in-memory databases")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database does not exist: %s", path)
	}

	timeoutMs := int64(busyTimeout / time.Millisecond)
	connStr := fmt.Sprintf("file:%s?mode=ro&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_time_format=sqlite", path, timeoutMs)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database read-only: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	return &Store{db: db, dbPath: abs, connStr: connStr, busyTimeout: busyTimeout, readOnly: true}, nil
}

func (s *Store) configureConnectionPool(db *sql.DB) {
	isInMemory := s.dbPath == ":memory:" || strings.Contains(s.connStr, "mode=memory")
	if isInMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	maxConns := runtime.NumCPU() + 1
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)
}

// Close checkpoints the WAL (for read-write connections) and closes the pool.
func (s *Store) Close() error {
	s.closed.Store(true)
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()
	if !s.readOnly {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// Path returns the absolute path to the backing file.
func (s *Store) Path() string { return s.dbPath }

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool { return s.closed.Load() }

// CheckpointWAL forces a full WAL checkpoint, e.g. before BackupTo.
func (s *Store) CheckpointWAL(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)")
	return wrapDBError("checkpoint WAL", err)
}

// EnableFreshnessChecking arms external-modification detection: reads will
// notice the backing file was replaced (e.g. by a `cleo release import`)
// and reconnect automatically. Implements storage.FreshnessChecker.
func (s *Store) EnableFreshnessChecking() {
	if s.dbPath == "" || s.dbPath == ":memory:" {
		return
	}
	s.freshness = NewFreshnessChecker(s.dbPath, s.reconnect)
}

// CheckFreshness implements storage.FreshnessChecker.
func (s *Store) CheckFreshness(ctx context.Context) (bool, error) {
	if s.freshness == nil {
		return false, nil
	}
	return s.freshness.Check(), nil
}

// Reconnect implements storage.FreshnessChecker.
func (s *Store) Reconnect(ctx context.Context) error {
	return s.reconnect()
}

func (s *Store) reconnect() error {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	if s.closed.Load() {
		return fmt.Errorf("store is closed")
	}

	db, err := sql.Open("sqlite3", s.connStr)
	if err != nil {
		return fmt.Errorf("open new connection: %w", err)
	}
	s.configureConnectionPool(db)

	if !strings.Contains(s.connStr, "mode=memory") {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping new connection: %w", err)
	}

	old := s.db
	s.db = db
	_ = old.Close()

	if s.freshness != nil {
		s.freshness.UpdateState()
	}
	return nil
}
