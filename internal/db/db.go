package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dbFile = "recall.db"

// DB wraps the local sqlite database holding synchronized records, the
// outbound change queue, sync state and recorded conflicts.
type DB struct {
	conn    *sql.DB
	baseDir string
}

// Open opens an existing database and runs any pending migrations.
func Open(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'recall-sync init' first")
	}

	return open(baseDir, dbPath, false)
}

// Initialize creates the database (and its directory) and runs migrations.
func Initialize(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return open(baseDir, dbPath, true)
}

func open(baseDir, dbPath string, create bool) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL allows concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Busy timeout as fallback protection (matches write-lock timeout)
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Slightly faster writes, still safe with WAL
	conn.Exec("PRAGMA synchronous=NORMAL")

	db := &DB{conn: conn, baseDir: baseDir}

	if create {
		if _, err := conn.Exec(schema); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	if _, err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// BaseDir returns the directory holding the database file.
func (db *DB) BaseDir() string {
	return db.baseDir
}

// Conn returns the underlying *sql.DB for use in transactions
// (e.g. by the sync engine which applies pulled changes atomically).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// withWriteLock executes fn while holding an exclusive cross-process write lock.
func (db *DB) withWriteLock(fn func() error) error {
	locker := newWriteLocker(db.baseDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}
