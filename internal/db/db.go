package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// DB wraps the database connection and the directory holding attachment bytes
type DB struct {
	*sql.DB
	filesDir string
	filesURL string
}

// Options configures where the store keeps its data
type Options struct {
	Path     string // sqlite file, defaults to DefaultPath()
	FilesDir string // attachment bytes, defaults to a "files" dir next to the database
	FilesURL string // base URL attachments are served from; file:// URLs when empty
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// New creates a new database connection and initializes the schema
func New(opts Options) (*DB, error) {
	dbPath := opts.Path
	if dbPath == "" {
		var err error
		if dbPath, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	filesDir := opts.FilesDir
	if filesDir == "" {
		filesDir = filepath.Join(filepath.Dir(dbPath), "files")
	}
	filesDir, err := filepath.Abs(filesDir)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(filesDir, 0755); err != nil {
		return nil, fmt.Errorf("create files dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, filesDir: filesDir, filesURL: opts.FilesURL}, nil
}

// DefaultPath returns the path to the database file
func DefaultPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskboard.db"), nil
}

// DataDir returns the application data directory, creating it if needed
func DataDir() (string, error) {
	// Use XDG data directory or fallback to home directory
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}

	appDir := filepath.Join(dataDir, "taskboard")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", err
	}
	return appDir, nil
}

// GetSetting retrieves a setting value by key
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// FileURL resolves the retrieval URL of a stored attachment path
func (db *DB) FileURL(path string) string {
	if db.filesURL != "" {
		u, err := url.JoinPath(db.filesURL, path)
		if err == nil {
			return u
		}
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(db.filesDir, path))}).String()
}

func (db *DB) blobPath(path string) string {
	return filepath.Join(db.filesDir, filepath.FromSlash(path))
}

// now returns the store clock; timestamps are assigned here, never by clients
func now() time.Time {
	return time.Now().UTC()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// affected turns an UPDATE/DELETE that touched no rows into sql.ErrNoRows
func affected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
