package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDocument persists the document as a single JSON row in a SQLite
// database. It is the same whole-document snapshot as JSONFile, kept in a
// database file.
type SQLiteDocument struct {
	db   *sql.DB
	path string
}

// OpenSQLiteDocument opens (creating if needed) the database at path.
func OpenSQLiteDocument(path string) (*SQLiteDocument, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	const ddl = `CREATE TABLE IF NOT EXISTS store_document (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  body TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table store_document: %w", err)
	}

	return &SQLiteDocument{db: db, path: path}, nil
}

// Location returns the database path.
func (p *SQLiteDocument) Location() string {
	return "sqlite:" + p.path
}

// Load reads the saved document row.
func (p *SQLiteDocument) Load(ctx context.Context) (Document, error) {
	var body string
	err := p.db.QueryRowContext(ctx, "SELECT body FROM store_document WHERE id = 1").Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return decodeDocument(p.Location(), []byte(body))
}

// Save upserts the document row.
func (p *SQLiteDocument) Save(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `INSERT INTO store_document (id, body, updated_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Close closes the database.
func (p *SQLiteDocument) Close() error {
	return p.db.Close()
}
