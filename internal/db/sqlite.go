package db

import (
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/openpalette/quill/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// sessionsKey names the single record holding the serialized session
// collection. The whole collection is overwritten on every change.
const sessionsKey = "sessions"

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "applying schema")
	}

	return &Database{db: db}, nil
}

// LoadSessions reads the session collection record. A missing record is
// not an error; it yields a nil collection.
func (db *Database) LoadSessions() ([]models.Session, error) {
	var value string
	err := db.db.QueryRow("SELECT value FROM state WHERE key = ?", sessionsKey).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading session record")
	}

	var sessions []models.Session
	if err := json.Unmarshal([]byte(value), &sessions); err != nil {
		return nil, errors.Wrap(err, "decoding session record")
	}
	return sessions, nil
}

// SaveSessions overwrites the session collection record with a snapshot
// of the full collection.
func (db *Database) SaveSessions(sessions []models.Session) error {
	value, err := json.Marshal(sessions)
	if err != nil {
		return errors.Wrap(err, "encoding session record")
	}

	const query = `
        INSERT INTO state (key, value, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	if _, err := db.db.Exec(query, sessionsKey, string(value)); err != nil {
		return errors.Wrap(err, "writing session record")
	}
	return nil
}

func (db *Database) Close() error {
	return db.db.Close()
}
