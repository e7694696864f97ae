// Package store persists download records in SQLite. The server and the cron
// cleanup binary open the same database file, so records survive restarts and
// the sweep can run without the server.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vegeteria/ytdownloader/internal/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id TEXT PRIMARY KEY,
	video_id TEXT,
	title TEXT,
	filepath TEXT,
	duration_seconds INTEGER,
	expiry_unix INTEGER,
	format_info TEXT,
	status TEXT,
	created_unix INTEGER
)`

// Store wraps the downloads database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer at a time; the server and cron sweep may
	// overlap, so keep a single connection and let busy_timeout arbitrate.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a download record.
func (s *Store) Save(rec *model.DownloadRecord) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO downloads
		(id, video_id, title, filepath, duration_seconds, expiry_unix, format_info, status, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VideoID, rec.Title, rec.FilePath, rec.DurationS,
		rec.ExpiryUnix, rec.FormatInfo, rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record with the given id, or nil when absent.
func (s *Store) Get(id string) (*model.DownloadRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, video_id, title, filepath, duration_seconds, expiry_unix, format_info, status, created_unix
		FROM downloads WHERE id = ?`, id)

	rec := &model.DownloadRecord{}
	err := row.Scan(&rec.ID, &rec.VideoID, &rec.Title, &rec.FilePath, &rec.DurationS,
		&rec.ExpiryUnix, &rec.FormatInfo, &rec.Status, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// ListExpired returns all records whose expiry is before now.
func (s *Store) ListExpired(now time.Time) ([]*model.DownloadRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, video_id, title, filepath, duration_seconds, expiry_unix, format_info, status, created_unix
		FROM downloads WHERE expiry_unix < ?`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	defer rows.Close()

	var records []*model.DownloadRecord
	for rows.Next() {
		rec := &model.DownloadRecord{}
		if err := rows.Scan(&rec.ID, &rec.VideoID, &rec.Title, &rec.FilePath, &rec.DurationS,
			&rec.ExpiryUnix, &rec.FormatInfo, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes the record with the given id.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM downloads WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// Count returns the number of tracked records.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM downloads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
