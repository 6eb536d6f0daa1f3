package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps progress in a local sqlite file.
type SQLiteStore struct {
	DB *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS tour_progress (
			tour_key TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) Load(tourID string) (Progress, bool, error) {
	query := `SELECT state FROM tour_progress WHERE tour_key = ?`
	var state string
	err := s.DB.QueryRow(query, Key(tourID)).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, fmt.Errorf("load progress %s: %w", tourID, err)
	}
	p, err := Decode([]byte(state))
	if err != nil {
		return Progress{}, true, err
	}
	return p, true, nil
}

func (s *SQLiteStore) Save(tourID string, p Progress) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	query := `INSERT INTO tour_progress (tour_key, state, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(tour_key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`
	if _, err := s.DB.Exec(query, Key(tourID), string(data)); err != nil {
		return fmt.Errorf("save progress %s: %w", tourID, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(tourID string) error {
	query := `DELETE FROM tour_progress WHERE tour_key = ?`
	_, err := s.DB.Exec(query, Key(tourID))
	return err
}

// Tours lists the tour ids with a stored record.
func (s *SQLiteStore) Tours() ([]string, error) {
	rows, err := s.DB.Query(`SELECT tour_key FROM tour_progress ORDER BY tour_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		ids = append(ids, strings.TrimPrefix(key, "tour_"))
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}
