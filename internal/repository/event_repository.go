// Package repository provides data access implementations
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/reservoir-sim/internal/entities"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit is the number of rows returned by Recent when no limit is given
const DefaultHistoryLimit = 20

// TimestampLayout is the format of the date_heure column
const TimestampLayout = "2006-01-02 15:04:05"

// EventLog defines the append-only persistence of flow events
type EventLog interface {
	Append(ctx context.Context, event *entities.FlowEvent) error
	Recent(ctx context.Context, n int) ([]entities.FlowEvent, error)
	Close() error
}

// StorageError reports a failed read or write against the event log
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("event log %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SQLiteEventRepository implements EventLog using SQLite
type SQLiteEventRepository struct {
	db     *sql.DB
	DBPath string
	log    *logrus.Entry
}

// NewSQLiteEventRepository opens (or creates) the history database
func NewSQLiteEventRepository(dbPath string) (*SQLiteEventRepository, error) {
	if dbPath == "" {
		// Set default path if not specified
		dbDir := "data"
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dbPath = filepath.Join(dbDir, "reservoir_data.db")
	}

	logger := logrus.WithField("component", "repository")
	logger.Infof("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps appends serialized on the one file handle.
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS historique (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date_heure TEXT,
		action TEXT,
		volume REAL,
		niveau_resultat REAL
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteEventRepository{
		db:     db,
		DBPath: dbPath,
		log:    logger,
	}, nil
}

// Close closes the database connection
func (r *SQLiteEventRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append stores one flow event and writes the assigned id back into it
func (r *SQLiteEventRepository) Append(ctx context.Context, event *entities.FlowEvent) error {
	if event == nil {
		return &StorageError{Op: "append", Err: fmt.Errorf("nil event")}
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO historique (date_heure, action, volume, niveau_resultat)
		VALUES (?, ?, ?, ?)`,
		event.Timestamp.Format(TimestampLayout),
		string(event.Direction),
		event.Volume,
		event.ResultingLevel,
	)
	if err != nil {
		return &StorageError{Op: "append", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return &StorageError{Op: "append", Err: fmt.Errorf("failed to read inserted id: %w", err)}
	}
	event.ID = id

	r.log.Debugf("Successfully appended flow event #%d (%s %.1f L)", id, event.Direction.Label(), event.Volume)
	return nil
}

// Recent returns up to n of the most recently appended events, newest first
func (r *SQLiteEventRepository) Recent(ctx context.Context, n int) ([]entities.FlowEvent, error) {
	if n <= 0 {
		n = DefaultHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date_heure, action, volume, niveau_resultat
		FROM historique
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, &StorageError{Op: "recent", Err: err}
	}
	defer rows.Close()

	var result []entities.FlowEvent
	for rows.Next() {
		var (
			ev     entities.FlowEvent
			stamp  sql.NullString
			action sql.NullString
		)
		if err := rows.Scan(&ev.ID, &stamp, &action, &ev.Volume, &ev.ResultingLevel); err != nil {
			return nil, &StorageError{Op: "recent", Err: fmt.Errorf("failed to scan row: %w", err)}
		}
		ev.Direction = entities.Direction(action.String)
		if stamp.Valid && stamp.String != "" {
			ts, err := time.ParseInLocation(TimestampLayout, stamp.String, time.Local)
			if err != nil {
				return nil, &StorageError{Op: "recent", Err: fmt.Errorf("failed to parse timestamp '%s': %w", stamp.String, err)}
			}
			ev.Timestamp = ts
		}
		result = append(result, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "recent", Err: fmt.Errorf("error during row iteration: %w", err)}
	}

	return result, nil
}

// Count returns the number of rows in the history table
func (r *SQLiteEventRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM historique").Scan(&n); err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// Purge deletes every stored event. Identifiers keep increasing afterwards.
func (r *SQLiteEventRepository) Purge(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM historique")
	if err != nil {
		return &StorageError{Op: "purge", Err: err}
	}
	n, _ := res.RowsAffected()
	r.log.Infof("Purged %d history rows", n)
	return nil
}
