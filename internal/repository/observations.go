// Package repository stores observed avalanche events. Each row says an
// avalanche was observed in a forecast region at a point in time; ingestion
// turns them into the training label of the matching region-day.
package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Observation is a single observed avalanche.
type Observation struct {
	ID         int64     `json:"id"`
	Region     int       `json:"forecast_region"`
	ObservedAt time.Time `json:"observed_at"`
	// Source identifies the upstream observation, e.g. a registration id.
	Source string `json:"source,omitempty"`
}

// ObservationRepository defines the persistence operations for observations.
type ObservationRepository interface {
	SaveObservations(obs []Observation) error
	ListObservations(from, to time.Time) ([]Observation, error)
	Close() error
}

// SQLiteObservationRepository implements ObservationRepository using SQLite.
type SQLiteObservationRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteObservationRepository opens the database at dbPath and creates the
// schema if needed.
func NewSQLiteObservationRepository(dbPath string) (*SQLiteObservationRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "observations.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Debug().Str("path", dbPath).Msg("opening observation database")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS avalanche_observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		forecast_region INTEGER NOT NULL,
		observed_at DATETIME NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		UNIQUE(forecast_region, observed_at)
	);
	CREATE INDEX IF NOT EXISTS idx_observed_at ON avalanche_observations(observed_at);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteObservationRepository{db: db, DBPath: dbPath}, nil
}

// Close closes the database connection.
func (r *SQLiteObservationRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveObservations inserts observations in one transaction. An observation
// for an already stored region and time updates its source.
func (r *SQLiteObservationRepository) SaveObservations(obs []Observation) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO avalanche_observations(forecast_region, observed_at, source)
		VALUES(?, ?, ?)
		ON CONFLICT(forecast_region, observed_at) DO UPDATE SET
		source=excluded.source
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.Exec(o.Region, o.ObservedAt.UTC(), o.Source); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert observation for region %d at %s: %w", o.Region, o.ObservedAt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Debug().Int("count", len(obs)).Msg("saved avalanche observations")
	return nil
}

// ListObservations returns observations made on the days from..to, both
// inclusive, ordered by time.
func (r *SQLiteObservationRepository) ListObservations(from, to time.Time) ([]Observation, error) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	rows, err := r.db.Query(`
		SELECT id, forecast_region, observed_at, source
		FROM avalanche_observations
		WHERE observed_at >= ? AND observed_at < ?
		ORDER BY observed_at, forecast_region`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var obs []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.ID, &o.Region, &o.ObservedAt, &o.Source); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}
	return obs, nil
}
