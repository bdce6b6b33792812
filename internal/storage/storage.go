// Package storage keeps ingested region-day records in a bbolt database so
// training can run without calling the forecast API again.
//
// Records are keyed "date_region", which keeps a cursor scan in date order
// and makes date-range queries a single Seek.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"avalanche-predictor/internal/features"
)

const recordsBucket = "records" // Bucket name for raw region-day records

// DBFile is the database file name inside the data directory.
const DBFile = "avalanche-data.db"

// Store provides persistent storage for raw records using bbolt.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database in dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordsBucket)); err != nil {
			return fmt.Errorf("create records bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreRecords writes records in one transaction. A record with the same
// region and date as a stored one replaces it.
func (s *Store) StoreRecords(records []features.RawRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(recordsBucket))
		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal record %s: %w", r.Key(), err)
			}
			if err := b.Put([]byte(r.Key()), data); err != nil {
				return fmt.Errorf("put record %s: %w", r.Key(), err)
			}
		}
		return nil
	})
}

// GetRecords returns the records dated from..to, both days inclusive, in date
// order. A stored value that cannot be decoded fails the read.
func (s *Store) GetRecords(from, to time.Time) ([]features.RawRecord, error) {
	var records []features.RawRecord

	startKey := []byte(from.Format("2006-01-02"))
	// "~" sorts after every digit, so this bounds every key of the last day.
	endKey := []byte(to.Format("2006-01-02") + "_~")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(recordsBucket)).Cursor()
		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			var r features.RawRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			records = append(records, r)
		}
		return nil
	})

	return records, err
}

// AllRecords returns every stored record in date order.
func (s *Store) AllRecords() ([]features.RawRecord, error) {
	var records []features.RawRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(recordsBucket)).ForEach(func(k, v []byte) error {
			var r features.RawRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			records = append(records, r)
			return nil
		})
	})
	return records, err
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(recordsBucket)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, err
}
