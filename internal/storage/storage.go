// Package storage provides the BoltDB-backed persistence layer for the
// trading core: positions, the write-ahead intent log, and Entry Safeguard
// reservations. Market ticks are an in-memory-only concept here and are
// never written to disk — nothing downstream of the tick loop needs to
// replay historical quotes, only the live position/reservation state needs
// to survive a restart.
package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	positionsBucket     = "positions"      // Position Manager rows
	positionIndexBucket = "position_index" // (window_id|market|token_id) -> position id, enforces uniqueness
	intentsBucket       = "intents"        // write-ahead intent log backing position mutations
	reservationsBucket  = "window_entries" // Entry Safeguard reservation rows
)

// Store provides persistent storage for trading data using BoltDB.
// It manages one bucket per concern (positions, the position index,
// intents, reservations); it stores no tick history.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
// Returns an error if the database cannot be opened or buckets cannot be created.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "bitunix-data.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range []string{positionsBucket, positionIndexBucket, intentsBucket, reservationsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("create %s bucket: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
// It should be called when the storage is no longer needed to ensure
// proper cleanup of database resources.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
