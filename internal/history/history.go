package history

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFile        = "lumen-queryd.history"
	bucketName    = "launch_history"
	dbPermissions = 0600
)

// Record holds the usage statistics for one entry id.
type Record struct {
	Count    uint64 // Number of launches
	LastUsed uint64 // Ordinal sequence number of the most recent launch
}

// Map is the in-memory history: at most one record per entry id. The map is
// authoritative for the session; the store is best-effort persistence.
type Map map[string]Record

// RecordUse increments the id's launch count and stamps it as the most
// recently used entry. The record is created if absent.
func (m Map) RecordUse(id string) {
	var max uint64
	for _, rec := range m {
		if rec.LastUsed > max {
			max = rec.LastUsed
		}
	}
	rec := m[id]
	rec.Count++
	rec.LastUsed = max + 1
	m[id] = rec
}

// Store persists history records in a bbolt database. A store whose database
// could not be opened still works: Load yields an empty map and Save reports
// the open error, so a corrupt history file never takes the daemon down.
type Store struct {
	db      *bbolt.DB
	openErr error
}

// OpenDefault opens the history database at its fixed location under the
// user cache directory.
func OpenDefault() (*Store, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user cache directory: %w", err)
	}

	lumenCacheDir := filepath.Join(cacheDir, "lumen")
	if err := os.MkdirAll(lumenCacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return Open(filepath.Join(lumenCacheDir, dbFile))
}

// Open opens (or creates) the history database at path. An unreadable or
// corrupt database is not an error: the returned store is memory-only and
// the cause surfaces through Save.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, dbPermissions, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return &Store{openErr: fmt.Errorf("failed to open history database: %w", err)}, nil
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return &Store{openErr: err}, nil
	}

	return &Store{db: db}, nil
}

// Load reads all persisted records. When prune is set, records whose id is
// rejected by known are deleted from the database before the map is
// returned; stale records from uninstalled applications do not survive.
// A failed read degrades to an empty history.
func (s *Store) Load(prune bool, known func(id string) bool) Map {
	m := make(Map)
	if s.db == nil {
		return m
	}

	var stale [][]byte
	s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			id := string(k)
			if prune && known != nil && !known(id) {
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}
			rec, ok := decodeRecord(v)
			if !ok {
				// Undecodable value, drop the record
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}
			m[id] = rec
			return nil
		})
	})

	if len(stale) > 0 {
		err := s.db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket([]byte(bucketName))
			if b == nil {
				return nil
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			// Stale records survive until the next save
			fmt.Fprintf(os.Stderr, "Failed to prune history: %v\n", err)
		}
	}

	return m
}

// Save atomically replaces the persisted record set with m. The write is a
// single transaction; on failure the in-memory map stays authoritative and
// the caller logs the error.
func (s *Store) Save(m Map) error {
	if s.db == nil {
		if s.openErr != nil {
			return s.openErr
		}
		return fmt.Errorf("history database is not open")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		// Delete records absent from the map
		var gone [][]byte
		b.ForEach(func(k, _ []byte) error {
			if _, ok := m[string(k)]; !ok {
				gone = append(gone, append([]byte(nil), k...))
			}
			return nil
		})
		for _, k := range gone {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		for id, rec := range m {
			if err := b.Put([]byte(id), encodeRecord(rec)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// encodeRecord encodes a record as big-endian count then last_used.
func encodeRecord(rec Record) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], rec.Count)
	binary.BigEndian.PutUint64(buf[8:16], rec.LastUsed)
	return buf
}

// decodeRecord decodes a stored value. Trailing bytes beyond the known
// fields are ignored so newer writers stay readable. An 8-byte value is a
// count-only record from the old format.
func decodeRecord(v []byte) (Record, bool) {
	switch {
	case len(v) >= 16:
		return Record{
			Count:    binary.BigEndian.Uint64(v[0:8]),
			LastUsed: binary.BigEndian.Uint64(v[8:16]),
		}, true
	case len(v) >= 8:
		return Record{Count: binary.BigEndian.Uint64(v[0:8])}, true
	default:
		return Record{}, false
	}
}
