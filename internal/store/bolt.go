// Package store persists station snapshots and play history in bbolt.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/genricoloni/onair/internal/domain"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// MaxHistory is the number of entries kept per station
const MaxHistory = 500

var (
	snapshotBucket = []byte("snapshots")
	historyBucket  = []byte("history")
)

// BoltStore implements domain.SnapshotStore
type BoltStore struct {
	logger *zap.Logger
	db     *bbolt.DB
}

// NewBoltStore opens (or creates) the database at path
func NewBoltStore(logger *zap.Logger, path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{snapshotBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create buckets: %w", err)
	}

	logger.Info("Snapshot cache opened", zap.String("path", path))
	return &BoltStore{logger: logger, db: db}, nil
}

// SaveSnapshot replaces the cached snapshot of a station
func (s *BoltStore) SaveSnapshot(key string, np domain.NowPlaying) error {
	value, err := json.Marshal(np)
	if err != nil {
		return fmt.Errorf("error serializing snapshot: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put([]byte(key), value)
	})
}

// LoadSnapshots returns every cached snapshot by station key. Entries that
// no longer decode are skipped.
func (s *BoltStore) LoadSnapshots() (map[string]domain.NowPlaying, error) {
	out := make(map[string]domain.NowPlaying)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotBucket).ForEach(func(k, v []byte) error {
			var np domain.NowPlaying
			if err := json.Unmarshal(v, &np); err != nil {
				s.logger.Warn("Skipping unreadable snapshot", zap.ByteString("key", k), zap.Error(err))
				return nil
			}
			out[string(k)] = np
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AppendHistory adds an entry to the station's history, dropping the
// oldest entries beyond MaxHistory
func (s *BoltStore) AppendHistory(entry domain.HistoryEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("error serializing history entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(historyBucket).CreateBucketIfNotExists([]byte(entry.Key))
		if err != nil {
			return err
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(sequenceKey(seq), value); err != nil {
			return err
		}

		// keys are big-endian sequences, so the cursor walks oldest first
		c := b.Cursor()
		excess := -MaxHistory
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			excess++
		}
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// History returns up to limit entries of a station, newest first
func (s *BoltStore) History(key string, limit int) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(historyBucket).Bucket([]byte(key))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var entry domain.HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("error deserializing history entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func sequenceKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
