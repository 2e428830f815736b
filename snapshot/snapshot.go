// Package snapshot persists the findings of the latest scan per scope.
// A scan replaces its scope's findings atomically; readers never see a
// half-written scan, and an empty scan clears the scope.
package snapshot

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/frugalcloud/sweeper/types"
)

// Bucket names in bbolt. findings holds one nested bucket per scope.
var (
	bucketFindings = []byte("findings")
	bucketMeta     = []byte("meta")
)

// Store is the findings snapshot database.
type Store struct {
	mu sync.RWMutex

	// In-memory scope index for fast stats
	index *btree.BTreeG[*scopeEntry]

	db *bbolt.DB
}

// scopeEntry tracks one scope's snapshot in the index.
type scopeEntry struct {
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open opens or creates the snapshot database in dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "findings.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketFindings, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{
		index: btree.NewG[*scopeEntry](32, func(a, b *scopeEntry) bool {
			return a.Key < b.Key
		}),
		db: db,
	}

	if err := store.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Replace swaps the scope's findings for the given set in one
// transaction. An empty set still clears whatever the scope held.
func (s *Store) Replace(scope types.Scope, findings []types.Finding, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := []byte(scope.Key())
	err := s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket(bucketFindings)
		if parent.Bucket(key) != nil {
			if err := parent.DeleteBucket(key); err != nil {
				return err
			}
		}
		bucket, err := parent.CreateBucket(key)
		if err != nil {
			return err
		}

		for _, f := range findings {
			value, err := json.Marshal(f)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(f.ResourceID), value); err != nil {
				return err
			}
		}

		meta, err := json.Marshal(scopeEntry{
			Key:       scope.Key(),
			Count:     len(findings),
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(key, meta)
	})
	if err != nil {
		return fmt.Errorf("failed to replace snapshot for %s: %w", scope, err)
	}

	s.index.ReplaceOrInsert(&scopeEntry{
		Key:       scope.Key(),
		Count:     len(findings),
		UpdatedAt: now,
	})
	return nil
}

// Find returns the scope's current findings. A scope never scanned
// yields an empty slice.
func (s *Store) Find(scope types.Scope) ([]types.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var findings []types.Finding
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketFindings).Bucket([]byte(scope.Key()))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			var f types.Finding
			if err := json.Unmarshal(value, &f); err != nil {
				return err
			}
			findings = append(findings, f)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", scope, err)
	}
	return findings, nil
}

// ScopeStat is one scope's snapshot summary.
type ScopeStat struct {
	Scope     string    `json:"scope"`
	Findings  int       `json:"findings"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats summarizes every scope that has ever been scanned, in scope-key
// order.
func (s *Store) Stats() []ScopeStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]ScopeStat, 0, s.index.Len())
	s.index.Ascend(func(entry *scopeEntry) bool {
		stats = append(stats, ScopeStat{
			Scope:     entry.Key,
			Findings:  entry.Count,
			UpdatedAt: entry.UpdatedAt,
		})
		return true
	})
	return stats
}

// rebuildIndex reloads the scope index from the meta bucket.
func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(_, value []byte) error {
			var entry scopeEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return err
			}
			s.index.ReplaceOrInsert(&entry)
			return nil
		})
	})
}
