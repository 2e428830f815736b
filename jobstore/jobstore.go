// Package jobstore persists scan requests. Requests are created by
// operators or tooling and only ever move from Pending to Completed;
// the engine never deletes them.
package jobstore

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/frugalcloud/sweeper/types"
)

var bucketRequests = []byte("requests")

// Store is the scan-request database.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the request database in dir.
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "requests.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open request database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRequests)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create persists a new pending request. An empty ID gets a generated
// one; the stored request is returned.
func (s *Store) Create(req types.ScanRequest) (types.ScanRequest, error) {
	if req.ID == "" {
		req.ID = newRequestID()
	}
	if req.Status == "" {
		req.Status = types.StatusPending
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRequests)
		if bucket.Get([]byte(req.ID)) != nil {
			return fmt.Errorf("request %s already exists", req.ID)
		}
		value, err := json.Marshal(req)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(req.ID), value)
	})
	if err != nil {
		return types.ScanRequest{}, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

// FindDue returns every pending request scheduled at or before now,
// oldest first. There is no upper bound on lateness.
func (s *Store) FindDue(now time.Time) ([]types.ScanRequest, error) {
	var due []types.ScanRequest
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRequests).ForEach(func(_, value []byte) error {
			var req types.ScanRequest
			if err := json.Unmarshal(value, &req); err != nil {
				return err
			}
			if req.Due(now) {
				due = append(due, req)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find due requests: %w", err)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	return due, nil
}

// MarkCompleted flips the given requests to Completed in one
// transaction. Completion is unconditional; it records that the request
// was dispatched, not that its scans succeeded. Unknown ids are
// ignored.
func (s *Store) MarkCompleted(ids []string, now time.Time) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRequests)
		for _, id := range ids {
			value := bucket.Get([]byte(id))
			if value == nil {
				continue
			}
			var req types.ScanRequest
			if err := json.Unmarshal(value, &req); err != nil {
				return err
			}
			req.Status = types.StatusCompleted
			req.CompletedAt = now
			updated, err := json.Marshal(req)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(id), updated); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to complete requests: %w", err)
	}
	return nil
}

// List returns every stored request, oldest schedule first.
func (s *Store) List() ([]types.ScanRequest, error) {
	var all []types.ScanRequest
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRequests).ForEach(func(_, value []byte) error {
			var req types.ScanRequest
			if err := json.Unmarshal(value, &req); err != nil {
				return err
			}
			all = append(all, req)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ScheduledAt.Before(all[j].ScheduledAt)
	})
	return all, nil
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return "req-" + hex.EncodeToString(buf)
}
