// Package directory stores the per-owner environment catalog, the
// credential material environments reference, and the per-owner policy
// thresholds.
package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/frugalcloud/sweeper/classify"
	"github.com/frugalcloud/sweeper/types"
)

var (
	bucketEnvironments = []byte("environments")
	bucketCredentials  = []byte("credentials")
	bucketThresholds   = []byte("thresholds")
)

// ErrNotFound is returned for lookups of keys that were never stored.
var ErrNotFound = errors.New("not found")

// CredentialError wraps a credential resolution failure with the
// environment it belongs to, so the scheduler can log and skip the
// environment without aborting the owner's other scans.
type CredentialError struct {
	Ref string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credentials %q: %v", e.Ref, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// Directory is the environment and credential database.
type Directory struct {
	db       *bbolt.DB
	defaults classify.Thresholds
}

// Open opens or creates the directory database in dir.
func Open(dir string) (*Directory, error) {
	dbPath := filepath.Join(dir, "directory.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketEnvironments, bucketCredentials, bucketThresholds} {
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
	return &Directory{db: db, defaults: classify.DefaultThresholds()}, nil
}

// SetDefaultThresholds replaces the built-in policy defaults, for
// example with overrides from the engine configuration. Zero fields in
// t keep the built-in values.
func (d *Directory) SetDefaultThresholds(t classify.Thresholds) {
	d.defaults = t.Merge(classify.DefaultThresholds())
}

// Close closes the database.
func (d *Directory) Close() error {
	return d.db.Close()
}

// PutEnvironments replaces the owner's environment list.
func (d *Directory) PutEnvironments(owner string, envs []types.Environment) error {
	value, err := json.Marshal(envs)
	if err != nil {
		return err
	}
	err = d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEnvironments).Put([]byte(owner), value)
	})
	if err != nil {
		return fmt.Errorf("failed to store environments for %s: %w", owner, err)
	}
	return nil
}

// Environments returns the owner's configured environments. An owner
// with no entry gets an empty list, not an error; the scheduler logs
// and completes such requests anyway.
func (d *Directory) Environments(owner string) ([]types.Environment, error) {
	var envs []types.Environment
	err := d.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketEnvironments).Get([]byte(owner))
		if value == nil {
			return nil
		}
		return json.Unmarshal(value, &envs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read environments for %s: %w", owner, err)
	}
	return envs, nil
}

// Owners lists every owner with at least one environment, sorted.
func (d *Directory) Owners() ([]string, error) {
	var owners []string
	err := d.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEnvironments).ForEach(func(key, _ []byte) error {
			owners = append(owners, string(key))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	sort.Strings(owners)
	return owners, nil
}

// PutCredentials stores credential material under a reference.
func (d *Directory) PutCredentials(ref string, creds types.Credentials) error {
	value, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	err = d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCredentials).Put([]byte(ref), value)
	})
	if err != nil {
		return fmt.Errorf("failed to store credentials %s: %w", ref, err)
	}
	return nil
}

// Credentials resolves a credential reference. A missing or unreadable
// entry is a CredentialError so callers can skip the one environment.
func (d *Directory) Credentials(ref string) (types.Credentials, error) {
	var creds types.Credentials
	err := d.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketCredentials).Get([]byte(ref))
		if value == nil {
			return ErrNotFound
		}
		return json.Unmarshal(value, &creds)
	})
	if err != nil {
		return types.Credentials{}, &CredentialError{Ref: ref, Err: err}
	}
	return creds, nil
}

// PutThresholds stores a policy threshold set under a reference.
func (d *Directory) PutThresholds(ref string, t classify.Thresholds) error {
	value, err := json.Marshal(t)
	if err != nil {
		return err
	}
	err = d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketThresholds).Put([]byte(ref), value)
	})
	if err != nil {
		return fmt.Errorf("failed to store thresholds %s: %w", ref, err)
	}
	return nil
}

// Thresholds resolves a policy reference, filling absent fields from
// the defaults. An empty or unknown reference yields the defaults.
func (d *Directory) Thresholds(ref string) (classify.Thresholds, error) {
	defaults := d.defaults
	if ref == "" {
		return defaults, nil
	}

	var stored classify.Thresholds
	found := false
	err := d.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketThresholds).Get([]byte(ref))
		if value == nil {
			return nil
		}
		found = true
		return json.Unmarshal(value, &stored)
	})
	if err != nil {
		return defaults, fmt.Errorf("failed to read thresholds %s: %w", ref, err)
	}
	if !found {
		return defaults, nil
	}
	return stored.Merge(defaults), nil
}
