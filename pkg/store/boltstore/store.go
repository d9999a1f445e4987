// Package boltstore implements store.EventStore on an embedded bbolt file.
//
// Events live under a root bucket with one child bucket per source system.
// Keys are big-endian source event ids so the newest event is the last key.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/wilhg/locale/pkg/source"
	"github.com/wilhg/locale/pkg/store"
)

const rootBucket = "events"

// Store opens the database file for each operation and closes it before returning.
type Store struct {
	path    string
	timeout time.Duration
}

var _ store.EventStore = (*Store)(nil)

// Open returns a store backed by the file at path, creating it when missing.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("boltstore: path is empty")
	}
	s := &Store{path: path, timeout: 5 * time.Second}
	err := s.update(func(root *bolt.Bucket) error { return nil })
	if err != nil {
		return nil, err
	}
	return s, nil
}

type record struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Start     time.Time `json:"dt_start"`
	End       time.Time `json:"dt_end"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) open() (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: s.timeout})
	if err != nil {
		return nil, fmt.Errorf("could not open db %s: %w", s.path, err)
	}
	return db, nil
}

func (s *Store) update(fn func(root *bolt.Bucket) error) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(rootBucket))
		if err != nil {
			return fmt.Errorf("unable to create root bucket %s: %w", rootBucket, err)
		}
		return fn(root)
	})
}

func (s *Store) view(system source.SystemID, fn func(b *bolt.Bucket) error) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(rootBucket))
		if root == nil {
			return fn(nil)
		}
		return fn(root.Bucket(systemKey(system)))
	})
}

func systemKey(system source.SystemID) []byte {
	return []byte(fmt.Sprintf("system-%d", int(system)))
}

func eventKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func keyID(k []byte) int64 { return int64(binary.BigEndian.Uint64(k)) }

func checkID(id int64) error {
	if id < 0 {
		return fmt.Errorf("boltstore: negative source event id %d", id)
	}
	return nil
}

// LatestSourceEventID returns the last key of the system bucket.
func (s *Store) LatestSourceEventID(ctx context.Context, system source.SystemID) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	var (
		latest int64
		ok     bool
	)
	err := s.view(system, func(b *bolt.Bucket) error {
		if b == nil {
			return nil
		}
		if k, _ := b.Cursor().Last(); k != nil {
			latest, ok = keyID(k), true
		}
		return nil
	})
	return latest, ok, err
}

// EventExists reports whether the idempotency key is present.
func (s *Store) EventExists(ctx context.Context, system source.SystemID, sourceEventID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := checkID(sourceEventID); err != nil {
		return false, err
	}
	var found bool
	err := s.view(system, func(b *bolt.Bucket) error {
		found = b != nil && b.Get(eventKey(sourceEventID)) != nil
		return nil
	})
	return found, err
}

// InsertEvent stores e unless its key exists, in which case store.ErrDuplicate is returned.
func (s *Store) InsertEvent(ctx context.Context, e store.EventRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkID(e.SourceEventID); err != nil {
		return 0, err
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := s.update(func(root *bolt.Bucket) error {
		b, err := root.CreateBucketIfNotExists(systemKey(e.SourceID))
		if err != nil {
			return err
		}
		key := eventKey(e.SourceEventID)
		if b.Get(key) != nil {
			return store.ErrDuplicate
		}
		seq, err := root.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		raw, err := json.Marshal(record{
			ID:        id,
			Name:      e.Name,
			Start:     e.Start.UTC(),
			End:       e.End.UTC(),
			URL:       e.URL,
			CreatedAt: createdAt.UTC(),
		})
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetEvent loads one event by its idempotency key.
func (s *Store) GetEvent(ctx context.Context, system source.SystemID, sourceEventID int64) (store.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return store.EventRecord{}, err
	}
	if err := checkID(sourceEventID); err != nil {
		return store.EventRecord{}, err
	}
	var rec store.EventRecord
	err := s.view(system, func(b *bolt.Bucket) error {
		if b == nil {
			return store.ErrNotFound
		}
		raw := b.Get(eventKey(sourceEventID))
		if raw == nil {
			return store.ErrNotFound
		}
		var err error
		rec, err = loadItem(system, sourceEventID, raw)
		return err
	})
	if err != nil {
		return store.EventRecord{}, err
	}
	return rec, nil
}

// ListEvents returns events with ids greater than afterSourceEventID in key order.
func (s *Store) ListEvents(ctx context.Context, system source.SystemID, afterSourceEventID int64, limit int) ([]store.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []store.EventRecord
	err := s.view(system, func(b *bolt.Bucket) error {
		if b == nil {
			return nil
		}
		c := b.Cursor()
		k, v := c.First()
		if afterSourceEventID > 0 {
			after := eventKey(afterSourceEventID)
			k, v = c.Seek(after)
			if k != nil && bytes.Equal(k, after) {
				k, v = c.Next()
			}
		}
		for ; k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			rec, err := loadItem(system, keyID(k), v)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close is a no-op; the file is never held open between operations.
func (s *Store) Close() error { return nil }

func loadItem(system source.SystemID, sourceEventID int64, raw []byte) (store.EventRecord, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return store.EventRecord{}, fmt.Errorf("decode event %d: %w", sourceEventID, err)
	}
	return store.EventRecord{
		ID:            r.ID,
		Name:          r.Name,
		Start:         r.Start,
		End:           r.End,
		URL:           r.URL,
		SourceID:      system,
		SourceEventID: sourceEventID,
		CreatedAt:     r.CreatedAt,
	}, nil
}
