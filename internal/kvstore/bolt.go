package kvstore

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/posterfall/ratingscout/internal/domain"
)

var boltBucket = []byte("ratingscout")

// BoltStore implements domain.KVStore on a bbolt database. Writes are
// transactional; a crash mid-write cannot corrupt previously committed data.
type BoltStore struct {
	db *bolt.DB
}

var _ domain.KVStore = (*BoltStore)(nil)

// NewBoltStore opens (or creates) a bbolt database under dir.
func NewBoltStore(dir string) (*BoltStore, error) {
	db, err := bolt.Open(filepath.Join(dir, "ratingscout.bolt"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "bbolt open")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "bbolt create bucket")
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		for _, key := range keys {
			if v := b.Get([]byte(key)); v != nil {
				// Copy: bbolt values are only valid inside the transaction.
				result[key] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "bbolt get")
	}
	return result, nil
}

func (s *BoltStore) SetMany(_ context.Context, items map[string][]byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		for key, value := range items {
			if err := b.Put([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "bbolt put")
}

func (s *BoltStore) RemoveMany(_ context.Context, keys []string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "bbolt delete")
}

func (s *BoltStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "bbolt scan")
	}
	return keys, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
