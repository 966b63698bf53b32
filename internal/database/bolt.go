package database

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// Bolt wraps one boltdb file shared by the app's persistent caches.
type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens (or creates) the database file at dbPath.
func NewBolt(dbPath string) (*Bolt, error) {
	db, err := bbolt.Open(dbPath, 0666, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Bucket returns a kv store view over the named bucket, creating it if needed.
func (b *Bolt) Bucket(name string) (*BoltKVStore, error) {
	if err := b.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	}); err != nil {
		return nil, fmt.Errorf("creating database bucket: %w", err)
	}

	return &BoltKVStore{
		db:         b.db,
		bucketName: []byte(name),
	}, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// BoltKVStore provides a simple kv store interface over one boltdb bucket.
type BoltKVStore struct {
	db         *bbolt.DB
	bucketName []byte
}

// ReadKey returns data saved for given key. Returns nil if there's no data stored.
func (s *BoltKVStore) ReadKey(key []byte) ([]byte, error) {
	var data []byte
	if err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		// Values are only valid for the transaction lifetime, copy out.
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("reading from db: %w", err)
	}

	return data, nil
}

// UpdateKey stores given data under given key.
func (s *BoltKVStore) UpdateKey(key []byte, data []byte) error {
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucketName)
		return b.Put(key, data)
	}); err != nil {
		return fmt.Errorf("writing to db: %w", err)
	}

	return nil
}
