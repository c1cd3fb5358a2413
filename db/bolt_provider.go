package db

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("ledgerd")

// BoltProvider implements DatabaseProvider for bbolt
type BoltProvider struct {
	db *bolt.DB
}

// NewBoltProvider creates a new bbolt provider backed by a single file
func NewBoltProvider(path string) (DatabaseProvider, error) {
	bdb, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bolt bucket: %w", err)
	}

	return &BoltProvider{db: bdb}, nil
}

// Get retrieves a value by key
func (p *BoltProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(boltBucket).Get(key); raw != nil {
			value = append([]byte(nil), raw...)
		}
		return nil
	})
	return value, err
}

// Put stores a key-value pair
func (p *BoltProvider) Put(key, value []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

// Delete removes a key-value pair
func (p *BoltProvider) Delete(key []byte) error {
	return p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

// Has checks if a key exists
func (p *BoltProvider) Has(key []byte) (bool, error) {
	var exists bool
	err := p.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	return exists, err
}

// IteratePrefix visits every pair under the prefix
func (p *BoltProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	return p.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(boltBucket).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			key := append([]byte(nil), k...)
			value := append([]byte(nil), v...)
			if !callback(key, value) {
				break
			}
		}
		return nil
	})
}

// Close closes the database
func (p *BoltProvider) Close() error {
	return p.db.Close()
}
