package main

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

type boltFlagStorage struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// GetBoltDBClient setup the database file and the bucket then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, errB := tx.CreateBucketIfNotExists([]byte(config.BoltDB.BucketName)); errB != nil {
			return fmt.Errorf("failed to create %s bucket: %v", config.BoltDB.BucketName, errB)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltFlagStorage provides an instance of bolt-based flag storage.
func NewBoltFlagStorage(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) FlagStorage {
	return &boltFlagStorage{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

// Get retrieves the value of a flag based on its key from boltdb store.
func (bs *boltFlagStorage) Get(_ context.Context, key string) (string, error) {
	// initialize a readable transaction.
	tx, err := bs.client.Begin(false)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	result := tx.Bucket([]byte(bs.config.BucketName)).Get([]byte(key))
	if result == nil {
		return "", ErrFlagNotFound
	}
	return string(result), nil
}

// Set inserts or replaces a flag record into boltdb store.
func (bs *boltFlagStorage) Set(_ context.Context, key string, value string) error {
	err := bs.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bs.config.BucketName)).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Delete removes a flag record based on its key from boltdb store.
// Deleting an absent key is not an error.
func (bs *boltFlagStorage) Delete(_ context.Context, key string) error {
	err := bs.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bs.config.BucketName)).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Keys retrieves the list of all flag keys stored in the bolt database.
func (bs *boltFlagStorage) Keys(_ context.Context) ([]string, error) {
	tx, err := bs.client.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	// Create a cursor on the flags' bucket.
	c := tx.Bucket([]byte(bs.config.BucketName)).Cursor()

	keys := []string{}
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, string(k))
	}
	return keys, nil
}
