package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestBoltStore returns a flag store backed by a temporary bolt file.
func newTestBoltStore() (*boltFlagStorage, error) {
	f, err := os.CreateTemp("", "tmp.bolt.db-")
	if err != nil {
		return nil, err
	}
	f.Close()
	testConfig := &Config{
		BoltDB: BoltDBConfig{
			FilePath:   f.Name(),
			Timeout:    5 * time.Second,
			BucketName: "test.flags",
		},
	}

	client, err := GetBoltDBClient(testConfig)

	return &boltFlagStorage{
		logger: zap.NewNop(),
		client: client,
		config: &testConfig.BoltDB,
	}, err
}

// closeTestBoltStore closes the temporary bolt store and removes the underlying data file.
func (bs *boltFlagStorage) closeTestBoltStore() error {
	defer os.Remove(bs.config.FilePath)
	return bs.client.Close()
}

// Ensure bolt store can persist and read back a flag.
func TestBoltStore_SetGet(t *testing.T) {
	bs, err := newTestBoltStore()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltStore()

	err = bs.Set(context.TODO(), LibraryKey("b:0"), "true")
	assert.NoError(t, err)

	value, err := bs.Get(context.TODO(), LibraryKey("b:0"))
	assert.NoError(t, err)
	assert.Equal(t, "true", value)
}

// Ensure reading an absent flag reports ErrFlagNotFound.
func TestBoltStore_GetAbsent(t *testing.T) {
	bs, err := newTestBoltStore()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltStore()

	_, err = bs.Get(context.TODO(), LibraryKey("b:missing"))
	assert.ErrorIs(t, err, ErrFlagNotFound)
}

// Ensure deleting a flag clears it and deleting twice stays silent.
func TestBoltStore_Delete(t *testing.T) {
	bs, err := newTestBoltStore()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltStore()

	require.NoError(t, bs.Set(context.TODO(), LibraryKey("b:0"), "true"))
	assert.NoError(t, bs.Delete(context.TODO(), LibraryKey("b:0")))

	_, err = bs.Get(context.TODO(), LibraryKey("b:0"))
	assert.ErrorIs(t, err, ErrFlagNotFound)

	assert.NoError(t, bs.Delete(context.TODO(), LibraryKey("b:0")))
}

// Ensure all stored keys are listed.
func TestBoltStore_Keys(t *testing.T) {
	bs, err := newTestBoltStore()
	require.NoError(t, err, "failed in creating a test bolt store")
	defer bs.closeTestBoltStore()

	require.NoError(t, bs.Set(context.TODO(), LibraryKey("b:0"), "true"))
	require.NoError(t, bs.Set(context.TODO(), LibraryKey("b:1"), "true"))
	require.NoError(t, bs.Set(context.TODO(), SessionKey, "secret"))

	keys, err := bs.Keys(context.TODO())
	assert.NoError(t, err)
	assert.Len(t, keys, 3)
	assert.Contains(t, keys, LibraryKey("b:0"))
	assert.Contains(t, keys, LibraryKey("b:1"))
	assert.Contains(t, keys, SessionKey)
}
