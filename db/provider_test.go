package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providersUnderTest(t *testing.T) map[string]DatabaseProvider {
	t.Helper()

	leveldbProvider, err := NewLevelDBProvider(filepath.Join(t.TempDir(), "leveldb"))
	require.NoError(t, err)
	boltProvider, err := NewBoltProvider(filepath.Join(t.TempDir(), "bolt.db"))
	require.NoError(t, err)

	return map[string]DatabaseProvider{
		"leveldb": leveldbProvider,
		"bolt":    boltProvider,
		"memory":  NewMemoryProvider(),
	}
}

func TestProviderRoundTrip(t *testing.T) {
	for name, provider := range providersUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer provider.Close()

			value, err := provider.Get([]byte("missing"))
			require.NoError(t, err)
			assert.Nil(t, value)

			require.NoError(t, provider.Put([]byte("k1"), []byte("v1")))

			exists, err := provider.Has([]byte("k1"))
			require.NoError(t, err)
			assert.True(t, exists)

			value, err = provider.Get([]byte("k1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), value)

			require.NoError(t, provider.Delete([]byte("k1")))
			exists, err = provider.Has([]byte("k1"))
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestProviderIteratePrefix(t *testing.T) {
	for name, provider := range providersUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			defer provider.Close()

			require.NoError(t, provider.Put([]byte("b:1"), []byte("one")))
			require.NoError(t, provider.Put([]byte("b:2"), []byte("two")))
			require.NoError(t, provider.Put([]byte("s:1"), []byte("snapshot")))

			seen := map[string]string{}
			err := provider.IteratePrefix([]byte("b:"), func(key, value []byte) bool {
				seen[string(key)] = string(value)
				return true
			})
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"b:1": "one", "b:2": "two"}, seen)

			// early stop
			count := 0
			err = provider.IteratePrefix([]byte("b:"), func(key, value []byte) bool {
				count++
				return false
			})
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()

	provider, err := NewProvider(BackendMemory, dir)
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	provider, err = NewProvider(BackendBolt, dir)
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	provider, err = NewProvider(BackendLevelDB, dir)
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	_, err = NewProvider("cassandra", dir)
	assert.Error(t, err)
}
