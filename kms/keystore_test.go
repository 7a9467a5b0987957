package kms

import (
	"sync"
	"testing"

	"github.com/ruteri/waas-signing-service/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStore_Lifecycle(t *testing.T) {
	store := NewKeyStore()

	_, err := store.Get(1)
	require.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	assert.False(t, store.Has(1))

	require.NoError(t, store.Set(1, interfaces.SigningKey{1, 2, 3}))
	assert.True(t, store.Has(1))

	key, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SigningKey{1, 2, 3}, key)

	require.NoError(t, store.Discard(1))
	_, err = store.Get(1)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestKeyStore_SetOverwrites(t *testing.T) {
	store := NewKeyStore()

	require.NoError(t, store.Set(1, interfaces.SigningKey{1}))
	require.NoError(t, store.Set(1, interfaces.SigningKey{2}))

	key, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SigningKey{2}, key)
	assert.Equal(t, 1, store.Len())
}

func TestKeyStore_RejectsEmptyKey(t *testing.T) {
	store := NewKeyStore()
	assert.Error(t, store.Set(1, nil))
	assert.False(t, store.Has(1))
}

func TestKeyStore_DiscardMissingIsNoop(t *testing.T) {
	store := NewKeyStore()
	assert.NoError(t, store.Discard(42))
}

func TestKeyStore_CopiesKeyMaterial(t *testing.T) {
	store := NewKeyStore()

	original := interfaces.SigningKey{1, 2, 3}
	require.NoError(t, store.Set(1, original))
	original[0] = 9

	fetched, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SigningKey{1, 2, 3}, fetched)

	fetched[1] = 9
	again, err := store.Get(1)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SigningKey{1, 2, 3}, again)
}

func TestKeyStore_ZeroesDiscardedKey(t *testing.T) {
	store := NewKeyStore()
	require.NoError(t, store.Set(1, interfaces.SigningKey{1, 2, 3}))

	store.mu.RLock()
	stored := store.keys[1]
	store.mu.RUnlock()

	require.NoError(t, store.Discard(1))
	assert.Equal(t, interfaces.SigningKey{0, 0, 0}, stored)
}

func TestKeyStore_UsersAreIsolated(t *testing.T) {
	store := NewKeyStore()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id interfaces.UserID) {
			defer wg.Done()
			assert.NoError(t, store.Set(id, interfaces.SigningKey{byte(id)}))
		}(interfaces.UserID(i))
	}
	wg.Wait()

	for i := 1; i <= 50; i++ {
		key, err := store.Get(interfaces.UserID(i))
		require.NoError(t, err)
		assert.Equal(t, interfaces.SigningKey{byte(i)}, key)
	}
}
