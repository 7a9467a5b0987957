package kms

import (
	"fmt"
	"sync"

	"github.com/ruteri/waas-signing-service/interfaces"
)

// KeyStore keeps at most one signing key per user in memory.
// It implements interfaces.KeyStore.
//
// Key material is copied on the way in and on the way out, so callers can never
// mutate stored keys. Discarded keys are zeroed before they are dropped.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[interfaces.UserID]interfaces.SigningKey
}

// NewKeyStore creates an empty key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[interfaces.UserID]interfaces.SigningKey)}
}

// Get returns a copy of the user's key or interfaces.ErrKeyNotFound.
func (s *KeyStore) Get(userID interfaces.UserID) (interfaces.SigningKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, interfaces.ErrKeyNotFound)
	}
	return key.Clone(), nil
}

// Has reports whether the user currently holds a key.
func (s *KeyStore) Has(userID interfaces.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[userID]
	return ok
}

// Set stores key for the user, overwriting any existing key.
//
// Set does not enforce the single-key rule: callers must check for absence
// first and serialize check-then-set themselves.
func (s *KeyStore) Set(userID interfaces.UserID, key interfaces.SigningKey) error {
	if len(key) == 0 {
		return fmt.Errorf("user %d: empty key", userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.keys[userID]; ok {
		old.Zero()
	}
	s.keys[userID] = key.Clone()
	return nil
}

// Discard removes the user's key. It is a no-op when the user has no key.
func (s *KeyStore) Discard(userID interfaces.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[userID]; ok {
		key.Zero()
		delete(s.keys, userID)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
