// Package kms holds the users' signing keys.
//
// KeyStore is the in-memory implementation of interfaces.KeyStore. It keeps at
// most one key per user and hands out copies, so a key read by the signing
// pipeline is not affected by a later Discard or Set for the same user.
//
//	keys := kms.NewKeyStore()
//	keys.Set(userID, key)
//	key, err := keys.Get(userID) // interfaces.ErrKeyNotFound once discarded
//
// Set overwrites unconditionally; the single-key rule is enforced by the
// custody service, which checks for an existing key and calls Set under one lock.
//
// Keys live only in process memory and are lost on restart.
//
// MockKeyStore and MockSigningBackend are testify mocks for the two
// interfaces this package is built around.
package kms
