package interfaces

// KeyStore owns at most one signing key per user.
//
// Set overwrites unconditionally. The "one key per user" rule is enforced by the
// caller, which must check for absence before calling Set.
type KeyStore interface {
	// Get returns a copy of the user's key or ErrKeyNotFound.
	Get(UserID) (SigningKey, error)

	// Set stores the key for the user, replacing any existing key.
	Set(UserID, SigningKey) error

	// Discard removes the user's key. Discarding a missing key is not an error.
	Discard(UserID) error
}

// SigningBackend is the stateless cryptographic adapter.
type SigningBackend interface {
	// GenerateKey produces a fresh private key from a secure random source.
	GenerateKey() (SigningKey, error)

	// Sign signs message with key and returns the text encoded signature.
	// A malformed key yields an error wrapping ErrSigningFailed.
	Sign(message []byte, key SigningKey) (string, error)
}
