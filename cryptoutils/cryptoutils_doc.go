// Package cryptoutils provides the cryptographic primitives of the signing service.
//
// # Signing Backend
//
// Secp256k1Backend implements interfaces.SigningBackend using the secp256k1
// implementation of go-ethereum:
//
//   - GenerateKey draws a fresh private key from crypto/rand and returns the raw
//     32-byte scalar
//   - Sign produces a recoverable 65-byte [R || S || V] signature over
//     keccak256(message), encoded with standard base64
//   - Signing is deterministic (RFC 6979) per message and key
//   - A key that is not a valid scalar yields an error wrapping
//     interfaces.ErrSigningFailed
//
// The backend sleeps for a configurable Delay before every signature to model
// a slow remote signer.
//
// # Verification
//
// VerifySignature and RecoverAddress check signatures produced by the backend;
// PublicKey and Address derive the public identity of a private key.
//
// # Credentials
//
// ComparePassword checks plaintext passwords against bcrypt hashes (the $2y$
// prefix is accepted) and EqualHashes compares pre-hashed credentials in
// constant time.
//
// # Session Tokens
//
// RandomSessionToken returns 16 characters drawn uniformly from the printable
// ASCII characters that are legal in a cookie value.
package cryptoutils
