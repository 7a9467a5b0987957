// Package interfaces defines core interfaces and types for the signing service,
// separating interface definitions from implementations.
//
// # Component Interfaces
//
// CredentialStore: verifies a username and password (or pre-hashed password)
// against the seeded account records and returns a stable UserID.
//
// SessionRegistry: maps opaque session tokens to users. Tokens are created at
// login and destroyed at logout.
//
// KeyStore: owns at most one SigningKey per user. Set overwrites, so callers
// enforce the single-key rule before storing.
//
// SigningBackend: stateless secp256k1 adapter producing keys and signatures.
//
// # Workflow Types
//
//   - Ticket: correlates one accepted submission with its notification stream
//   - SignEvent: the single terminal event emitted once a submission is processed
//   - SignState: idle, pending, in_flight or signed
//
// # Errors
//
// All failures surface as the sentinel errors declared in errors.go, wrapped with
// context and matched with errors.Is.
package interfaces
