// Package custody exposes the session-scoped key custody and signing service.
//
// A user logs in, generates a single secp256k1 key that never leaves the
// service, submits messages for signing one at a time, waits for the
// completion event of each submission, and then collects the signature once.
package custody
