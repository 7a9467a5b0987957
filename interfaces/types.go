// Package interfaces defines the core interfaces and types for the signing service.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"fmt"
	"strconv"
	"time"
)

// UserID is the stable identifier of a user account.
type UserID uint64

// ParseUserID parses a decimal user identifier.
func ParseUserID(s string) (UserID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return UserID(id), nil
}

// String returns the decimal representation of the user id.
func (id UserID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// UserAccount is a credential record. Accounts are seeded at startup and never change.
type UserAccount struct {
	UserID       UserID `json:"user_id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// SigningKey is raw private key material. It is owned by exactly one user.
type SigningKey []byte

// Clone returns an independent copy of the key material.
func (k SigningKey) Clone() SigningKey {
	if k == nil {
		return nil
	}
	c := make(SigningKey, len(k))
	copy(c, k)
	return c
}

// Zero overwrites the key material in place.
func (k SigningKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// SessionToken is the opaque value handed to a client after login.
type SessionToken string

// Session maps a token to the user it was issued for.
type Session struct {
	Token     SessionToken
	UserID    UserID
	CreatedAt time.Time
}

// Ticket correlates a single sign submission with its notification stream.
// A new ticket is minted for every accepted submission.
type Ticket struct {
	UserID UserID `json:"user_id"`
	ID     string `json:"ticket"`
}

// OutcomeNone is the outcome marker of a successfully signed message.
const OutcomeNone = "none"

// SignEvent is the terminal notification emitted once per processed submission.
// Error carries OutcomeNone on success or a human readable failure description.
type SignEvent struct {
	UserID UserID `json:"user_id"`
	Ticket string `json:"ticket"`
	Error  string `json:"error"`
}

// Succeeded reports whether the event announces a signature ready for retrieval.
func (e SignEvent) Succeeded() bool {
	return e.Error == OutcomeNone
}

// SignState is the position of a user in the signing state machine.
type SignState int

const (
	// SignStateIdle means no request is pending and no result is waiting.
	SignStateIdle SignState = iota

	// SignStatePending means a message was accepted and waits to be processed.
	SignStatePending

	// SignStateInFlight means a worker claimed the message and is signing it.
	SignStateInFlight

	// SignStateSigned means a signature waits to be retrieved.
	SignStateSigned
)

// String converts a SignState to a string representation.
func (s SignState) String() string {
	switch s {
	case SignStateIdle:
		return "idle"
	case SignStatePending:
		return "pending"
	case SignStateInFlight:
		return "in_flight"
	case SignStateSigned:
		return "signed"
	default:
		return "unknown"
	}
}
