package interfaces

import "errors"

var (
	// ErrUserNotFound is returned when no account matches the username.
	ErrUserNotFound = errors.New("user not found")

	// ErrWrongPassword is returned when the credential does not match the stored hash.
	ErrWrongPassword = errors.New("wrong password")

	// ErrKeyNotFound is returned when the user has no signing key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyAlreadyExists is returned when generating a key for a user that already holds one.
	ErrKeyAlreadyExists = errors.New("user already has a key")

	// ErrAlreadyPending is returned when the user already has a sign request in progress
	// or a signed result that was not collected yet.
	ErrAlreadyPending = errors.New("user already waits for message sign")

	// ErrNoPendingMessage is returned when processing is requested for a user with nothing pending.
	ErrNoPendingMessage = errors.New("no pending message for user")

	// ErrSigningFailed is returned when the backend cannot produce a signature,
	// typically because the key is not a well-formed private key.
	ErrSigningFailed = errors.New("signing of message failed")

	// ErrNotFound is returned when there is no signed result to retrieve.
	ErrNotFound = errors.New("no signed message")

	// ErrSessionNotFound is returned when a session token does not resolve to a user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTicketNotFound is returned when subscribing to an unknown ticket
	// or to a ticket owned by another user.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrAlreadySubscribed is returned when a ticket already has a listening stream.
	ErrAlreadySubscribed = errors.New("ticket already has a subscriber")
)
