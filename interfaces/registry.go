package interfaces

// CredentialStore verifies account credentials.
type CredentialStore interface {
	// Validate compares a pre-hashed password against the stored record.
	// Returns ErrUserNotFound or ErrWrongPassword on failure.
	Validate(username, passwordHash string) (UserID, error)

	// Authenticate checks a plaintext password with the credential comparator.
	Authenticate(username, password string) (UserID, error)

	// LookupName returns the username for display purposes.
	LookupName(UserID) (string, bool)
}

// SessionRegistry maps opaque session tokens to users.
type SessionRegistry interface {
	// Create issues a fresh token for the user.
	Create(UserID) (SessionToken, error)

	// Resolve returns the user owning the token, if any.
	Resolve(SessionToken) (UserID, bool)

	// Destroy forgets the token. Destroying an unknown token is a no-op.
	Destroy(SessionToken)
}
