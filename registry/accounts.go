package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/ruteri/waas-signing-service/interfaces"
)

// Accounts is an immutable in-memory credential store.
// It implements interfaces.CredentialStore.
type Accounts struct {
	byName map[string]interfaces.UserAccount
	byID   map[interfaces.UserID]string
}

// DefaultAccounts returns the built-in seed accounts.
// The hashes are bcrypt ($2y$, cost 5) of "123456" and "Alex5".
func DefaultAccounts() []interfaces.UserAccount {
	return []interfaces.UserAccount{
		{UserID: 1, Username: "user1", PasswordHash: "$2y$05$gifLHpZdNAixJzy36HyOc.1PsRNbn5Je9vlWalKyg3sGqSAW.8rFG"},
		{UserID: 2, Username: "user2", PasswordHash: "$2y$05$gifLHpZdNAixJzy36HyOc.ge.9FMFAI.6NwvXHqIpLQpCF3hepE9e"},
	}
}

// LoadAccounts parses a JSON array of accounts, e.g.
//
//	[{"user_id": 1, "username": "user1", "password_hash": "$2y$05$..."}]
func LoadAccounts(r io.Reader) ([]interfaces.UserAccount, error) {
	var accounts []interfaces.UserAccount
	if err := json.NewDecoder(r).Decode(&accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return accounts, nil
}

// NewAccounts builds a credential store from the seed records.
// Usernames and user ids must be unique and usernames non-empty.
func NewAccounts(accounts []interfaces.UserAccount) (*Accounts, error) {
	a := &Accounts{
		byName: make(map[string]interfaces.UserAccount, len(accounts)),
		byID:   make(map[interfaces.UserID]string, len(accounts)),
	}

	for _, account := range accounts {
		if account.Username == "" {
			return nil, fmt.Errorf("account %d has an empty username", account.UserID)
		}
		if _, exists := a.byName[account.Username]; exists {
			return nil, fmt.Errorf("duplicate username %q", account.Username)
		}
		if _, exists := a.byID[account.UserID]; exists {
			return nil, fmt.Errorf("duplicate user id %d", account.UserID)
		}
		a.byName[account.Username] = account
		a.byID[account.UserID] = account.Username
	}

	return a, nil
}

// Validate compares a pre-hashed password with the stored hash in constant time.
func (a *Accounts) Validate(username, passwordHash string) (interfaces.UserID, error) {
	account, ok := a.byName[username]
	if !ok {
		return 0, fmt.Errorf("%q: %w", username, interfaces.ErrUserNotFound)
	}
	if !cryptoutils.EqualHashes(account.PasswordHash, passwordHash) {
		return 0, fmt.Errorf("%q: %w", username, interfaces.ErrWrongPassword)
	}
	return account.UserID, nil
}

// Authenticate checks a plaintext password against the stored bcrypt hash.
func (a *Accounts) Authenticate(username, password string) (interfaces.UserID, error) {
	account, ok := a.byName[username]
	if !ok {
		return 0, fmt.Errorf("%q: %w", username, interfaces.ErrUserNotFound)
	}

	err := cryptoutils.ComparePassword(account.PasswordHash, password)
	if errors.Is(err, cryptoutils.ErrPasswordMismatch) {
		return 0, fmt.Errorf("%q: %w", username, interfaces.ErrWrongPassword)
	}
	if err != nil {
		// A malformed stored hash can never match.
		return 0, fmt.Errorf("%q: %w: %w", username, interfaces.ErrWrongPassword, err)
	}
	return account.UserID, nil
}

// LookupName returns the username of the account, for display only.
func (a *Accounts) LookupName(userID interfaces.UserID) (string, bool) {
	name, ok := a.byID[userID]
	return name, ok
}

// Len returns the number of accounts.
func (a *Accounts) Len() int {
	return len(a.byName)
}
