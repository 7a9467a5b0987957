// Package registry keeps track of who the users are and which sessions they hold.
//
// # Accounts
//
// Accounts is the credential store. It is seeded once at startup, either from
// DefaultAccounts or from a JSON document read with LoadAccounts:
//
//	[
//	  {"user_id": 1, "username": "user1", "password_hash": "$2y$05$..."}
//	]
//
// Validate compares an already hashed password with the stored hash in
// constant time. Authenticate checks a plaintext password against the bcrypt
// hash. Both report interfaces.ErrUserNotFound for unknown usernames and
// interfaces.ErrWrongPassword for a mismatch.
//
// # Sessions
//
// Sessions maps random session tokens to user IDs. Tokens are 16 printable
// characters that are safe in a cookie value and are regenerated on collision. A non-zero TTL
// makes Resolve reject sessions older than the TTL; Expire drops them.
//
// Mocks for both interfaces are provided for handler and service tests.
package registry
