// Package main (cmd/httpserver) runs the signing service.
//
// The server keeps user accounts, sessions, keys and signatures in memory.
// Accounts are read from --accounts-file, a JSON array of
// {"user_id", "username", "password_hash"} objects with bcrypt hashes; without
// it two demo accounts are seeded.
//
// Signing is asynchronous: POST /api/sign returns a ticket right away, the
// outcome is pushed on /api/events/{ticket}, and the signature is collected
// from /api/signed. At most --sign-workers signatures run concurrently, each
// taking at least --sign-delay.
//
// Sessions, uncollected signatures and undelivered events are kept until used
// unless --session-ttl, --result-ttl or --notification-ttl is set, in which
// case they are dropped every --sweep-interval once older than their TTL.
//
// Every setting can also come from the environment (LISTEN_ADDR, SIGN_WORKERS,
// RESULT_TTL, ...); a .env file in the working directory is loaded first and
// never overrides variables that are already set.
//
// The server shuts down gracefully on SIGINT/SIGTERM, finishing signatures that
// are already queued.
//
// Example usage:
//
//	httpserver --listen-addr 127.0.0.1:8080 --metrics-addr 127.0.0.1:8090 \
//	    --accounts-file accounts.json --session-ttl 24h --result-ttl 1h
package main
