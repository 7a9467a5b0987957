// Package main (cmd/custodyclient) is a command-line client for the signing service.
//
// Commands:
//
//	me       - show the account, whether it has a key and its signing state
//	generate - generate the account's signing key
//	discard  - discard the account's signing key
//	sign     - submit a message, wait for the outcome event and print the signature
//	verify   - check a signature against an address without contacting the server
//
// The session cookie lives only for one invocation, so every online command
// takes --username and --password (or CUSTODY_PASSWORD) and logs out when done.
//
// Example:
//
//	custodyclient sign --username user1 --password 123456 --generate-key "hello"
package main
