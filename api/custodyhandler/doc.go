// Package custodyhandler implements the HTTP handlers of the signing service.
//
// Sessions are carried in the "user_session" cookie. The outcome of a sign
// request is delivered as a single server-sent event on /api/events/{ticket},
// after which the stream ends; the signature itself is collected separately
// from /api/signed.
package custodyhandler
