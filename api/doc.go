/*
Package api provides the HTTP surface of the signing service.

This package holds the wire types shared by the server and its clients, the
server configuration, and the mapping from service errors to HTTP status codes.
It is organized into three subpackages:

1. custodyhandler - HTTP handlers for sessions, keys and signing
2. server - HTTP server configuration and lifecycle management
3. clients - Go client for the HTTP API

# API Structure

Sessions:

  - POST /api/login - Exchange username and password for a session cookie
  - POST /api/logout - Drop the session cookie
  - GET /api/me - Describe the logged-in user

Keys:

  - POST /api/key/generate - Create the user's signing key (at most one)
  - POST /api/key/discard - Destroy the user's signing key

Signing:

  - POST /api/sign - Queue a message for signing, returns a ticket
  - GET /api/events/{ticket} - Server-sent event stream with the single outcome of a ticket
  - GET /api/signed - Collect the signature, exactly once

Operations:

  - GET /livez, /readyz - Health checks
  - GET /drain, /undrain - Readiness control for load balancers
  - /debug/* - pprof, when enabled

Every non-2xx response carries a JSON ErrorResponse.
*/
package api
