package api

import (
	"errors"
	"net/http"

	"github.com/ruteri/waas-signing-service/interfaces"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "user_session"

// LoginRequest carries user credentials for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse identifies the logged-in user. The session itself travels in
// the SessionCookieName cookie.
type LoginResponse struct {
	UserID   interfaces.UserID `json:"user_id"`
	Username string            `json:"username"`
}

// StatusResponse describes the caller's key and signing state.
type StatusResponse struct {
	UserID   interfaces.UserID `json:"user_id"`
	Username string            `json:"username"`
	HasKey   bool              `json:"has_key"`

	// Address is the hex address of the user's key, empty without a key
	Address string `json:"address,omitempty"`

	// SignState is one of idle, pending, in_flight or signed
	SignState string `json:"sign_state"`
}

// KeyResponse describes a freshly generated key. The private key never leaves the service.
type KeyResponse struct {
	UserID  interfaces.UserID `json:"user_id"`
	Address string            `json:"address"`

	// PublicKey is the hex encoded uncompressed secp256k1 public key
	PublicKey string `json:"public_key"`
}

// SignRequest carries the message to be signed.
type SignRequest struct {
	Message string `json:"message"`
}

// SignAccepted is returned with 202 once a message has been queued.
// The outcome is streamed from /api/events/{ticket}.
type SignAccepted = interfaces.Ticket

// SignedResponse carries the collected signature.
type SignedResponse struct {
	UserID interfaces.UserID `json:"user_id"`

	// Signature is the base64 encoded 65-byte recoverable signature
	Signature string `json:"signature"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusForError maps service errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrUserNotFound),
		errors.Is(err, interfaces.ErrWrongPassword),
		errors.Is(err, interfaces.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrKeyNotFound),
		errors.Is(err, interfaces.ErrNotFound),
		errors.Is(err, interfaces.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrKeyAlreadyExists),
		errors.Is(err, interfaces.ErrAlreadyPending),
		errors.Is(err, interfaces.ErrAlreadySubscribed):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrNoPendingMessage):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
