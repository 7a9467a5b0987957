package custodyhandler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/waas-signing-service/api"
	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/ruteri/waas-signing-service/custody"
	"github.com/ruteri/waas-signing-service/interfaces"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// CustodyService is the subset of custody.Service the handler needs.
type CustodyService interface {
	Login(username, password string) (interfaces.SessionToken, interfaces.UserID, error)
	Logout(token interfaces.SessionToken)
	Resolve(token interfaces.SessionToken) (interfaces.UserID, error)
	GenerateKey(userID interfaces.UserID) (interfaces.SigningKey, error)
	DiscardKey(userID interfaces.UserID) error
	Submit(userID interfaces.UserID, message string) (interfaces.Ticket, error)
	Subscribe(userID interfaces.UserID, ticketID string) (<-chan interfaces.SignEvent, func(), error)
	Retrieve(userID interfaces.UserID) (string, error)
	Status(userID interfaces.UserID) custody.Status
}

type contextKey struct{}

// Handler processes HTTP requests for the signing service.
//
// Apart from login and logout, every route requires the session cookie issued
// by login. Users only ever see their own key, tickets and signatures: the
// user is always taken from the session, never from the request.
type Handler struct {
	service      CustodyService
	secureCookie bool
	log          *slog.Logger
}

// NewHandler creates a new HTTP request handler backed by service.
func NewHandler(service CustodyService, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// WithSecureCookie marks the session cookie Secure, for deployments behind TLS.
func (h *Handler) WithSecureCookie(secure bool) *Handler {
	h.secureCookie = secure
	return h
}

// RegisterRoutes configures the HTTP router with the service endpoints:
//   - POST /api/login - Open a session
//   - POST /api/logout - Close the session
//   - GET /api/me - Describe the session's user
//   - POST /api/key/generate - Create the user's key
//   - POST /api/key/discard - Destroy the user's key
//   - POST /api/sign - Queue a message for signing
//   - GET /api/events/{ticket} - Stream the outcome of a sign request
//   - GET /api/signed - Collect the signature
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/login", h.HandleLogin)
	r.Post("/api/logout", h.HandleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Get("/api/me", h.HandleStatus)
		r.Post("/api/key/generate", h.HandleGenerateKey)
		r.Post("/api/key/discard", h.HandleDiscardKey)
		r.Post("/api/sign", h.HandleSign)
		r.Get("/api/events/{ticket}", h.HandleEvents)
		r.Get("/api/signed", h.HandleSigned)
	})
}

// requireSession resolves the session cookie and stores the user in the request context.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(api.SessionCookieName)
		if err != nil {
			h.writeError(w, interfaces.ErrSessionNotFound)
			return
		}

		userID, err := h.service.Resolve(interfaces.SessionToken(cookie.Value))
		if err != nil {
			h.writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, userID)))
	})
}

func userFromContext(ctx context.Context) interfaces.UserID {
	userID, _ := ctx.Value(contextKey{}).(interfaces.UserID)
	return userID
}

// HandleLogin exchanges credentials for a session.
//
// URL format: POST /api/login
// Request body: JSON-encoded api.LoginRequest
// Response: JSON-encoded api.LoginResponse and the session cookie
//
// Status codes:
//   - 200 OK: Session created
//   - 400 Bad Request: Malformed body
//   - 401 Unauthorized: Unknown user or wrong password
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	token, userID, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(string(token), 0))
	h.writeJSON(w, http.StatusOK, api.LoginResponse{UserID: userID, Username: req.Username})
}

// HandleLogout drops the session if there is one. It always succeeds.
//
// URL format: POST /api/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(api.SessionCookieName); err == nil {
		h.service.Logout(interfaces.SessionToken(cookie.Value))
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// HandleStatus describes the session's user.
//
// URL format: GET /api/me
// Response: JSON-encoded api.StatusResponse
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status(userFromContext(r.Context()))

	h.writeJSON(w, http.StatusOK, api.StatusResponse{
		UserID:    status.UserID,
		Username:  status.Username,
		HasKey:    status.HasKey,
		Address:   status.Address,
		SignState: status.SignState.String(),
	})
}

// HandleGenerateKey creates the user's signing key. Only the public half is returned.
//
// URL format: POST /api/key/generate
// Response: JSON-encoded api.KeyResponse
//
// Status codes:
//   - 200 OK: Key created
//   - 409 Conflict: The user already has a key
func (h *Handler) HandleGenerateKey(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())

	key, err := h.service.GenerateKey(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer key.Zero()

	response := api.KeyResponse{UserID: userID}
	if address, err := cryptoutils.Address(key); err == nil {
		response.Address = address.Hex()
	}
	if pubkey, err := cryptoutils.PublicKey(key); err == nil {
		response.PublicKey = hex.EncodeToString(pubkey)
	} else {
		h.log.Warn("Generated key has no secp256k1 public key", "userID", userID, "err", err)
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDiscardKey destroys the user's signing key.
//
// URL format: POST /api/key/discard
//
// Status codes:
//   - 200 OK: Key destroyed
//   - 404 Not Found: The user has no key
func (h *Handler) HandleDiscardKey(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DiscardKey(userFromContext(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

// HandleSign queues a message for signing.
//
// URL format: POST /api/sign
// Request body: JSON-encoded api.SignRequest
// Response: JSON-encoded api.SignAccepted with the ticket to follow
//
// Status codes:
//   - 202 Accepted: Message queued
//   - 400 Bad Request: Malformed body
//   - 404 Not Found: The user has no key
//   - 409 Conflict: A message is already pending or its signature was not collected
func (h *Handler) HandleSign(w http.ResponseWriter, r *http.Request) {
	var req api.SignRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	ticket, err := h.service.Submit(userFromContext(r.Context()), req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, api.SignAccepted(ticket))
}

// HandleEvents streams the single outcome of a sign request as a server-sent
// event and then ends the response.
//
// URL format: GET /api/events/{ticket}
// Response: text/event-stream with one event whose data is a JSON-encoded interfaces.SignEvent
//
// Status codes:
//   - 200 OK: Stream opened
//   - 404 Not Found: Unknown ticket or a ticket of another user
//   - 409 Conflict: Another stream is already waiting on the ticket
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())
	ticketID := r.PathValue("ticket")

	events, cancel, err := h.service.Subscribe(userID, ticketID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	// The outcome can arrive after the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	if err := rc.Flush(); err != nil {
		h.log.Debug("Event stream cannot be flushed early", "err", err)
	}

	select {
	case event, ok := <-events:
		if !ok {
			return
		}
		data, err := json.Marshal(event)
		if err != nil {
			h.log.Error("Failed to encode sign event", "err", err)
			return
		}
		if _, err := fmt.Fprintf(w, "id: %s\ndata: %s\n\n", ticketID, data); err != nil {
			h.log.Debug("Event stream closed by client", "userID", userID, "err", err)
			return
		}
		_ = rc.Flush()
	case <-r.Context().Done():
		h.log.Debug("Event stream abandoned", "userID", userID, "ticket", ticketID)
	}
}

// HandleSigned hands out the signature of the last signed message, once.
//
// URL format: GET /api/signed
// Response: JSON-encoded api.SignedResponse
//
// Status codes:
//   - 200 OK: Signature collected
//   - 404 Not Found: Nothing to collect
func (h *Handler) HandleSigned(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())

	signature, err := h.service.Retrieve(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.SignedResponse{UserID: userID, Signature: signature})
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     api.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("could not read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("could not parse request body: %w", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeErrorStatus(w, api.StatusForError(err), err)
}

func (h *Handler) writeErrorStatus(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
	}
	h.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}
