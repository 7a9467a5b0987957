package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/ruteri/waas-signing-service/interfaces"
)

// maxTokenAttempts bounds the retries when a freshly drawn token collides with a live one.
const maxTokenAttempts = 8

// ErrTokenSpaceExhausted is returned when no unused session token could be drawn.
var ErrTokenSpaceExhausted = errors.New("could not draw an unused session token")

// Sessions maps session tokens to users. It implements interfaces.SessionRegistry.
//
// A user may hold any number of sessions; a token belongs to at most one user.
// When ttl is positive, sessions older than ttl no longer resolve and are
// removed by Expire. A zero ttl keeps sessions until logout.
type Sessions struct {
	mutex    sync.RWMutex
	sessions map[interfaces.SessionToken]interfaces.Session
	ttl      time.Duration

	now      func() time.Time
	newToken func() (string, error)
}

// NewSessions creates an empty session registry.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		sessions: make(map[interfaces.SessionToken]interfaces.Session),
		ttl:      ttl,
		now:      time.Now,
		newToken: cryptoutils.RandomSessionToken,
	}
}

// Create issues a fresh token that is not currently in use.
func (s *Sessions) Create(userID interfaces.UserID) (interfaces.SessionToken, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		raw, err := s.newToken()
		if err != nil {
			return "", err
		}
		token := interfaces.SessionToken(raw)

		s.mutex.Lock()
		if _, taken := s.sessions[token]; taken {
			s.mutex.Unlock()
			continue
		}
		s.sessions[token] = interfaces.Session{Token: token, UserID: userID, CreatedAt: s.now()}
		s.mutex.Unlock()

		return token, nil
	}
	return "", ErrTokenSpaceExhausted
}

// Resolve returns the user owning token. Expired sessions do not resolve.
func (s *Sessions) Resolve(token interfaces.SessionToken) (interfaces.UserID, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[token]
	if !ok || s.expired(session, s.now()) {
		return 0, false
	}
	return session.UserID, true
}

// Destroy forgets token. It is idempotent.
func (s *Sessions) Destroy(token interfaces.SessionToken) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.sessions, token)
}

// Expire removes sessions older than the ttl and returns how many were removed.
func (s *Sessions) Expire(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if s.expired(session, now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included until swept.
func (s *Sessions) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

func (s *Sessions) expired(session interfaces.Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(session.CreatedAt) >= s.ttl
}
