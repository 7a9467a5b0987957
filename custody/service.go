package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/ruteri/waas-signing-service/interfaces"
	"github.com/ruteri/waas-signing-service/signing"
)

// ErrServiceClosed is returned by Submit once Close has been called.
var ErrServiceClosed = errors.New("custody service is closed")

// Config tunes the signing pipeline and the janitor.
type Config struct {
	// SignWorkers bounds concurrently running signatures.
	SignWorkers int

	// ResultTTL bounds how long an uncollected signature is kept. Zero keeps it forever.
	ResultTTL time.Duration

	// NotificationTTL bounds how long an undelivered event is kept. Zero keeps it forever.
	NotificationTTL time.Duration

	// SweepInterval is how often Run expires stale state. Zero disables sweeping.
	SweepInterval time.Duration

	// Observer, when set, is notified of submissions and completions.
	Observer signing.Observer
}

// Status summarizes what a user currently holds.
type Status struct {
	UserID    interfaces.UserID
	Username  string
	HasKey    bool
	Address   string
	SignState interfaces.SignState
}

// expirer is implemented by stores that can drop stale entries.
type expirer interface {
	Expire(now time.Time) int
}

// Service is the entry point of the custody core. It wires credentials,
// sessions, keys and the signing pipeline together and enforces the rules
// that span them, such as at most one key per user.
type Service struct {
	credentials interfaces.CredentialStore
	sessions    interfaces.SessionRegistry
	keys        interfaces.KeyStore
	backend     interfaces.SigningBackend

	coordinator *signing.Coordinator
	hub         *signing.Hub
	dispatcher  *signing.Dispatcher

	// keyMu serializes the absence check and the store in GenerateKey.
	keyMu sync.Mutex

	// closeMu orders Submit against Close.
	closeMu sync.RWMutex
	closed  bool

	sweepInterval time.Duration
	log           *slog.Logger
}

// New creates a service. The signing pipeline is owned by the service.
func New(cfg *Config, credentials interfaces.CredentialStore, sessions interfaces.SessionRegistry, keys interfaces.KeyStore, backend interfaces.SigningBackend, log *slog.Logger) *Service {
	hub := signing.NewHub(cfg.NotificationTTL)

	coordinator := signing.NewCoordinator(keys, backend, hub, log)
	coordinator.SetResultTTL(cfg.ResultTTL)
	if cfg.Observer != nil {
		coordinator.SetObserver(cfg.Observer)
	}

	return &Service{
		credentials:   credentials,
		sessions:      sessions,
		keys:          keys,
		backend:       backend,
		coordinator:   coordinator,
		hub:           hub,
		dispatcher:    signing.NewDispatcher(coordinator, cfg.SignWorkers, log),
		sweepInterval: cfg.SweepInterval,
		log:           log,
	}
}

// Login checks the password and opens a new session.
func (s *Service) Login(username, password string) (interfaces.SessionToken, interfaces.UserID, error) {
	userID, err := s.credentials.Authenticate(username, password)
	if err != nil {
		s.log.Info("login rejected", "username", username, "err", err)
		return "", 0, err
	}

	token, err := s.sessions.Create(userID)
	if err != nil {
		return "", 0, fmt.Errorf("could not create session: %w", err)
	}

	s.log.Info("user logged in", "userID", userID)
	return token, userID, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (s *Service) Logout(token interfaces.SessionToken) {
	s.sessions.Destroy(token)
}

// Resolve returns the user behind a session token.
func (s *Service) Resolve(token interfaces.SessionToken) (interfaces.UserID, error) {
	userID, ok := s.sessions.Resolve(token)
	if !ok {
		return 0, interfaces.ErrSessionNotFound
	}
	return userID, nil
}

// Validate checks a pre-hashed credential without opening a session.
func (s *Service) Validate(username, passwordHash string) (interfaces.UserID, error) {
	return s.credentials.Validate(username, passwordHash)
}

// GenerateKey creates and stores the user's key. A user holds at most one key.
func (s *Service) GenerateKey(userID interfaces.UserID) (interfaces.SigningKey, error) {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	existing, err := s.keys.Get(userID)
	switch {
	case err == nil:
		existing.Zero()
		return nil, fmt.Errorf("user %d: %w", userID, interfaces.ErrKeyAlreadyExists)
	case !errors.Is(err, interfaces.ErrKeyNotFound):
		return nil, err
	}

	key, err := s.backend.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := s.keys.Set(userID, key); err != nil {
		key.Zero()
		return nil, fmt.Errorf("could not store key: %w", err)
	}

	s.log.Info("key generated", "userID", userID)
	return key, nil
}

// DiscardKey destroys the user's key.
//
// Sign state is left alone: a pending request fails with a "key not found"
// event once processed, and an already signed result stays retrievable.
func (s *Service) DiscardKey(userID interfaces.UserID) error {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	key, err := s.keys.Get(userID)
	if err != nil {
		return err
	}
	key.Zero()

	if err := s.keys.Discard(userID); err != nil {
		return err
	}

	s.log.Info("key discarded", "userID", userID)
	return nil
}

// Submit accepts a message for signing and schedules it. The outcome is
// delivered on the returned ticket.
func (s *Service) Submit(userID interfaces.UserID, message string) (interfaces.Ticket, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return interfaces.Ticket{}, ErrServiceClosed
	}

	ticket, err := s.coordinator.Submit(userID, message)
	if err != nil {
		return interfaces.Ticket{}, err
	}
	s.dispatcher.Dispatch(userID)
	return ticket, nil
}

// Subscribe waits for the outcome of one of the user's tickets.
// See signing.Hub.Subscribe.
func (s *Service) Subscribe(userID interfaces.UserID, ticketID string) (<-chan interfaces.SignEvent, func(), error) {
	return s.hub.Subscribe(userID, ticketID)
}

// Retrieve collects the user's signature. It succeeds once per signed message.
func (s *Service) Retrieve(userID interfaces.UserID) (string, error) {
	return s.coordinator.Retrieve(userID)
}

// Status reports the user's name, key and signing state.
func (s *Service) Status(userID interfaces.UserID) Status {
	status := Status{UserID: userID, SignState: s.coordinator.State(userID)}
	status.Username, _ = s.credentials.LookupName(userID)

	key, err := s.keys.Get(userID)
	if err != nil {
		return status
	}
	defer key.Zero()

	status.HasKey = true
	if address, err := cryptoutils.Address(key); err == nil {
		status.Address = address.Hex()
	}
	return status
}

// Run expires stale sessions, results and notifications every SweepInterval
// until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if s.sweepInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Sweep runs one expiry pass as of now.
func (s *Service) Sweep(now time.Time) {
	sessions := 0
	if e, ok := s.sessions.(expirer); ok {
		sessions = e.Expire(now)
	}
	results := s.coordinator.Expire(now)
	notifications := s.hub.Expire(now)

	if sessions+results+notifications > 0 {
		s.log.Debug("expired stale state", "sessions", sessions, "results", results, "notifications", notifications)
	}
}

// Close rejects further submissions and waits for dispatched ones to finish.
func (s *Service) Close() error {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()

	return s.dispatcher.Wait()
}
