package signing

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/waas-signing-service/interfaces"
)

// Notifier receives the lifecycle of every ticket minted by the Coordinator.
type Notifier interface {
	// Open announces a freshly accepted ticket.
	Open(interfaces.Ticket)

	// Publish delivers the terminal event of a ticket.
	Publish(interfaces.SignEvent)
}

// Observer is told about submissions and completions, e.g. to export metrics.
type Observer interface {
	Submitted()
	Completed(outcome string, elapsed time.Duration)
}

// Completion outcomes reported to the Observer.
const (
	OutcomeSigned        = "signed"
	OutcomeKeyNotFound   = "key_not_found"
	OutcomeSigningFailed = "signing_failed"
)

type pendingRequest struct {
	message     string
	ticket      interfaces.Ticket
	submittedAt time.Time
}

type signedResult struct {
	signature   string
	ticket      interfaces.Ticket
	completedAt time.Time
}

// Coordinator is the per-user single-flight signing state machine:
//
//	Idle -> Pending -> InFlight -> Signed -> Idle
//
// A user can only move forward; an illegal transition fails instead of blocking.
// The mutex guards the pending, in-flight and signed maps and is held only for
// the map operations themselves. It is never held while talking to the KeyStore,
// the SigningBackend or the Notifier, so a slow signature for one user never
// blocks any other user.
type Coordinator struct {
	mu       sync.Mutex
	pending  map[interfaces.UserID]pendingRequest
	inFlight map[interfaces.UserID]interfaces.Ticket
	signed   map[interfaces.UserID]signedResult

	keys     interfaces.KeyStore
	backend  interfaces.SigningBackend
	notifier Notifier
	observer Observer
	log      *slog.Logger

	resultTTL time.Duration
	now       func() time.Time
	newTicket func() string
}

// NewCoordinator creates a coordinator with no pending work.
func NewCoordinator(keys interfaces.KeyStore, backend interfaces.SigningBackend, notifier Notifier, log *slog.Logger) *Coordinator {
	return &Coordinator{
		pending:   make(map[interfaces.UserID]pendingRequest),
		inFlight:  make(map[interfaces.UserID]interfaces.Ticket),
		signed:    make(map[interfaces.UserID]signedResult),
		keys:      keys,
		backend:   backend,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		newTicket: uuid.NewString,
	}
}

// SetObserver installs an observer for submissions and completions.
func (c *Coordinator) SetObserver(observer Observer) {
	c.observer = observer
}

// SetResultTTL bounds how long an uncollected signature is kept.
// Zero keeps signatures until they are retrieved.
func (c *Coordinator) SetResultTTL(ttl time.Duration) {
	c.resultTTL = ttl
}

// Submit accepts message for signing on behalf of userID.
//
// The key check runs first, so a user without a key always gets
// interfaces.ErrKeyNotFound. A user that is not Idle gets
// interfaces.ErrAlreadyPending; this covers a pending or in-flight message as
// well as a signature that has not been retrieved yet.
func (c *Coordinator) Submit(userID interfaces.UserID, message string) (interfaces.Ticket, error) {
	key, err := c.keys.Get(userID)
	if err != nil {
		return interfaces.Ticket{}, err
	}
	key.Zero()

	ticket := interfaces.Ticket{UserID: userID, ID: c.newTicket()}

	c.mu.Lock()
	if state := c.stateLocked(userID); state != interfaces.SignStateIdle {
		c.mu.Unlock()
		return interfaces.Ticket{}, fmt.Errorf("user %d is %s: %w", userID, state, interfaces.ErrAlreadyPending)
	}
	c.pending[userID] = pendingRequest{message: message, ticket: ticket, submittedAt: c.now()}
	c.mu.Unlock()

	c.notifier.Open(ticket)
	if c.observer != nil {
		c.observer.Submitted()
	}

	c.log.Debug("sign request accepted", "userID", userID, "ticket", ticket.ID)
	return ticket, nil
}

// Process claims the pending message of userID and signs it.
//
// Without a pending message it returns interfaces.ErrNoPendingMessage and has no
// side effects. Otherwise it always ends with exactly one published event and
// leaves the user either Signed or, on failure, Idle. A failed request is not
// retried.
func (c *Coordinator) Process(userID interfaces.UserID) error {
	c.mu.Lock()
	req, ok := c.pending[userID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("user %d: %w", userID, interfaces.ErrNoPendingMessage)
	}
	delete(c.pending, userID)
	c.inFlight[userID] = req.ticket
	c.mu.Unlock()

	start := c.now()
	signature, err := c.sign(userID, req.message)
	completedAt := c.now()

	c.mu.Lock()
	delete(c.inFlight, userID)
	if err == nil {
		c.signed[userID] = signedResult{signature: signature, ticket: req.ticket, completedAt: completedAt}
	}
	c.mu.Unlock()

	event := interfaces.SignEvent{UserID: userID, Ticket: req.ticket.ID, Error: interfaces.OutcomeNone}
	outcome := OutcomeSigned
	if err != nil {
		event.Error = eventMessage(err)
		outcome = OutcomeSigningFailed
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			outcome = OutcomeKeyNotFound
		}
	}

	c.notifier.Publish(event)
	if c.observer != nil {
		c.observer.Completed(outcome, completedAt.Sub(start))
	}

	if err != nil {
		c.log.Info("sign request failed", "userID", userID, "ticket", req.ticket.ID, "err", err)
		return err
	}
	c.log.Debug("sign request completed", "userID", userID, "ticket", req.ticket.ID, "duration", completedAt.Sub(start))
	return nil
}

// sign fetches the key and runs the backend. No coordinator lock is held here.
func (c *Coordinator) sign(userID interfaces.UserID, message string) (signature string, err error) {
	key, err := c.keys.Get(userID)
	if err != nil {
		return "", err
	}
	defer key.Zero()

	defer func() {
		if r := recover(); r != nil {
			signature = ""
			err = fmt.Errorf("%w: backend panic: %v", interfaces.ErrSigningFailed, r)
		}
	}()

	signature, err = c.backend.Sign([]byte(message), key)
	if err != nil && !errors.Is(err, interfaces.ErrSigningFailed) {
		err = fmt.Errorf("%w: %w", interfaces.ErrSigningFailed, err)
	}
	return signature, err
}

// Retrieve removes and returns the signature waiting for userID.
// It succeeds exactly once per signed message.
func (c *Coordinator) Retrieve(userID interfaces.UserID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, ok := c.signed[userID]
	if !ok || c.resultExpired(result, c.now()) {
		delete(c.signed, userID)
		return "", fmt.Errorf("user %d: %w", userID, interfaces.ErrNotFound)
	}
	delete(c.signed, userID)
	return result.signature, nil
}

// State returns the current position of userID in the state machine.
func (c *Coordinator) State(userID interfaces.UserID) interfaces.SignState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(userID)
}

func (c *Coordinator) stateLocked(userID interfaces.UserID) interfaces.SignState {
	if _, ok := c.pending[userID]; ok {
		return interfaces.SignStatePending
	}
	if _, ok := c.inFlight[userID]; ok {
		return interfaces.SignStateInFlight
	}
	if result, ok := c.signed[userID]; ok && !c.resultExpired(result, c.now()) {
		return interfaces.SignStateSigned
	}
	return interfaces.SignStateIdle
}

// Expire drops signatures that were not retrieved within the result ttl.
func (c *Coordinator) Expire(now time.Time) int {
	if c.resultTTL <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for userID, result := range c.signed {
		if c.resultExpired(result, now) {
			delete(c.signed, userID)
			removed++
		}
	}
	return removed
}

func (c *Coordinator) resultExpired(result signedResult, now time.Time) bool {
	return c.resultTTL > 0 && now.Sub(result.completedAt) >= c.resultTTL
}

// eventMessage turns a processing error into the text sent to the client.
func eventMessage(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrKeyNotFound):
		return "Key not found!"
	case errors.Is(err, interfaces.ErrSigningFailed):
		return "Signing of message failed!"
	default:
		return err.Error()
	}
}
