package signing

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/ruteri/waas-signing-service/interfaces"
	"github.com/ruteri/waas-signing-service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	opened []interfaces.Ticket
	events []interfaces.SignEvent
}

func (n *recordingNotifier) Open(ticket interfaces.Ticket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, ticket)
}

func (n *recordingNotifier) Publish(event interfaces.SignEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []interfaces.SignEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]interfaces.SignEvent(nil), n.events...)
}

type countingObserver struct {
	mu        sync.Mutex
	submitted int
	outcomes  map[string]int
}

func (o *countingObserver) Submitted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted++
}

func (o *countingObserver) Completed(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[outcome]++
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCoordinator returns a coordinator over a real key store and an
// undelayed secp256k1 backend, with a key generated for user 1.
func newTestCoordinator(t *testing.T) (*Coordinator, *kms.KeyStore, *recordingNotifier) {
	t.Helper()

	keys := kms.NewKeyStore()
	backend := cryptoutils.NewSecp256k1Backend(0)
	key, err := backend.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, keys.Set(1, key))

	notifier := &recordingNotifier{}
	return NewCoordinator(keys, backend, notifier, testLogger()), keys, notifier
}

func TestCoordinator_HappyPath(t *testing.T) {
	coordinator, keys, notifier := newTestCoordinator(t)
	assert.Equal(t, interfaces.SignStateIdle, coordinator.State(1))

	ticket, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)
	assert.Equal(t, interfaces.UserID(1), ticket.UserID)
	assert.NotEmpty(t, ticket.ID)
	assert.Equal(t, interfaces.SignStatePending, coordinator.State(1))

	require.NoError(t, coordinator.Process(1))
	assert.Equal(t, interfaces.SignStateSigned, coordinator.State(1))

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, interfaces.SignEvent{UserID: 1, Ticket: ticket.ID, Error: interfaces.OutcomeNone}, events[0])

	signature, err := coordinator.Retrieve(1)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SignStateIdle, coordinator.State(1))

	key, err := keys.Get(1)
	require.NoError(t, err)
	pubkey, err := cryptoutils.PublicKey(key)
	require.NoError(t, err)
	valid, err := cryptoutils.VerifySignature([]byte("hello"), signature, pubkey)
	require.NoError(t, err)
	assert.True(t, valid)

	// retrieval is destructive
	_, err = coordinator.Retrieve(1)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestCoordinator_SubmitWithoutKey(t *testing.T) {
	coordinator, _, notifier := newTestCoordinator(t)

	_, err := coordinator.Submit(2, "hello")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	assert.Equal(t, interfaces.SignStateIdle, coordinator.State(2))
	assert.Empty(t, notifier.opened)
}

func TestCoordinator_SingleFlight(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t)

	_, err := coordinator.Submit(1, "first")
	require.NoError(t, err)

	_, err = coordinator.Submit(1, "second")
	assert.ErrorIs(t, err, interfaces.ErrAlreadyPending, "pending")

	require.NoError(t, coordinator.Process(1))
	_, err = coordinator.Submit(1, "third")
	assert.ErrorIs(t, err, interfaces.ErrAlreadyPending, "signed but not retrieved")

	_, err = coordinator.Retrieve(1)
	require.NoError(t, err)
	_, err = coordinator.Submit(1, "fourth")
	assert.NoError(t, err)
}

func TestCoordinator_ProcessWithoutPending(t *testing.T) {
	coordinator, _, notifier := newTestCoordinator(t)

	err := coordinator.Process(1)
	assert.ErrorIs(t, err, interfaces.ErrNoPendingMessage)
	assert.Empty(t, notifier.Events())
	assert.Equal(t, interfaces.SignStateIdle, coordinator.State(1))

	// a second Process for the same submission finds nothing
	_, err = coordinator.Submit(1, "hello")
	require.NoError(t, err)
	require.NoError(t, coordinator.Process(1))
	assert.ErrorIs(t, coordinator.Process(1), interfaces.ErrNoPendingMessage)
	assert.Len(t, notifier.Events(), 1)
}

func TestCoordinator_KeyDiscardedWhilePending(t *testing.T) {
	coordinator, keys, notifier := newTestCoordinator(t)

	ticket, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)
	require.NoError(t, keys.Discard(1))

	err = coordinator.Process(1)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
	assert.Equal(t, interfaces.SignStateIdle, coordinator.State(1))

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ticket.ID, events[0].Ticket)
	assert.Equal(t, "Key not found!", events[0].Error)
	assert.False(t, events[0].Succeeded())

	_, err = coordinator.Retrieve(1)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = coordinator.Submit(1, "again")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestCoordinator_SignedResultSurvivesDiscard(t *testing.T) {
	coordinator, keys, _ := newTestCoordinator(t)

	_, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)
	require.NoError(t, coordinator.Process(1))
	require.NoError(t, keys.Discard(1))

	signature, err := coordinator.Retrieve(1)
	require.NoError(t, err)
	assert.NotEmpty(t, signature)
}

func TestCoordinator_SigningFailureReturnsToIdle(t *testing.T) {
	keys := kms.NewKeyStore()
	require.NoError(t, keys.Set(1, interfaces.SigningKey{0x01}))

	backend := &kms.MockSigningBackend{}
	backend.On("Sign", []byte("hello"), interfaces.SigningKey{0x01}).Return("", errors.New("hsm offline"))

	notifier := &recordingNotifier{}
	observer := &countingObserver{}
	coordinator := NewCoordinator(keys, backend, notifier, testLogger())
	coordinator.SetObserver(observer)

	_, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)

	err = coordinator.Process(1)
	assert.ErrorIs(t, err, interfaces.ErrSigningFailed)
	assert.Equal(t, interfaces.SignStateIdle, coordinator.State(1))

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Signing of message failed!", events[0].Error)

	assert.Equal(t, 1, observer.submitted)
	assert.Equal(t, 1, observer.outcomes[OutcomeSigningFailed])
	backend.AssertExpectations(t)
}

func TestCoordinator_BackendPanicReturnsToIdle(t *testing.T) {
	keys := kms.NewKeyStore()
	require.NoError(t, keys.Set(1, interfaces.SigningKey{0x01}))

	backend := &kms.MockSigningBackend{}
	backend.On("Sign", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	coordinator := NewCoordinator(keys, backend, &recordingNotifier{}, testLogger())
	_, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)

	assert.ErrorIs(t, coordinator.Process(1), interfaces.ErrSigningFailed)
	assert.Equal(t, interfaces.SignStateIdle, coordinator.State(1))
}

func TestCoordinator_MalformedKey(t *testing.T) {
	keys := kms.NewKeyStore()
	require.NoError(t, keys.Set(1, interfaces.SigningKey{0x01, 0x02}))

	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(keys, cryptoutils.NewSecp256k1Backend(0), notifier, testLogger())

	_, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)
	assert.ErrorIs(t, coordinator.Process(1), interfaces.ErrSigningFailed)
	assert.Equal(t, "Signing of message failed!", notifier.Events()[0].Error)
}

func TestCoordinator_SlowUserDoesNotBlockOthers(t *testing.T) {
	keys := kms.NewKeyStore()
	require.NoError(t, keys.Set(1, interfaces.SigningKey{0x01}))
	require.NoError(t, keys.Set(2, interfaces.SigningKey{0x02}))

	release := make(chan struct{})
	backend := &kms.MockSigningBackend{}
	backend.On("Sign", []byte("slow"), mock.Anything).Run(func(mock.Arguments) { <-release }).Return("sig-slow", nil)
	backend.On("Sign", []byte("fast"), mock.Anything).Return("sig-fast", nil)

	coordinator := NewCoordinator(keys, backend, &recordingNotifier{}, testLogger())

	_, err := coordinator.Submit(1, "slow")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- coordinator.Process(1) }()

	require.Eventually(t, func() bool {
		return coordinator.State(1) == interfaces.SignStateInFlight
	}, time.Second, time.Millisecond)

	// user 1 is stuck inside Sign; user 2 must go through untouched
	_, err = coordinator.Submit(2, "fast")
	require.NoError(t, err)
	require.NoError(t, coordinator.Process(2))
	signature, err := coordinator.Retrieve(2)
	require.NoError(t, err)
	assert.Equal(t, "sig-fast", signature)

	_, err = coordinator.Submit(1, "again")
	assert.ErrorIs(t, err, interfaces.ErrAlreadyPending, "in flight")

	close(release)
	require.NoError(t, <-done)

	signature, err = coordinator.Retrieve(1)
	require.NoError(t, err)
	assert.Equal(t, "sig-slow", signature)
}

func TestCoordinator_ConcurrentSubmitAdmitsOne(t *testing.T) {
	coordinator, _, notifier := newTestCoordinator(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := coordinator.Submit(1, "hello"); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, interfaces.ErrAlreadyPending)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Len(t, notifier.opened, 1)
}

func TestCoordinator_ResultTTL(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	coordinator.now = func() time.Time { return now }
	coordinator.SetResultTTL(time.Minute)

	_, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)
	require.NoError(t, coordinator.Process(1))
	assert.Equal(t, 0, coordinator.Expire(now.Add(30*time.Second)))

	now = now.Add(time.Minute)
	assert.Equal(t, interfaces.SignStateIdle, coordinator.State(1), "expired results do not count")
	assert.Equal(t, 1, coordinator.Expire(now))

	_, err = coordinator.Retrieve(1)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	_, err = coordinator.Submit(1, "again")
	assert.NoError(t, err)
}

func TestCoordinator_NoResultTTLKeepsResults(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t)

	_, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)
	require.NoError(t, coordinator.Process(1))

	assert.Equal(t, 0, coordinator.Expire(time.Now().Add(24*time.Hour)))
	_, err = coordinator.Retrieve(1)
	assert.NoError(t, err)
}

func TestCoordinator_Observer(t *testing.T) {
	coordinator, keys, _ := newTestCoordinator(t)
	observer := &countingObserver{}
	coordinator.SetObserver(observer)

	_, err := coordinator.Submit(1, "hello")
	require.NoError(t, err)
	require.NoError(t, coordinator.Process(1))
	_, err = coordinator.Retrieve(1)
	require.NoError(t, err)

	_, err = coordinator.Submit(1, "hello")
	require.NoError(t, err)
	require.NoError(t, keys.Discard(1))
	require.Error(t, coordinator.Process(1))

	assert.Equal(t, 2, observer.submitted)
	assert.Equal(t, 1, observer.outcomes[OutcomeSigned])
	assert.Equal(t, 1, observer.outcomes[OutcomeKeyNotFound])
}
