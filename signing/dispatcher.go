package signing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ruteri/waas-signing-service/interfaces"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds concurrently running signatures when nothing else is configured.
const DefaultWorkers = 64

// Processor signs the pending message of a user.
type Processor interface {
	Process(userID interfaces.UserID) error
}

// Dispatcher runs Process for accepted submissions in the background, with at
// most workers signatures in progress at once. Every dispatched user is
// processed whether or not a client ever subscribes to the outcome.
type Dispatcher struct {
	processor Processor
	sem       *semaphore.Weighted
	group     errgroup.Group
	log       *slog.Logger
}

// NewDispatcher creates a dispatcher. A non-positive workers value selects DefaultWorkers.
func NewDispatcher(processor Processor, workers int, log *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		processor: processor,
		sem:       semaphore.NewWeighted(int64(workers)),
		log:       log,
	}
}

// Dispatch schedules processing of userID's pending message and returns immediately.
func (d *Dispatcher) Dispatch(userID interfaces.UserID) {
	d.group.Go(func() error {
		// Acquire cannot fail with a background context.
		_ = d.sem.Acquire(context.Background(), 1)
		defer d.sem.Release(1)

		err := d.processor.Process(userID)
		switch {
		case err == nil:
		case errors.Is(err, interfaces.ErrNoPendingMessage):
			d.log.Debug("nothing to sign", "userID", userID)
		default:
			d.log.Warn("sign request did not complete", "userID", userID, "err", err)
		}
		return nil
	})
}

// Wait blocks until every dispatched request has been processed.
// No Dispatch may be issued concurrently with or after Wait.
func (d *Dispatcher) Wait() error {
	return d.group.Wait()
}
