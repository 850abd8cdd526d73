package analysis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/neurodash/neurodash/internal/platform/fetch"
)

// Status is the lifecycle of a tracking record as written by the backend
// and the analysis service.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// State is the observable phase of a submitted job.
type State string

const (
	StateIdle        State = "idle"
	StateSubmitting  State = "submitting"
	StateAwaitingAck State = "awaiting_ack"
	StatePolling     State = "polling"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateTimedOut    State = "timed_out"
	StateCancelled   State = "cancelled"
)

// Terminal reports whether the job can no longer change state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// Tracker is the job's tracking record, bound to one submission. The scan
// service supplies an implementation backed by its repository.
type Tracker interface {
	// Create writes the tracking record with status processing, before the
	// external service is contacted.
	Create(ctx context.Context) error
	// Status reads the record's current status.
	Status(ctx context.Context) (Status, error)
	// MarkFailed records a submission-time failure on the record.
	MarkFailed(ctx context.Context, reason string) error
}

// Submitter posts the job to the external service. *Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context) error
}

// SubmitFunc adapts a closure into a Submitter.
type SubmitFunc func(ctx context.Context) error

func (f SubmitFunc) Submit(ctx context.Context) error { return f(ctx) }

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollAttempts = 480
)

// Runner drives jobs through submission and polling. One Runner serves all
// submissions; each Run call gets its own Handle.
type Runner struct {
	interval time.Duration
	attempts int
	log      zerolog.Logger
}

func NewRunner(interval time.Duration, attempts int, logger zerolog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	return &Runner{interval: interval, attempts: attempts, log: logger}
}

// Outcome is the terminal result of a job.
type Outcome struct {
	State   State
	Kind    fetch.ErrorKind
	Message string
}

// Handle observes and controls one running job.
type Handle struct {
	state  atomic.Value // State
	cancel context.CancelFunc
	done   chan Outcome
	once   sync.Once
}

// State returns the job's current phase.
func (h *Handle) State() State { return h.state.Load().(State) }

// Done delivers the terminal Outcome exactly once.
func (h *Handle) Done() <-chan Outcome { return h.done }

// Cancel stops submission or polling. The backend record is left as-is;
// cancelling observation does not fail the job server-side.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks for the outcome or context cancellation.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case out := <-h.done:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (h *Handle) finish(out Outcome) {
	h.once.Do(func() {
		h.state.Store(out.State)
		h.done <- out
	})
}

// Run starts the job lifecycle in a goroutine and returns immediately.
//
// The sequence is: create the tracking record, submit to the external
// service, then poll the record at a fixed interval until it completes,
// fails, or the attempt budget runs out. A failure before the external call
// marks the record failed; exhausting the poll budget leaves the record
// untouched, since the service may still finish after the observer gives up.
func (r *Runner) Run(ctx context.Context, tracker Tracker, submit Submitter) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan Outcome, 1)}
	h.state.Store(StateIdle)

	go func() {
		defer cancel()

		h.state.Store(StateSubmitting)
		if err := tracker.Create(ctx); err != nil {
			h.finish(Outcome{
				State:   StateFailed,
				Kind:    fetch.ErrJobSubmissionFailed,
				Message: fmt.Sprintf("create tracking record: %v", err),
			})
			return
		}

		h.state.Store(StateAwaitingAck)
		if err := submit.Submit(ctx); err != nil {
			if ctx.Err() != nil {
				h.finish(Outcome{State: StateCancelled, Message: "cancelled before acknowledgment"})
				return
			}
			reason := err.Error()
			if mErr := tracker.MarkFailed(context.WithoutCancel(ctx), reason); mErr != nil {
				r.log.Error().Err(mErr).Msg("mark tracking record failed")
			}
			h.finish(Outcome{
				State:   StateFailed,
				Kind:    fetch.ErrJobExternalFailed,
				Message: reason,
			})
			return
		}

		h.state.Store(StatePolling)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for attempt := 1; attempt <= r.attempts; attempt++ {
			select {
			case <-ctx.Done():
				h.finish(Outcome{State: StateCancelled, Message: "polling cancelled"})
				return
			case <-ticker.C:
			}

			status, err := tracker.Status(ctx)
			if err != nil {
				if ctx.Err() != nil {
					h.finish(Outcome{State: StateCancelled, Message: "polling cancelled"})
					return
				}
				// A transient read error costs one attempt, nothing more.
				r.log.Warn().Err(err).Int("attempt", attempt).Msg("poll tracking record")
				continue
			}

			switch status {
			case StatusCompleted:
				h.finish(Outcome{State: StateCompleted})
				return
			case StatusFailed:
				h.finish(Outcome{
					State:   StateFailed,
					Kind:    fetch.ErrJobExternalFailed,
					Message: "analysis failed",
				})
				return
			}
		}

		h.finish(Outcome{
			State:   StateTimedOut,
			Kind:    fetch.ErrJobTimedOut,
			Message: fmt.Sprintf("no terminal status after %d polls", r.attempts),
		})
	}()

	return h
}
