package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/neurodash/neurodash/internal/platform/fetch"
)

// fakeTracker scripts the tracking record's behavior for one run.
type fakeTracker struct {
	mu          sync.Mutex
	createErr   error
	statuses    []Status // consumed one per poll; last value repeats
	statusErr   error
	created     bool
	failedWith  string
	statusReads int
}

func (f *fakeTracker) Create(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = true
	return nil
}

func (f *fakeTracker) Status(ctx context.Context) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusReads++
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if len(f.statuses) == 0 {
		return StatusProcessing, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeTracker) MarkFailed(ctx context.Context, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedWith = reason
	return nil
}

func (f *fakeTracker) reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusReads
}

func testRunner(interval time.Duration, attempts int) *Runner {
	return NewRunner(interval, attempts, zerolog.Nop())
}

func submitOK() Submitter {
	return SubmitFunc(func(ctx context.Context) error { return nil })
}

func TestRunCompletesOnThirdPoll(t *testing.T) {
	tracker := &fakeTracker{statuses: []Status{StatusProcessing, StatusProcessing, StatusCompleted}}
	r := testRunner(10*time.Millisecond, 480)

	start := time.Now()
	h := r.Run(context.Background(), tracker, submitOK())
	out, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if out.State != StateCompleted {
		t.Fatalf("state = %s, want %s", out.State, StateCompleted)
	}
	if got := tracker.reads(); got != 3 {
		t.Errorf("status reads = %d, want 3", got)
	}
	elapsed := time.Since(start)
	if elapsed < 30*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("completed after %v, want about three intervals", elapsed)
	}
	if !tracker.created {
		t.Error("tracking record was never created")
	}
}

func TestRunTrackingCreateFailure(t *testing.T) {
	tracker := &fakeTracker{createErr: errors.New("insert denied")}
	submitted := false
	submit := SubmitFunc(func(ctx context.Context) error {
		submitted = true
		return nil
	})

	h := testRunner(time.Millisecond, 5).Run(context.Background(), tracker, submit)
	out, _ := h.Wait(context.Background())

	if out.State != StateFailed || out.Kind != fetch.ErrJobSubmissionFailed {
		t.Errorf("outcome = %+v, want failed/job_submission_failed", out)
	}
	if submitted {
		t.Error("external service was called despite tracking failure")
	}
}

func TestRunSubmitFailureMarksRecord(t *testing.T) {
	tracker := &fakeTracker{}
	submit := SubmitFunc(func(ctx context.Context) error {
		return errors.New("analyzer rejected job: bad file")
	})

	h := testRunner(time.Millisecond, 5).Run(context.Background(), tracker, submit)
	out, _ := h.Wait(context.Background())

	if out.State != StateFailed || out.Kind != fetch.ErrJobExternalFailed {
		t.Errorf("outcome = %+v, want failed/job_external_failed", out)
	}
	tracker.mu.Lock()
	failedWith := tracker.failedWith
	tracker.mu.Unlock()
	if failedWith == "" {
		t.Error("tracking record was not marked failed")
	}
	if tracker.reads() != 0 {
		t.Error("polling started after a failed submission")
	}
}

func TestRunExhaustsAttempts(t *testing.T) {
	tracker := &fakeTracker{} // forever processing
	h := testRunner(time.Millisecond, 4).Run(context.Background(), tracker, submitOK())
	out, _ := h.Wait(context.Background())

	if out.State != StateTimedOut || out.Kind != fetch.ErrJobTimedOut {
		t.Errorf("outcome = %+v, want timed_out/job_timed_out", out)
	}
	if got := tracker.reads(); got != 4 {
		t.Errorf("status reads = %d, want 4", got)
	}
	// Giving up observation must not touch the record.
	tracker.mu.Lock()
	failedWith := tracker.failedWith
	tracker.mu.Unlock()
	if failedWith != "" {
		t.Errorf("record was marked failed on timeout: %q", failedWith)
	}
}

func TestRunBackendFailureEndsPolling(t *testing.T) {
	tracker := &fakeTracker{statuses: []Status{StatusProcessing, StatusFailed}}
	h := testRunner(time.Millisecond, 480).Run(context.Background(), tracker, submitOK())
	out, _ := h.Wait(context.Background())

	if out.State != StateFailed || out.Kind != fetch.ErrJobExternalFailed {
		t.Errorf("outcome = %+v, want failed/job_external_failed", out)
	}
}

func TestRunCancelStopsPolling(t *testing.T) {
	tracker := &fakeTracker{} // never terminal
	h := testRunner(5*time.Millisecond, 480).Run(context.Background(), tracker, submitOK())

	time.Sleep(20 * time.Millisecond)
	h.Cancel()

	out, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if out.State != StateCancelled {
		t.Errorf("state = %s, want %s", out.State, StateCancelled)
	}

	reads := tracker.reads()
	time.Sleep(30 * time.Millisecond)
	if tracker.reads() != reads {
		t.Error("polling continued after Cancel")
	}
}

func TestRunTransientReadErrorCostsOneAttempt(t *testing.T) {
	tracker := &fakeTracker{statusErr: errors.New("conn reset")}
	h := testRunner(time.Millisecond, 3).Run(context.Background(), tracker, submitOK())
	out, _ := h.Wait(context.Background())

	if out.State != StateTimedOut {
		t.Errorf("state = %s, want %s", out.State, StateTimedOut)
	}
	if got := tracker.reads(); got != 3 {
		t.Errorf("status reads = %d, want 3", got)
	}
}

func TestHandleStateProgression(t *testing.T) {
	tracker := &fakeTracker{statuses: []Status{StatusCompleted}}
	h := testRunner(time.Millisecond, 10).Run(context.Background(), tracker, submitOK())
	out, _ := h.Wait(context.Background())

	if out.State != StateCompleted {
		t.Fatalf("state = %s", out.State)
	}
	if h.State() != StateCompleted {
		t.Errorf("handle state = %s after completion", h.State())
	}
	if !h.State().Terminal() {
		t.Error("completed state not terminal")
	}
	if StatePolling.Terminal() {
		t.Error("polling reported terminal")
	}
}
