package scan

import (
	"sync"

	"github.com/google/uuid"

	"github.com/neurodash/neurodash/internal/analysis"
)

// JobBoard tracks the handle of every in-flight analysis job by session id,
// so status and cancel endpoints can reach jobs started by earlier requests.
type JobBoard struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*analysis.Handle
}

func NewJobBoard() *JobBoard {
	return &JobBoard{jobs: make(map[uuid.UUID]*analysis.Handle)}
}

func (b *JobBoard) Register(id uuid.UUID, h *analysis.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[id] = h
}

// Get returns the handle for id, or nil when the job is unknown or already
// cleaned up.
func (b *JobBoard) Get(id uuid.UUID) *analysis.Handle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jobs[id]
}

// Cancel stops the job if it is still tracked. Reports whether a handle was
// found.
func (b *JobBoard) Cancel(id uuid.UUID) bool {
	b.mu.RLock()
	h := b.jobs[id]
	b.mu.RUnlock()
	if h == nil {
		return false
	}
	h.Cancel()
	return true
}

func (b *JobBoard) Remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.jobs, id)
}

// Len reports the number of tracked jobs, terminal ones included.
func (b *JobBoard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.jobs)
}
