package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RequestKindFlashcards = "flashcards"
	RequestKindText       = "text"
)

// TrackedRequest is one in-flight model request. RequestID is the correlation
// id from the caller and need not be unique.
type TrackedRequest struct {
	ID        string
	RequestID string
	Kind      string
	OwnerID   string
	StartedAt time.Time
}

// RequestTracker counts in-flight model requests for the health endpoint.
// The count is advisory; nothing is throttled on it.
type RequestTracker struct {
	mu       sync.RWMutex
	requests map[string]TrackedRequest
}

func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		requests: make(map[string]TrackedRequest),
	}
}

// Start registers a request under a fresh key and returns the func that removes it.
func (t *RequestTracker) Start(requestID, kind, ownerID string) func() {
	id := uuid.NewString()
	t.mu.Lock()
	t.requests[id] = TrackedRequest{
		ID:        id,
		RequestID: requestID,
		Kind:      kind,
		OwnerID:   ownerID,
		StartedAt: time.Now().UTC(),
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.requests, id)
			t.mu.Unlock()
		})
	}
}

func (t *RequestTracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.requests)
}
