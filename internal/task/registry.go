package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/phrazzld/tokensmith/internal/domain"
)

// ErrUnknownJobType is returned for job types without a registered handler.
var ErrUnknownJobType = errors.New("no handler registered for job type")

// Handler is the work function and run options of one job type.
type Handler struct {
	Work    WorkFunc
	Options RunOptions
}

// Registry maps job types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.JobType]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.JobType]Handler)}
}

// Register sets the handler for t, replacing any previous one.
func (r *Registry) Register(t domain.JobType, h Handler) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidJobType, t)
	}
	if h.Work == nil {
		return fmt.Errorf("handler for %s has no work function", t)
	}
	if h.Options.MaxRetries < 1 {
		h.Options.MaxRetries = domain.DefaultMaxRetries
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
	return nil
}

// Lookup returns the handler for t.
func (r *Registry) Lookup(t domain.JobType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[t]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %s", ErrUnknownJobType, t)
	}
	return h, nil
}
