package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport names the client side of a bridged call.
type Transport string

const (
	TransportBrowser   Transport = "browser"
	TransportTelephony Transport = "telephony"
)

var ErrNotFound = errors.New("call not found")

// Call is one live bridged conversation.
type Call struct {
	ID        string    `json:"call_id"`
	Transport Transport `json:"transport"`
	StreamSID string    `json:"stream_sid,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Registry tracks calls currently bridged to the agent. It exists for
// observability and clean shutdown accounting, not for call history.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*Call
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		calls: make(map[string]*Call),
		now:   time.Now,
	}
}

// Register adds a new call and returns its descriptor.
func (r *Registry) Register(transport Transport) *Call {
	c := &Call{
		ID:        uuid.NewString(),
		Transport: transport,
		StartedAt: r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.ID] = c
	return clone(c)
}

// SetStreamSID attaches the telephony stream identifier once it is known.
func (r *Registry) SetStreamSID(callID, streamSID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callID]
	if !ok {
		return ErrNotFound
	}
	c.StreamSID = streamSID
	return nil
}

// Get returns a snapshot of one call.
func (r *Registry) Get(callID string) (*Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calls[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

// Release removes an ended call. Releasing an unknown id is a no-op so
// teardown paths can release unconditionally.
func (r *Registry) Release(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, callID)
}

// ActiveCount reports how many calls are currently bridged.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}

// Active returns snapshots of all live calls, for the status endpoint.
func (r *Registry) Active() []*Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Call, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, clone(c))
	}
	return out
}

func clone(c *Call) *Call {
	cp := *c
	return &cp
}
