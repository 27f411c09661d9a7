package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pdfmerger/internal/models"
)

// Event is one broadcast snapshot together with its JSON encoding, which is
// computed once per broadcast and shared by every listener.
type Event struct {
	Snapshot models.Snapshot
	Data     []byte
}

// Listener is a single-slot mailbox. When a new event arrives before the
// previous one was read, the old one is dropped.
type Listener struct {
	ch chan Event
}

// C exposes the mailbox for callers that need to select on it directly.
func (l *Listener) C() <-chan Event { return l.ch }

// Channel fans a job's snapshots out to its listeners.
type Channel struct {
	snapshot func() models.Snapshot

	mu        sync.Mutex
	listeners map[*Listener]struct{}
	onChange  func(delta int)
}

func newChannel(snapshot func() models.Snapshot) *Channel {
	return &Channel{
		snapshot:  snapshot,
		listeners: make(map[*Listener]struct{}),
	}
}

// Register adds a new listener. Callers must Unregister it when done.
func (c *Channel) Register() *Listener {
	l := &Listener{ch: make(chan Event, 1)}
	c.mu.Lock()
	c.listeners[l] = struct{}{}
	onChange := c.onChange
	c.mu.Unlock()
	if onChange != nil {
		onChange(1)
	}
	return l
}

// Unregister removes l. Removing an unknown or already removed listener is a
// no-op.
func (c *Channel) Unregister(l *Listener) {
	c.mu.Lock()
	_, ok := c.listeners[l]
	delete(c.listeners, l)
	onChange := c.onChange
	c.mu.Unlock()
	if ok && onChange != nil {
		onChange(-1)
	}
}

// Len returns the number of registered listeners.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Broadcast delivers the current snapshot to every listener without blocking.
// A snapshot that cannot be encoded is not delivered.
func (c *Channel) Broadcast() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.listeners) == 0 {
		return nil
	}

	ev, err := NewEvent(c.snapshot())
	if err != nil {
		return err
	}
	for l := range c.listeners {
		deliver(l, ev)
	}
	return nil
}

// Wait blocks until l receives an event, timeout elapses or ctx is done. A
// timeout of zero or less waits without a deadline.
func (c *Channel) Wait(ctx context.Context, l *Listener, timeout time.Duration) (Event, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case ev := <-l.ch:
		return ev, nil
	case <-expired:
		return Event{}, ErrWaitTimeout
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (c *Channel) setOnChange(fn func(delta int)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// NewEvent wraps s with its JSON encoding.
func NewEvent(s models.Snapshot) (Event, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return Event{}, fmt.Errorf("encode snapshot of job %s at revision %d: %w", s.JobID, s.Revision, err)
	}
	return Event{Snapshot: s, Data: data}, nil
}

// deliver is called with the channel lock held, so no other producer can
// refill the slot between the drain and the send.
func deliver(l *Listener, ev Event) {
	select {
	case l.ch <- ev:
		return
	default:
	}
	select {
	case <-l.ch:
	default:
	}
	select {
	case l.ch <- ev:
	default:
	}
}
