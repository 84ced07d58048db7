// Package events publishes entity change events after the change commits.
package events

import (
	"context"
	"sync"
	"time"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed mutation of one row.
type Change struct {
	Entity  string    `json:"entity"`
	Table   string    `json:"table"`
	Op      Op        `json:"op"`
	ID      any       `json:"id"`
	TraceID string    `json:"trace_id,omitempty"`
	At      time.Time `json:"at"`
}

type outboxKey struct{}

// Outbox holds actions that must wait for an enclosing transaction to
// commit.
type Outbox struct {
	mu      sync.Mutex
	pending []func()
}

// WithOutbox returns a context carrying a new, empty outbox.
func WithOutbox(ctx context.Context) (context.Context, *Outbox) {
	ob := &Outbox{}
	return context.WithValue(ctx, outboxKey{}, ob), ob
}

// OutboxFrom returns the outbox carried by ctx, or nil.
func OutboxFrom(ctx context.Context) *Outbox {
	if ctx == nil {
		return nil
	}
	ob, _ := ctx.Value(outboxKey{}).(*Outbox)
	return ob
}

// Defer queues fn until Flush.
func (o *Outbox) Defer(fn func()) {
	o.mu.Lock()
	o.pending = append(o.pending, fn)
	o.mu.Unlock()
}

// Flush runs the queued actions in order and empties the outbox.
func (o *Outbox) Flush() {
	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Discard drops the queued actions.
func (o *Outbox) Discard() {
	o.mu.Lock()
	o.pending = nil
	o.mu.Unlock()
}

// Len reports how many actions are queued.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
