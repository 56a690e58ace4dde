package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// MessageWriter writes one gaze message to the output stream.
// protocol.Encoder implements it.
type MessageWriter interface {
	Encode(p gaze.Point) error
}

// Outbox is a bounded FIFO between the capture loop and the output stream.
// A single goroutine drains it. Push and Close must be called from one goroutine.
type Outbox struct {
	w       MessageWriter
	policy  OverflowPolicy
	queue   chan Sample
	written func(Sample) // called by the drain after each successful write

	failed  chan struct{} // Closed on the first write error
	drained chan struct{} // Closed when the drain goroutine exits

	mu     sync.Mutex
	err    error
	closed bool

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewOutbox creates an outbox of the given capacity and starts draining it.
// A size below 1 is treated as 1 and an unknown policy as PolicyBlock.
// written, if non-nil, runs on the drain goroutine for every sample that
// reached w; samples discarded by PolicyDropOldest are never reported.
func NewOutbox(w MessageWriter, size int, policy OverflowPolicy, written func(Sample)) *Outbox {
	if size < 1 {
		size = 1
	}
	if p, err := ParseOverflowPolicy(string(policy)); err == nil {
		policy = p
	} else {
		policy = PolicyBlock
	}

	o := &Outbox{
		w:       w,
		policy:  policy,
		queue:   make(chan Sample, size),
		written: written,
		failed:  make(chan struct{}),
		drained: make(chan struct{}),
	}
	go o.drain()
	return o
}

func (o *Outbox) drain() {
	defer close(o.drained)
	for s := range o.queue {
		if err := o.w.Encode(s.Point); err != nil {
			o.mu.Lock()
			o.err = err
			o.mu.Unlock()
			close(o.failed)
			return
		}
		o.sent.Add(1)
		if o.written != nil {
			o.written(s)
		}
	}
}

// Push queues s. With PolicyBlock it waits for room or ctx; with
// PolicyDropOldest it never waits. After a write failure Push returns that
// error.
func (o *Outbox) Push(ctx context.Context, s Sample) error {
	if err := o.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrOutboxClosed
	}

	if o.policy == PolicyDropOldest {
		for {
			select {
			case o.queue <- s:
				return nil
			default:
			}
			select {
			case <-o.queue:
				o.dropped.Add(1)
			default:
			}
		}
	}

	select {
	case o.queue <- s:
		return nil
	case <-o.failed:
		return o.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the first write error, if any.
func (o *Outbox) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Sent returns how many points were written.
func (o *Outbox) Sent() int64 {
	return o.sent.Load()
}

// Dropped returns how many points were discarded by PolicyDropOldest.
func (o *Outbox) Dropped() int64 {
	return o.dropped.Load()
}

// Close writes the remaining points, stops the drain goroutine and returns
// the first write error. Safe to call more than once.
func (o *Outbox) Close() error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	<-o.drained
	return o.Err()
}
