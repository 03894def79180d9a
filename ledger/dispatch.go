package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/document-registry/interfaces"
)

const (
	// publishTimeout bounds how long one receipt's events may take to reach
	// all publishers.
	publishTimeout = 10 * time.Second

	defaultPublishQueueSize = 1024
)

// dispatcher forwards committed receipts to the external publishers from a
// single goroutine, in commit order. Submit only enqueues, so a slow or
// unreachable publisher never delays a transition.
type dispatcher struct {
	publishers []interfaces.EventPublisher
	log        *slog.Logger
	timeout    time.Duration

	// ctx is cancelled when Close gives up waiting; in-flight publishes
	// abort and the remaining queue is dropped.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	queue  chan *Receipt
	done   chan struct{}
}

func newDispatcher(publishers []interfaces.EventPublisher, size int, timeout time.Duration, log *slog.Logger) *dispatcher {
	if size <= 0 {
		size = defaultPublishQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &dispatcher{
		publishers: publishers,
		log:        log,
		timeout:    timeout,
		ctx:        ctx,
		cancel:     cancel,
		queue:      make(chan *Receipt, size),
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

// enqueue hands r to the publishers without blocking. It reports false if
// the queue is full or the dispatcher is closed, in which case r is dropped.
func (d *dispatcher) enqueue(r *Receipt) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	select {
	case d.queue <- r:
		return true
	default:
		return false
	}
}

func (d *dispatcher) run() {
	defer close(d.done)

	dropped := 0
	for r := range d.queue {
		if d.ctx.Err() != nil {
			dropped++
			continue
		}
		d.publish(r)
	}
	if dropped > 0 {
		d.log.Warn("Dropped unpublished receipts on shutdown", "count", dropped)
	}
}

func (d *dispatcher) publish(r *Receipt) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	for _, p := range d.publishers {
		if err := p.Publish(ctx, r.Events); err != nil {
			d.log.Error("Failed to publish events",
				slog.String("publisher", p.Name()),
				slog.Uint64("seq", r.Seq),
				"err", err)
		}
	}
}

// close stops accepting receipts and waits for the queue to drain. When ctx
// ends first, in-flight publishing is cancelled and the rest is dropped.
func (d *dispatcher) close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return fmt.Errorf("failed to drain publish queue: %w", ctx.Err())
	}
}
