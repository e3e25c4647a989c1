package mqtt3

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("mqtt3: dispatcher closed")

// Handler consumes decoded packets.
type Handler interface {
	HandlePacket(connID string, pkt Packet)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(connID string, pkt Packet)

// HandlePacket calls f(connID, pkt).
func (f HandlerFunc) HandlePacket(connID string, pkt Packet) { f(connID, pkt) }

type dispatchTask struct {
	connID string
	pkt    Packet
}

// Dispatcher fans decoded packets out to every subscribed Handler.
//
// Work is spread over a fixed number of queues, each drained by a single
// goroutine. All packets of one connection land on the same queue, so
// handlers observe them in the order they were read. Handlers receive the
// same packet value; they must treat it as read-only.
type Dispatcher struct {
	mu      sync.RWMutex // guards closed against Dispatch
	queues  []chan dispatchTask
	closed  bool
	wg      sync.WaitGroup
	metrics Metrics

	subMu    sync.Mutex
	handlers atomic.Pointer[[]Handler]
}

// NewDispatcher creates a dispatcher with fanSize queues of queueSize
// entries each. A nil metrics disables metrics.
func NewDispatcher(fanSize, queueSize int, metrics Metrics) *Dispatcher {
	if fanSize < 1 {
		fanSize = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}

	d := &Dispatcher{
		queues:  make([]chan dispatchTask, fanSize),
		metrics: metrics,
	}
	for i := range d.queues {
		d.queues[i] = make(chan dispatchTask, queueSize)
		d.wg.Add(1)
		go d.worker(d.queues[i])
	}

	return d
}

func (d *Dispatcher) worker(queue chan dispatchTask) {
	defer d.wg.Done()
	for task := range queue {
		handlers := d.handlers.Load()
		if handlers == nil {
			continue
		}
		for _, h := range *handlers {
			h.HandlePacket(task.connID, task.pkt)
		}
	}
}

// Subscribe registers a handler for every packet dispatched from now on.
func (d *Dispatcher) Subscribe(h Handler) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	var handlers []Handler
	if cur := d.handlers.Load(); cur != nil {
		handlers = append(handlers, *cur...)
	}
	handlers = append(handlers, h)
	d.handlers.Store(&handlers)
}

// Dispatch queues pkt for delivery. It blocks while the connection's
// queue is full, until ctx is done.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, pkt Packet) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	queue := d.queues[xxhash.Sum64String(connID)%uint64(len(d.queues))]
	select {
	case queue <- dispatchTask{connID: connID, pkt: pkt}:
		return nil
	case <-ctx.Done():
		d.metrics.Counter(MetricDispatchDropped, nil).Inc()
		return ctx.Err()
	}
}

// Close stops accepting packets and waits until queued packets have been
// delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.wg.Wait()
}
