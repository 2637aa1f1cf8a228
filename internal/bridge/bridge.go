// Package bridge marshals agent work onto the host application's single
// mutation thread. Scene mutation is not thread safe on the host side, so
// every tool dispatch is queued as a task and consumed by exactly one
// goroutine standing in for the host main loop. Agent goroutines block on
// a bounded wait; the host side never blocks on the agent.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scenecraft/scenecraft/internal/logging"
	"github.com/scenecraft/scenecraft/internal/tools"
)

const (
	// DefaultTimeout bounds how long an agent goroutine waits for the host
	// thread to pick up and finish a task.
	DefaultTimeout = 30 * time.Second

	// DefaultQueueSize is the buffer of the host task queue.
	DefaultQueueSize = 64
)

// HostExecutor performs one tool operation on the host thread. Implemented
// by the real host integration; tests and the CLI use stubs.
type HostExecutor interface {
	ExecuteTool(name string, args map[string]interface{}) (*tools.Result, error)
}

// HostExecutorFunc adapts a function to HostExecutor.
type HostExecutorFunc func(name string, args map[string]interface{}) (*tools.Result, error)

func (f HostExecutorFunc) ExecuteTool(name string, args map[string]interface{}) (*tools.Result, error) {
	return f(name, args)
}

// EventType classifies bridge lifecycle events.
type EventType string

const (
	EventToolStarted  EventType = "tool_started"
	EventToolFinished EventType = "tool_finished"
	EventCancelled    EventType = "cancelled"
)

// Event is emitted around every host dispatch. Listeners must not block;
// delivery is fire-and-forget from the host thread's perspective.
type Event struct {
	Type      EventType              `json:"type"`
	RequestID uint64                 `json:"request_id"`
	Tool      string                 `json:"tool,omitempty"`
	Args      map[string]interface{} `json:"args,omitempty"`
	Success   bool                   `json:"success,omitempty"`
	Summary   string                 `json:"summary,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Listener receives bridge events.
type Listener func(Event)

type task struct {
	id   uint64
	fn   func()
	done chan struct{}
}

// Bridge owns the host task queue and the cancellation watermark.
type Bridge struct {
	host    HostExecutor
	timeout time.Duration
	log     *logging.Logger

	queue  chan *task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool

	// nextID hands out monotonically increasing request ids. cancelBelow
	// is the watermark: any request id at or below it is stale and must
	// not reach the host.
	nextID      atomic.Uint64
	cancelBelow atomic.Uint64

	listenersMu sync.RWMutex
	listeners   []Listener
}

// New builds a bridge around the given host executor.
func New(host HostExecutor, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		host:    host,
		timeout: timeout,
		log:     logging.Global().WithComponent("bridge"),
		queue:   make(chan *task, DefaultQueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the host thread loop. Safe to call once.
func (b *Bridge) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	b.wg.Add(1)
	go b.hostLoop()
}

// Stop drains the loop and releases all waiters.
func (b *Bridge) Stop() {
	b.cancel()
	if b.started.Load() {
		b.wg.Wait()
	}
}

func (b *Bridge) hostLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case t := <-b.queue:
			t.fn()
			close(t.done)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════
// Request ids and cancellation
// ═══════════════════════════════════════════════════════════════════════

// NextRequestID returns a fresh monotonic request id.
func (b *Bridge) NextRequestID() uint64 {
	return b.nextID.Add(1)
}

// CancelPending invalidates every request issued so far. In-flight and
// queued work with an id at or below the watermark is dropped before it
// reaches the host.
func (b *Bridge) CancelPending() {
	mark := b.nextID.Load()
	b.cancelBelow.Store(mark)
	b.log.Info("cancelled pending requests up to id %d", mark)
	b.emit(Event{Type: EventCancelled, RequestID: mark, Timestamp: time.Now()})
}

// IsCancelled reports whether a request id has been invalidated.
func (b *Bridge) IsCancelled(id uint64) bool {
	return id <= b.cancelBelow.Load()
}

// ═══════════════════════════════════════════════════════════════════════
// Host thread scheduling
// ═══════════════════════════════════════════════════════════════════════

// ErrBridgeStopped is returned when the bridge is shut down while a caller
// waits on the host thread.
var ErrBridgeStopped = fmt.Errorf("bridge stopped")

// TimeoutError reports that the host thread did not finish a task within
// the bridge timeout. The task may still run later; callers must treat the
// operation's effect as unknown.
type TimeoutError struct {
	RequestID uint64
	After     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s (request %d)", e.After, e.RequestID)
}

// RunOnHostThread executes fn on the host thread and waits for completion,
// bounded by the bridge timeout and the caller's context.
func (b *Bridge) RunOnHostThread(ctx context.Context, fn func()) error {
	id := b.NextRequestID()
	return b.runTask(ctx, id, fn)
}

func (b *Bridge) runTask(ctx context.Context, id uint64, fn func()) error {
	t := &task{id: id, fn: fn, done: make(chan struct{})}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case b.queue <- t:
	case <-timer.C:
		return &TimeoutError{RequestID: id, After: b.timeout}
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrBridgeStopped
	}

	select {
	case <-t.done:
		return nil
	case <-timer.C:
		return &TimeoutError{RequestID: id, After: b.timeout}
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrBridgeStopped
	}
}

// PostToHostThread schedules fn on the host thread without waiting. Used
// for UI refreshes and other callbacks whose result nobody consumes. The
// call never blocks; when the queue is full the task is dropped with a
// warning.
func (b *Bridge) PostToHostThread(fn func()) {
	t := &task{id: b.NextRequestID(), fn: fn, done: make(chan struct{})}
	select {
	case b.queue <- t:
	default:
		b.log.Warn("host queue full, dropping posted task")
	}
}

// ═══════════════════════════════════════════════════════════════════════
// Events
// ═══════════════════════════════════════════════════════════════════════

// AddListener registers a bridge event listener.
func (b *Bridge) AddListener(l Listener) {
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()
	b.listeners = append(b.listeners, l)
}

func (b *Bridge) emit(ev Event) {
	b.listenersMu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.listenersMu.RUnlock()
	for _, l := range listeners {
		go l(ev)
	}
}
