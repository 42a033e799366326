package eventstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// defaultWriteTimeout bounds a single frame write so a stalled client
	// cannot pin the writer goroutine forever.
	defaultWriteTimeout = 5 * time.Second

	// DefaultQueueSize is the number of frames a channel buffers for its
	// writer before it gives up on the client.
	DefaultQueueSize = 256
)

// State is the lifecycle state of a [Channel].
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Reason records which trigger closed a [Channel].
type Reason string

const (
	// ReasonAborted means the request context was cancelled (client gone or
	// server shutting down).
	ReasonAborted Reason = "aborted"

	// ReasonRequested means the initializer called requestClose.
	ReasonRequested Reason = "requested"

	// ReasonShutdown means the [Registry] was drained.
	ReasonShutdown Reason = "shutdown"

	// ReasonWriteFailed means writing a frame to the client failed.
	ReasonWriteFailed Reason = "write_failed"

	// ReasonOverflow means the client fell so far behind that its outbound
	// queue filled up.
	ReasonOverflow Reason = "overflow"
)

// SendFunc queues one event for the client. It never blocks on the network.
type SendFunc func(Event)

// Initializer wires a [Channel] to its event sources.
//
// It is called exactly once, synchronously, from [Open]. send may be called
// from any goroutine until the channel closes; after that it is a no-op.
// requestClose schedules the channel's close sequence on another goroutine
// and may be called any number of times. The returned cleanup function
// (which may be nil) is run exactly once when the channel closes and must
// release whatever the initializer installed.
type Initializer func(send SendFunc, requestClose func()) (cleanup func())

// Option configures a [Channel].
type Option func(*Channel)

// WithLogger sets the logger used for lifecycle and write-failure events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWriteTimeout sets the per-frame write deadline. Non-positive values
// are ignored.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithQueueSize sets how many frames may wait for the writer. A client that
// falls further behind is closed with [ReasonOverflow]. Non-positive values
// are ignored.
func WithQueueSize(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// Channel is one client's Server-Sent Events stream.
//
// A Channel moves from open to closing to closed exactly once. The first of
// these triggers starts the close sequence, and the rest are absorbed:
//   - the context passed to [Open] is cancelled
//   - the initializer calls requestClose
//   - the [Registry] it is registered with shuts down
//
// Frames are written by a single writer goroutine fed from a bounded queue,
// so send never waits on the client and one slow client cannot hold up the
// producers that feed every other channel.
//
// The close sequence runs the initializer's cleanup, detaches from the
// context and the registry, lets the writer finish the frames queued before
// the close began, flushes the response and then releases [Channel.Wait].
// No frame is queued once the sequence has started.
type Channel struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	registry     *Registry
	logger       *slog.Logger
	writeTimeout time.Duration
	queueSize    int

	mu     sync.Mutex
	state  State
	reason Reason

	// queue is closed by finish once no sender can reach it; writerDone
	// is closed when the writer has drained it.
	queue      chan []byte
	writerDone chan struct{}

	// deadlinesSupported is owned by the writer goroutine until writerDone.
	deadlinesSupported bool

	cleanup        func()
	stopWatch      func() bool
	closeRequested atomic.Bool

	// ready is closed once Open has finished wiring the channel; close
	// paths wait on it so they never observe a half-built channel.
	ready chan struct{}
	done  chan struct{}
}

// Open starts an event stream on w and runs init.
//
// Open writes the stream headers, registers the channel with registry (which
// may be nil) and calls init exactly once. If ctx is already cancelled, or
// registry has already been drained, init still runs so its cleanup has
// something to release, but every send is dropped and the channel is closed
// before Open returns.
//
// The caller must keep the handler running until [Channel.Wait] returns:
// w is only valid for the lifetime of the handler.
func Open(ctx context.Context, w http.ResponseWriter, registry *Registry, init Initializer, opts ...Option) *Channel {
	c := &Channel{
		w:                  w,
		rc:                 http.NewResponseController(w),
		registry:           registry,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		writeTimeout:       defaultWriteTimeout,
		queueSize:          DefaultQueueSize,
		deadlinesSupported: true,
		writerDone:         make(chan struct{}),
		ready:              make(chan struct{}),
		done:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)
	_ = c.rc.Flush()

	c.queue = make(chan []byte, c.queueSize)
	go c.writeLoop()

	// a registry shutdown that reaches c before ready is closed waits for
	// Open to finish wiring it
	switch {
	case ctx.Err() != nil:
		c.state = StateClosing
		c.reason = ReasonAborted
	case registry != nil && !registry.Register(c):
		c.state = StateClosing
		c.reason = ReasonShutdown
	}

	c.cleanup = init(c.send, func() { c.requestClose(ReasonRequested) })

	c.mu.Lock()
	aborted := c.state != StateOpen
	c.mu.Unlock()

	if aborted {
		close(c.ready)
		c.finish()
		return c
	}

	c.stopWatch = context.AfterFunc(ctx, func() { c.shutdown(ReasonAborted) })
	close(c.ready)

	c.logger.Debug("event stream opened")
	return c
}

// Close runs the close sequence as part of a registry shutdown. It blocks
// until the channel is closed or another trigger has claimed the close.
func (c *Channel) Close() {
	c.shutdown(ReasonShutdown)
}

// Wait blocks until the channel is closed.
func (c *Channel) Wait() {
	<-c.done
}

// Done returns a channel that is closed once the channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason returns what closed the channel, or "" while it is open.
func (c *Channel) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// send queues one frame. Holding mu while queueing keeps frames ordered and
// prevents them from interleaving with the close transition.
func (c *Channel) send(e Event) {
	frame := Format(e)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return
	}
	select {
	case c.queue <- frame:
	default:
		c.logger.Warn("event stream queue full, closing", "queue_size", c.queueSize)
		c.requestClose(ReasonOverflow)
	}
}

// writeLoop writes queued frames until the queue is closed. After a failed
// write the remaining frames are discarded.
func (c *Channel) writeLoop() {
	defer close(c.writerDone)

	failed := false
	for frame := range c.queue {
		if failed {
			continue
		}
		if err := c.write(frame); err != nil {
			c.logger.Warn("event stream write failed", "error", err)
			failed = true
			c.requestClose(ReasonWriteFailed)
		}
	}
}

// write is only called from the writer goroutine.
func (c *Channel) write(frame []byte) error {
	if c.deadlinesSupported {
		if err := c.rc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			// deadline not supported by underlying connection, continue without
			c.logger.Debug("event stream write deadlines not supported", "error", err)
			c.deadlinesSupported = false
		}
	}

	if _, err := c.w.Write(frame); err != nil {
		return err
	}

	if err := c.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func (c *Channel) requestClose(reason Reason) {
	if !c.closeRequested.CompareAndSwap(false, true) {
		return
	}
	go c.shutdown(reason)
}

// shutdown claims the open -> closing transition and, if it won, runs the
// rest of the close sequence.
func (c *Channel) shutdown(reason Reason) {
	<-c.ready

	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.reason = reason
	c.mu.Unlock()

	c.finish()
}

// finish runs after the channel entered StateClosing. Only the goroutine
// that made that transition calls it.
func (c *Channel) finish() {
	c.runCleanup()

	if c.stopWatch != nil {
		c.stopWatch()
	}
	if c.registry != nil {
		c.registry.Unregister(c)
	}

	// no sender queues once the state left open
	close(c.queue)
	<-c.writerDone

	if c.deadlinesSupported {
		// an idle stream's last deadline has long passed; give the final
		// flush and the chunked terminator a fresh one
		_ = c.rc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_ = c.rc.Flush()

	c.mu.Lock()
	c.state = StateClosed
	reason := c.reason
	c.mu.Unlock()

	close(c.done)
	c.logger.Debug("event stream closed", "reason", string(reason))
}

// runCleanup calls the initializer's cleanup with panic recovery so one
// broken initializer cannot leave the channel stuck in StateClosing.
func (c *Channel) runCleanup() {
	if c.cleanup == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			c.logger.Error("event stream cleanup panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	c.cleanup()
}
