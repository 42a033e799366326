package eventstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncWriter is a ResponseWriter safe to inspect while a channel writes to it.
type syncWriter struct {
	mu      sync.Mutex
	header  http.Header
	status  int
	body    strings.Builder
	flushes int
	failAt  int // fail the Nth write (1-based); 0 never fails
	writes  int
}

func newSyncWriter() *syncWriter {
	return &syncWriter{header: make(http.Header)}
}

func (s *syncWriter) Header() http.Header { return s.header }

func (s *syncWriter) WriteHeader(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *syncWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failAt != 0 && s.writes >= s.failAt {
		return 0, errors.New("broken pipe")
	}
	return s.body.Write(b)
}

func (s *syncWriter) Flush() {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
}

func (s *syncWriter) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body.String()
}

func waitClosed(t *testing.T, ch *Channel) {
	t.Helper()
	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("channel did not close, state = %s", ch.State())
	}
}

func TestOpen_WritesHeaders(t *testing.T) {
	w := newSyncWriter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := Open(ctx, w, NewRegistry(testLogger()), func(SendFunc, func()) func() { return nil })
	cancel()
	waitClosed(t, ch)

	if got := w.header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", got, "text/event-stream")
	}
	if got := w.header.Get("Cache-Control"); got != "no-cache, no-store" {
		t.Errorf("Cache-Control = %q, want %q", got, "no-cache, no-store")
	}
	if w.status != http.StatusOK {
		t.Errorf("status = %d, want %d", w.status, http.StatusOK)
	}
}

func TestSend_WritesFramesInOrder(t *testing.T) {
	w := newSyncWriter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var send SendFunc
	ch := Open(ctx, w, nil, func(s SendFunc, _ func()) func() {
		send = s
		s(Event{Data: "first"})
		return nil
	})

	send(Event{Event: "update", Data: "second"})
	send(Event{Comment: "keep-alive"})

	// frames queued before the close are written before Wait returns
	cancel()
	waitClosed(t, ch)

	want := "data: first\n\nevent: update\ndata: second\n\n: keep-alive\n\n"
	if got := w.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestAbort_RunsCleanupAndUnregisters(t *testing.T) {
	w := newSyncWriter()
	reg := NewRegistry(testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	var cleanups atomic.Int32
	ch := Open(ctx, w, reg, func(SendFunc, func()) func() {
		return func() { cleanups.Add(1) }
	})

	if reg.Len() != 1 {
		t.Fatalf("registry Len() = %d, want 1", reg.Len())
	}
	if ch.State() != StateOpen {
		t.Fatalf("State() = %s, want open", ch.State())
	}

	cancel()
	waitClosed(t, ch)

	if got := cleanups.Load(); got != 1 {
		t.Errorf("cleanup calls = %d, want 1", got)
	}
	if reg.Len() != 0 {
		t.Errorf("registry Len() = %d, want 0 after close", reg.Len())
	}
	if ch.Reason() != ReasonAborted {
		t.Errorf("Reason() = %q, want %q", ch.Reason(), ReasonAborted)
	}
	if ch.State() != StateClosed {
		t.Errorf("State() = %s, want closed", ch.State())
	}
}

func TestOpen_PreAbortedContext(t *testing.T) {
	w := newSyncWriter()
	reg := NewRegistry(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var inits, cleanups atomic.Int32
	ch := Open(ctx, w, reg, func(send SendFunc, _ func()) func() {
		inits.Add(1)
		send(Event{Data: "should not be sent"})
		return func() { cleanups.Add(1) }
	})

	// closed synchronously, no waiting required
	if ch.State() != StateClosed {
		t.Fatalf("State() = %s, want closed", ch.State())
	}
	if got := inits.Load(); got != 1 {
		t.Errorf("initializer calls = %d, want 1", got)
	}
	if got := cleanups.Load(); got != 1 {
		t.Errorf("cleanup calls = %d, want 1", got)
	}
	if body := w.String(); body != "" {
		t.Errorf("body = %q, want empty", body)
	}
	if reg.Len() != 0 {
		t.Errorf("registry Len() = %d, want 0", reg.Len())
	}
}

func TestOpen_DrainedRegistry(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Shutdown()

	var cleanups atomic.Int32
	ch := Open(context.Background(), newSyncWriter(), reg, func(SendFunc, func()) func() {
		return func() { cleanups.Add(1) }
	})

	if ch.State() != StateClosed {
		t.Fatalf("State() = %s, want closed", ch.State())
	}
	if ch.Reason() != ReasonShutdown {
		t.Errorf("Reason() = %q, want %q", ch.Reason(), ReasonShutdown)
	}
	if got := cleanups.Load(); got != 1 {
		t.Errorf("cleanup calls = %d, want 1", got)
	}
}

func TestRequestClose_IsAsynchronous(t *testing.T) {
	release := make(chan struct{})
	var requestClose func()

	ch := Open(context.Background(), newSyncWriter(), nil, func(_ SendFunc, rc func()) func() {
		requestClose = rc
		return func() { <-release }
	})

	returned := make(chan struct{})
	go func() {
		requestClose()
		close(returned)
	}()

	// cleanup is blocked on release, so a synchronous close would hang here
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("requestClose() blocked on the close sequence")
	}

	close(release)
	waitClosed(t, ch)

	if ch.Reason() != ReasonRequested {
		t.Errorf("Reason() = %q, want %q", ch.Reason(), ReasonRequested)
	}
}

func TestRequestClose_FromInitializer(t *testing.T) {
	var cleanups atomic.Int32

	ch := Open(context.Background(), newSyncWriter(), nil, func(_ SendFunc, requestClose func()) func() {
		requestClose()
		requestClose()
		return func() { cleanups.Add(1) }
	})
	waitClosed(t, ch)

	if got := cleanups.Load(); got != 1 {
		t.Errorf("cleanup calls = %d, want 1", got)
	}
}

func TestClose_IdempotentUnderConcurrentTriggers(t *testing.T) {
	for i := 0; i < 200; i++ {
		reg := NewRegistry(testLogger())
		ctx, cancel := context.WithCancel(context.Background())

		var cleanups atomic.Int32
		var requestClose func()
		ch := Open(ctx, newSyncWriter(), reg, func(_ SendFunc, rc func()) func() {
			requestClose = rc
			return func() { cleanups.Add(1) }
		})

		var wg sync.WaitGroup
		start := make(chan struct{})
		triggers := []func(){
			cancel,
			requestClose,
			requestClose,
			func() { reg.Shutdown() },
			func() { reg.Shutdown() },
			ch.Close,
		}
		for _, trigger := range triggers {
			wg.Add(1)
			go func(fire func()) {
				defer wg.Done()
				<-start
				fire()
			}(trigger)
		}
		close(start)
		wg.Wait()
		waitClosed(t, ch)

		if got := cleanups.Load(); got != 1 {
			t.Fatalf("iteration %d: cleanup calls = %d, want 1", i, got)
		}
		if reg.Len() != 0 {
			t.Fatalf("iteration %d: registry Len() = %d, want 0", i, reg.Len())
		}
	}
}

func TestSend_AfterCloseIsDropped(t *testing.T) {
	w := newSyncWriter()
	ctx, cancel := context.WithCancel(context.Background())

	var send SendFunc
	ch := Open(ctx, w, nil, func(s SendFunc, _ func()) func() {
		send = s
		return nil
	})
	send(Event{Data: "before"})

	cancel()
	waitClosed(t, ch)

	send(Event{Data: "after"})

	if body := w.String(); body != "data: before\n\n" {
		t.Errorf("body = %q, want only the frame sent before close", body)
	}
}

func TestSend_DuringCleanupIsDropped(t *testing.T) {
	w := newSyncWriter()
	var send SendFunc

	ch := Open(context.Background(), w, nil, func(s SendFunc, _ func()) func() {
		send = s
		return func() { send(Event{Data: "from cleanup"}) }
	})
	ch.Close()

	if body := w.String(); body != "" {
		t.Errorf("body = %q, want empty", body)
	}
}

func TestSend_WriteFailureClosesChannel(t *testing.T) {
	w := newSyncWriter()
	w.failAt = 1

	var cleanups atomic.Int32
	var send SendFunc
	ch := Open(context.Background(), w, nil, func(s SendFunc, _ func()) func() {
		send = s
		return func() { cleanups.Add(1) }
	}, WithLogger(testLogger()))

	send(Event{Data: "x"})
	waitClosed(t, ch)

	if ch.Reason() != ReasonWriteFailed {
		t.Errorf("Reason() = %q, want %q", ch.Reason(), ReasonWriteFailed)
	}
	if got := cleanups.Load(); got != 1 {
		t.Errorf("cleanup calls = %d, want 1", got)
	}
}

// stallWriter accepts the stream headers and then blocks every write until
// release is closed.
type stallWriter struct {
	header  http.Header
	release chan struct{}
	writes  atomic.Int32
}

func newStallWriter() *stallWriter {
	return &stallWriter{header: make(http.Header), release: make(chan struct{})}
}

func (s *stallWriter) Header() http.Header { return s.header }
func (s *stallWriter) WriteHeader(int)     {}
func (s *stallWriter) Flush()              {}

func (s *stallWriter) Write(b []byte) (int, error) {
	s.writes.Add(1)
	<-s.release
	return 0, errors.New("connection reset")
}

func TestSend_StalledClientDoesNotBlockSender(t *testing.T) {
	stalled := newStallWriter()
	healthy := newSyncWriter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sendStalled, sendHealthy SendFunc
	slow := Open(ctx, stalled, nil, func(s SendFunc, _ func()) func() {
		sendStalled = s
		return nil
	}, WithLogger(testLogger()))
	fast := Open(ctx, healthy, nil, func(s SendFunc, _ func()) func() {
		sendHealthy = s
		return nil
	})

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for i := 0; i < 10; i++ {
			sendStalled(Event{Data: "x"})
			sendHealthy(Event{Data: "x"})
		}
	}()

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("send blocked behind a stalled client")
	}

	cancel()
	waitClosed(t, fast)
	if got := strings.Count(healthy.String(), "data: x\n\n"); got != 10 {
		t.Errorf("healthy client frames = %d, want 10", got)
	}

	close(stalled.release)
	waitClosed(t, slow)
}

func TestSend_QueueOverflowClosesChannel(t *testing.T) {
	stalled := newStallWriter()
	defer close(stalled.release)

	var cleanups atomic.Int32
	var send SendFunc
	ch := Open(context.Background(), stalled, nil, func(s SendFunc, _ func()) func() {
		send = s
		return func() { cleanups.Add(1) }
	}, WithQueueSize(2), WithLogger(testLogger()))

	// one frame is held by the writer, two fill the queue, the next overflows
	for i := 0; i < 10; i++ {
		send(Event{Data: "x"})
	}

	// the close sequence waits on the stalled writer, so only the
	// transition is observable here
	deadline := time.After(2 * time.Second)
	for ch.Reason() == "" {
		select {
		case <-deadline:
			t.Fatal("channel did not start closing after its queue filled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if ch.Reason() != ReasonOverflow {
		t.Errorf("Reason() = %q, want %q", ch.Reason(), ReasonOverflow)
	}

	// cleanup runs before the writer is joined
	deadline = time.After(2 * time.Second)
	for cleanups.Load() != 1 {
		select {
		case <-deadline:
			t.Fatalf("cleanup calls = %d, want 1", cleanups.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// deadlineWriter records the write deadlines a ResponseController sets.
type deadlineWriter struct {
	*syncWriter
	deadlines []time.Time
}

func (d *deadlineWriter) SetWriteDeadline(t time.Time) error {
	d.mu.Lock()
	d.deadlines = append(d.deadlines, t)
	d.mu.Unlock()
	return nil
}

func TestClose_RefreshesWriteDeadline(t *testing.T) {
	w := &deadlineWriter{syncWriter: newSyncWriter()}
	timeout := time.Hour

	var send SendFunc
	ch := Open(context.Background(), w, nil, func(s SendFunc, _ func()) func() {
		send = s
		return nil
	}, WithWriteTimeout(timeout))

	send(Event{Data: "x"})
	ch.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.deadlines) != 2 {
		t.Fatalf("deadlines set = %d, want 2 (one per frame, one for the final flush)", len(w.deadlines))
	}
	last := w.deadlines[len(w.deadlines)-1]
	if remaining := time.Until(last); remaining < timeout-time.Minute {
		t.Errorf("final flush deadline in %s, want about %s", remaining, timeout)
	}
}

func TestCleanupPanic_StillCloses(t *testing.T) {
	reg := NewRegistry(testLogger())
	ch := Open(context.Background(), newSyncWriter(), reg, func(SendFunc, func()) func() {
		return func() { panic("boom") }
	}, WithLogger(testLogger()))

	ch.Close()

	if ch.State() != StateClosed {
		t.Errorf("State() = %s, want closed", ch.State())
	}
	if reg.Len() != 0 {
		t.Errorf("registry Len() = %d, want 0", reg.Len())
	}
}

func TestSend_ConcurrentProducers(t *testing.T) {
	w := newSyncWriter()
	ctx, cancel := context.WithCancel(context.Background())

	var send SendFunc
	ch := Open(ctx, w, nil, func(s SendFunc, _ func()) func() {
		send = s
		return nil
	}, WithQueueSize(500))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				send(Event{Data: "line1\nline2"})
			}
		}()
	}
	wg.Wait()
	cancel()
	waitClosed(t, ch)

	frames := strings.Split(strings.TrimSuffix(w.String(), "\n\n"), "\n\n")
	if len(frames) != 500 {
		t.Fatalf("frames = %d, want 500", len(frames))
	}
	for _, f := range frames {
		if f != "data: line1\ndata: line2" {
			t.Fatalf("interleaved frame %q", f)
		}
	}
}

func TestOpenClose_NoGoroutineLeaks(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	before := runtime.NumGoroutine()

	reg := NewRegistry(testLogger())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			ticker := time.NewTicker(time.Millisecond)
			stop := make(chan struct{})
			ch := Open(ctx, newSyncWriter(), reg, func(send SendFunc, requestClose func()) func() {
				go func() {
					for {
						select {
						case <-ticker.C:
							send(Event{Data: "tick"})
						case <-stop:
							return
						}
					}
				}()
				return func() {
					ticker.Stop()
					close(stop)
				}
			})
			time.Sleep(5 * time.Millisecond)
			if i%2 == 0 {
				cancel()
			} else {
				ch.Close()
				cancel()
			}
			ch.Wait()
		}(i)
	}
	wg.Wait()

	if reg.Len() != 0 {
		t.Errorf("registry Len() = %d, want 0", reg.Len())
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateOpen:    "open",
		StateClosing: "closing",
		StateClosed:  "closed",
		State(9):     "state(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}
