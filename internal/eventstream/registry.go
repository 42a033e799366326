package eventstream

import (
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
)

// Closer is a handle the [Registry] can close during shutdown.
//
// Close must be idempotent: a handle may be closed by the registry and by
// its own lifecycle at the same time.
type Closer interface {
	Close()
}

// Registry tracks every open [Channel] so they can all be closed when the
// process is told to terminate.
//
// A Registry is meant to live for the whole process. It is drained exactly
// once, by the first call to [Registry.Shutdown]; after that it is frozen and
// refuses new registrations.
//
// All methods are safe for concurrent use, including Register and Unregister
// calls that arrive while a shutdown pass is closing channels.
type Registry struct {
	mu      sync.Mutex
	closers map[Closer]struct{}
	drained bool
	logger  *slog.Logger
}

// NewRegistry creates an empty [Registry]. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		closers: make(map[Closer]struct{}),
		logger:  logger,
	}
}

// Register adds c to the registry.
//
// Returns false if the registry has already been drained; the caller should
// close itself since no shutdown pass will ever reach it.
func (r *Registry) Register(c Closer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.drained {
		return false
	}
	r.closers[c] = struct{}{}
	return true
}

// Unregister removes c. Unknown handles are ignored.
func (r *Registry) Unregister(c Closer) {
	r.mu.Lock()
	delete(r.closers, c)
	r.mu.Unlock()
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.closers)
}

// Shutdown closes every registered handle exactly once and freezes the
// registry. Only the first call does any work; it returns the number of
// handles it closed.
//
// Handles are closed outside the registry lock, in no particular order, so
// they are free to call Unregister from their Close method.
func (r *Registry) Shutdown() int {
	r.mu.Lock()
	if r.drained {
		r.mu.Unlock()
		return 0
	}
	r.drained = true
	snapshot := make([]Closer, 0, len(r.closers))
	for c := range r.closers {
		snapshot = append(snapshot, c)
	}
	clear(r.closers)
	r.mu.Unlock()

	r.logger.Info("closing open event streams", "open_channels", len(snapshot))
	for _, c := range snapshot {
		c.Close()
	}
	return len(snapshot)
}

// NotifySignals drains the registry when the first of sigs is delivered.
//
// Later deliveries are no-ops. The returned stop function stops listening
// and must be called to release the signal handler; it is safe to call more
// than once.
func (r *Registry) NotifySignals(sigs ...os.Signal) (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		select {
		case sig := <-ch:
			r.logger.Info("termination signal received", "signal", sig.String())
			r.Shutdown()
		case <-done:
		}
		signal.Stop(ch)
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
