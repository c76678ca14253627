package datachannel

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ListenerID identifies one registration in a Listeners container.
type ListenerID uint64

type listenerEntry[T any] struct {
	id ListenerID
	fn func(T)
}

// Listeners holds the callbacks registered for one event kind of one
// resource.
//
// The native event source is enabled when the first listener is registered
// and disabled again when the last one is removed or the container is
// closed. Invocation iterates an immutable snapshot, so registrations made
// while an event is being delivered (including closing the owning resource
// from a listener) never disturb the delivery in progress.
type Listeners[T any] struct {
	name     string
	activate func(enabled bool) error
	exec     Executor
	log      *zap.Logger

	// mu guards writers of list and the activation bookkeeping.
	// It is never held while calling listeners or activate.
	mu          sync.Mutex
	list        atomic.Pointer[[]listenerEntry[T]]
	closed      atomic.Bool
	nextID      ListenerID
	active      bool
	reconciling bool
}

func newListeners[T any](name string, activate func(enabled bool) error, exec Executor, log *zap.Logger) *Listeners[T] {
	if exec == nil {
		exec = Inline
	}
	if log == nil {
		log = Logger()
	}
	l := &Listeners[T]{
		name:     name,
		activate: activate,
		exec:     exec,
		log:      log.With(zap.String("event", name)),
	}
	empty := []listenerEntry[T]{}
	l.list.Store(&empty)
	return l
}

// Name returns the event kind the container serves.
func (l *Listeners[T]) Name() string {
	return l.name
}

// Register appends fn and returns its ID. Registering into an empty container
// enables the native event source; if that fails the registration is undone
// and the error returned. Fails with ErrClosed once the container is closed.
//
// A registration that lands while another caller's activation is in flight
// returns nil without waiting for it. If that activation fails, the failing
// caller's rollback retries it for the listeners still registered; should the
// retry fail too, those listeners stay registered with the source disabled
// until the container next becomes empty and is registered into again.
func (l *Listeners[T]) Register(fn func(T)) (ListenerID, error) {
	if fn == nil {
		return 0, fmt.Errorf("%w: nil %s listener", ErrInvalid, l.name)
	}

	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		return 0, fmt.Errorf("%w: %s listeners", ErrClosed, l.name)
	}
	old := *l.list.Load()
	l.nextID++
	id := l.nextID
	next := make([]listenerEntry[T], len(old), len(old)+1)
	copy(next, old)
	next = append(next, listenerEntry[T]{id: id, fn: fn})
	l.list.Store(&next)
	l.mu.Unlock()

	if len(old) == 0 {
		if err := l.reconcile(); err != nil {
			l.remove(id)
			l.reconcile()
			return 0, err
		}
	}
	return id, nil
}

// Deregister removes the registration with the given ID and reports whether
// it was present. Removing the last listener disables the native event source.
func (l *Listeners[T]) Deregister(id ListenerID) bool {
	removed, nowEmpty := l.remove(id)
	if removed && nowEmpty {
		l.reconcile()
	}
	return removed
}

// DeregisterAll removes every listener without closing the container.
func (l *Listeners[T]) DeregisterAll() {
	if l.clear() {
		l.reconcile()
	}
}

// Close removes every listener and rejects further registrations.
// Events arriving afterwards are dropped. Close is idempotent.
func (l *Listeners[T]) Close() {
	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		return
	}
	l.closed.Store(true)
	l.mu.Unlock()

	l.clear()
	l.reconcile()
}

// Closed reports whether Close has been called.
func (l *Listeners[T]) Closed() bool {
	return l.closed.Load()
}

// Len returns the number of registered listeners.
func (l *Listeners[T]) Len() int {
	return len(*l.list.Load())
}

// invoke delivers ev to a snapshot of the current listeners, in registration
// order. A panicking listener is logged and skipped. Events for a closed
// container are dropped; events for an empty one are dropped silently.
func (l *Listeners[T]) invoke(ev T) {
	if l.closed.Load() {
		l.log.Warn("dropping event for closed listeners")
		return
	}
	snapshot := *l.list.Load()
	if len(snapshot) == 0 {
		return
	}

	deliver := func() {
		if l.closed.Load() {
			l.log.Warn("dropping event for closed listeners")
			return
		}
		for _, e := range snapshot {
			l.call(e, ev)
		}
	}
	if err := l.exec.Execute(deliver); err != nil {
		l.log.Error("dropping event", zap.Error(err))
	}
}

func (l *Listeners[T]) call(e listenerEntry[T], ev T) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("listener panic",
				zap.Uint64("listener", uint64(e.id)),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	e.fn(ev)
}

// remove drops the entry with the given ID.
func (l *Listeners[T]) remove(id ListenerID) (removed, nowEmpty bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	old := *l.list.Load()
	for i, e := range old {
		if e.id != id {
			continue
		}
		next := make([]listenerEntry[T], 0, len(old)-1)
		next = append(next, old[:i]...)
		next = append(next, old[i+1:]...)
		l.list.Store(&next)
		return true, len(next) == 0
	}
	return false, false
}

// clear empties the list and reports whether it held anything.
func (l *Listeners[T]) clear() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(*l.list.Load()) == 0 {
		return false
	}
	empty := []listenerEntry[T]{}
	l.list.Store(&empty)
	return true
}

// reconcile brings the native activation state in line with the listener
// list, calling activate once per transition. The callback runs without l.mu
// held. A caller that finds another reconcile in progress (concurrent or
// reentrant from inside activate) leaves the work to it: the running loop
// re-reads the list after every callback.
//
// The returned error is the first activation failure seen by this call.
func (l *Listeners[T]) reconcile() error {
	l.mu.Lock()
	if l.reconciling {
		l.mu.Unlock()
		return nil
	}
	l.reconciling = true

	var firstErr error
	for {
		want := !l.closed.Load() && len(*l.list.Load()) > 0
		if want == l.active {
			break
		}
		l.mu.Unlock()
		err := l.callActivate(want)
		l.mu.Lock()

		if err != nil && want {
			// The source stays disabled; the caller decides whether to
			// retry.
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		// A failed disable leaves nothing to roll back: the handle is
		// either going away or the native layer rejected it already.
		l.active = want
	}

	l.reconciling = false
	l.mu.Unlock()
	return firstErr
}

func (l *Listeners[T]) callActivate(enabled bool) (err error) {
	if l.activate == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s activation panic: %v", ErrFailure, l.name, r)
		}
		if err != nil {
			l.log.Warn("activation callback failed", zap.Bool("enabled", enabled), zap.Error(err))
		}
	}()
	return l.activate(enabled)
}
