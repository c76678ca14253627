package datachannel

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrExecutorFull is returned when a SerialExecutor queue has no room.
	ErrExecutorFull = errors.New("datachannel: executor queue full")

	// ErrExecutorClosed is returned when submitting to a closed SerialExecutor.
	ErrExecutorClosed = errors.New("datachannel: executor closed")
)

// Executor runs listener invocations. Execute must not block the caller
// indefinitely: it is called on native callback threads.
type Executor interface {
	Execute(task func()) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(task func()) error

// Execute calls f(task).
func (f ExecutorFunc) Execute(task func()) error {
	return f(task)
}

// Inline runs tasks on the calling goroutine. It is the default executor.
var Inline Executor = ExecutorFunc(func(task func()) error {
	task()
	return nil
})

// DefaultQueueSize is the SerialExecutor queue size used when size <= 0.
const DefaultQueueSize = 1024

// SerialExecutor runs tasks one at a time, in submission order, on a
// dedicated goroutine. Sharing one SerialExecutor across resources preserves
// event ordering per handle.
type SerialExecutor struct {
	ch     chan func()
	mu     sync.Mutex
	closed bool
	done   chan struct{}
	log    *zap.Logger
}

// NewSerialExecutor starts a SerialExecutor with a queue of the given size.
func NewSerialExecutor(size int) *SerialExecutor {
	if size <= 0 {
		size = DefaultQueueSize
	}
	e := &SerialExecutor{
		ch:   make(chan func(), size),
		done: make(chan struct{}),
		log:  Logger(),
	}
	go e.consume()
	return e
}

// Execute enqueues task. It never blocks: a full queue returns ErrExecutorFull.
// The send happens under e.mu so Close cannot close the channel between the
// flag check and the send.
func (e *SerialExecutor) Execute(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrExecutorClosed
	}

	select {
	case e.ch <- task:
		return nil
	default:
		return ErrExecutorFull
	}
}

// Close rejects new tasks and waits until queued tasks have run.
// Calling Close from a task running on this executor deadlocks.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
	e.mu.Unlock()
	<-e.done
}

func (e *SerialExecutor) consume() {
	defer close(e.done)
	for task := range e.ch {
		e.run(task)
	}
}

func (e *SerialExecutor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("executor task panic", zap.Any("panic", r))
		}
	}()
	task()
}
