package datachannel

import (
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

type lifecycleState int32

const (
	stateOpen lifecycleState = iota
	stateClosing
	stateClosed
)

func (s lifecycleState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// lifecycle is the Open -> Closing -> Closed state machine shared by all
// resources. Only the caller that wins beginClose performs teardown; every
// other caller returns immediately.
type lifecycle struct {
	state atomic.Int32
}

func (lc *lifecycle) current() lifecycleState {
	return lifecycleState(lc.state.Load())
}

func (lc *lifecycle) isOpen() bool {
	return lc.current() == stateOpen
}

// check returns ErrClosed once close has started.
func (lc *lifecycle) check() error {
	if !lc.isOpen() {
		return ErrClosed
	}
	return nil
}

func (lc *lifecycle) beginClose() bool {
	return lc.state.CompareAndSwap(int32(stateOpen), int32(stateClosing))
}

func (lc *lifecycle) finishClose() {
	lc.state.Store(int32(stateClosed))
}

type closer interface {
	Close()
}

// nativeStep is one native teardown call.
type nativeStep struct {
	op   string
	call func() int32
}

// teardown runs the shared close sequence after beginClose succeeded:
// containers are closed, the handle is unregistered so no new dispatch can
// resolve the wrapper, then the native close/delete calls run. Native
// failures are logged and collected; they never stop the sequence.
//
// Listeners are never invoked under a lock, so teardown may run from inside
// a listener of the resource being closed.
func teardown(log *zap.Logger, containers []closer, unregister func(), steps ...nativeStep) *multierror.Error {
	for _, c := range containers {
		c.Close()
	}
	unregister()

	var result *multierror.Error
	for _, s := range steps {
		if err := checkResult(s.op, s.call()); err != nil {
			log.Info("native teardown failed", zap.String("op", s.op), zap.Error(err))
			result = multierror.Append(result, err)
		}
	}
	return result
}
