package datachannel

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type activations struct {
	mu    sync.Mutex
	calls []bool
	err   error
}

func (a *activations) activate(enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, enabled)
	if enabled {
		return a.err
	}
	return nil
}

func (a *activations) get() []bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]bool(nil), a.calls...)
}

func newTestListeners(t *testing.T) (*Listeners[int], *activations, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	a := &activations{}
	return newListeners[int]("test", a.activate, nil, zap.New(core)), a, logs
}

func TestListenersActivation(t *testing.T) {
	l, a, _ := newTestListeners(t)

	id1, err := l.Register(func(int) {})
	require.NoError(t, err)
	id2, err := l.Register(func(int) {})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, []bool{true}, a.get(), "second registration must not re-enable")

	assert.True(t, l.Deregister(id1))
	assert.Equal(t, []bool{true}, a.get())
	assert.True(t, l.Deregister(id2))
	assert.Equal(t, []bool{true, false}, a.get())

	assert.False(t, l.Deregister(id2), "double deregister")
	assert.Equal(t, []bool{true, false}, a.get())

	_, err = l.Register(func(int) {})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, a.get())
	assert.Equal(t, 1, l.Len())
}

func TestListenersRegisterNil(t *testing.T) {
	l, a, _ := newTestListeners(t)
	_, err := l.Register(nil)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Empty(t, a.get())
}

func TestListenersActivationFailure(t *testing.T) {
	l, a, logs := newTestListeners(t)
	a.err = errors.New("native refused")

	_, err := l.Register(func(int) {})
	require.Error(t, err)
	assert.Equal(t, 0, l.Len(), "failed registration is rolled back")
	assert.Equal(t, []bool{true}, a.get())
	assert.Equal(t, 1, logs.FilterMessage("activation callback failed").Len())

	a.err = nil
	_, err = l.Register(func(int) {})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, a.get())
}

func TestListenersActivationPanic(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	l := newListeners[int]("test", func(bool) error { panic("boom") }, nil, zap.New(core))

	_, err := l.Register(func(int) {})
	assert.ErrorIs(t, err, ErrFailure)
	assert.Equal(t, 0, l.Len())
}

func TestListenersInvokeOrder(t *testing.T) {
	l, _, _ := newTestListeners(t)

	var got []string
	_, err := l.Register(func(v int) { got = append(got, "a") })
	require.NoError(t, err)
	_, err = l.Register(func(v int) { got = append(got, "b") })
	require.NoError(t, err)
	_, err = l.Register(func(v int) { got = append(got, "c") })
	require.NoError(t, err)

	l.invoke(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestListenersPanicIsolation(t *testing.T) {
	l, _, logs := newTestListeners(t)

	var after int
	_, err := l.Register(func(int) { panic("listener bug") })
	require.NoError(t, err)
	_, err = l.Register(func(v int) { after = v })
	require.NoError(t, err)

	assert.NotPanics(t, func() { l.invoke(7) })
	assert.Equal(t, 7, after)

	entries := logs.FilterMessage("listener panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestListenersSnapshot(t *testing.T) {
	l, _, _ := newTestListeners(t)

	var calls int
	var second ListenerID
	_, err := l.Register(func(int) {
		calls++
		// Registered during delivery: must not see the current event.
		_, err := l.Register(func(int) { calls += 100 })
		require.NoError(t, err)
		l.Deregister(second)
	})
	require.NoError(t, err)
	second, err = l.Register(func(int) { calls += 10 })
	require.NoError(t, err)

	l.invoke(0)
	assert.Equal(t, 11, calls, "snapshot taken before delivery")
	assert.Equal(t, 2, l.Len())
}

func TestListenersClose(t *testing.T) {
	l, a, logs := newTestListeners(t)

	var called bool
	_, err := l.Register(func(int) { called = true })
	require.NoError(t, err)

	l.Close()
	assert.True(t, l.Closed())
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, []bool{true, false}, a.get())

	l.Close()
	assert.Equal(t, []bool{true, false}, a.get(), "close is idempotent")

	_, err = l.Register(func(int) {})
	assert.ErrorIs(t, err, ErrClosed)

	l.invoke(1)
	assert.False(t, called)
	assert.Equal(t, 1, logs.FilterMessage("dropping event for closed listeners").Len())
}

func TestListenersCloseEmpty(t *testing.T) {
	l, a, _ := newTestListeners(t)
	l.Close()
	assert.Empty(t, a.get(), "never-activated container is not deactivated")
}

func TestListenersInvokeEmpty(t *testing.T) {
	l, _, logs := newTestListeners(t)
	l.invoke(1)
	assert.Equal(t, 0, logs.Len())
}

func TestListenersCloseFromListener(t *testing.T) {
	l, a, _ := newTestListeners(t)

	var calls int
	_, err := l.Register(func(int) {
		calls++
		l.Close()
	})
	require.NoError(t, err)
	_, err = l.Register(func(int) { calls++ })
	require.NoError(t, err)

	l.invoke(1)
	assert.Equal(t, 2, calls, "delivery in progress completes on its snapshot")
	assert.Equal(t, []bool{true, false}, a.get())
}

func TestListenersDeregisterAll(t *testing.T) {
	l, a, _ := newTestListeners(t)

	for i := 0; i < 3; i++ {
		_, err := l.Register(func(int) {})
		require.NoError(t, err)
	}
	l.DeregisterAll()
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Closed())
	assert.Equal(t, []bool{true, false}, a.get())

	l.DeregisterAll()
	assert.Equal(t, []bool{true, false}, a.get())

	_, err := l.Register(func(int) {})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, a.get())
}

func TestListenersConcurrent(t *testing.T) {
	l, a, _ := newTestListeners(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id, err := l.Register(func(int) {})
				if err != nil {
					continue
				}
				l.invoke(j)
				l.Deregister(id)
			}
		}()
	}
	wg.Wait()

	calls := a.get()
	require.NotEmpty(t, calls)
	// Enable and disable strictly alternate.
	for i, c := range calls {
		assert.Equal(t, i%2 == 0, c, "transition %d", i)
	}
	assert.False(t, calls[len(calls)-1])
}

func TestListenersExecutorFull(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	full := ExecutorFunc(func(func()) error { return ErrExecutorFull })
	l := newListeners[int]("test", nil, full, zap.New(core))

	var called bool
	_, err := l.Register(func(int) { called = true })
	require.NoError(t, err)

	l.invoke(1)
	assert.False(t, called)
	assert.Equal(t, 1, logs.FilterMessage("dropping event").Len())
}

func TestListenersActivationFailureRetriesForOthers(t *testing.T) {
	var l *Listeners[int]
	var calls []bool
	var second ListenerID
	var secondErr error
	l = newListeners[int]("test", func(enabled bool) error {
		calls = append(calls, enabled)
		if len(calls) == 1 {
			second, secondErr = l.Register(func(int) {})
			return errors.New("native refused")
		}
		return nil
	}, nil, zap.NewNop())

	_, err := l.Register(func(int) {})
	require.Error(t, err)
	require.NoError(t, secondErr)
	assert.Equal(t, []bool{true, true}, calls)
	assert.Equal(t, 1, l.Len())

	assert.True(t, l.Deregister(second))
	assert.Equal(t, []bool{true, true, false}, calls)
}
