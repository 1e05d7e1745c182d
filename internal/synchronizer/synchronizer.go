// Package synchronizer keeps a client session's in-memory expenses and
// settings in step with the storage selected by the current identity mode.
//
// Each synchronizer follows the identity resolver. On every mode or identity
// change it bumps a generation counter, tears down the previous listener,
// clears its state and attaches to the new storage: the local store in guest
// mode, the remote document store when authenticated, nothing otherwise.
// Callbacks carry the generation they were created for and are dropped once
// it is stale.
package synchronizer

import (
	"errors"
	"sync"
	"time"

	"github.com/mmynk/spendtrack/internal/identity"
)

var (
	// ErrNotSignedIn is returned for mutations outside guest and
	// authenticated modes.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrLocalWrite wraps failures to persist to local storage.
	ErrLocalWrite = errors.New("failed to write local storage")

	// ErrUnknownCurrency is returned for currency codes go-money does not know.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// States delivers identity states: the current one immediately, then every
// change. *identity.Resolver implements it.
type States interface {
	Subscribe(fn func(identity.State)) (unsubscribe func())
}

var _ States = (*identity.Resolver)(nil)

// Option configures a synchronizer.
type Option func(*options)

type options struct {
	pollInterval time.Duration
}

// WithPollInterval makes guest mode re-read local storage every d, picking up
// writers that do not share this process's bus. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// listeners is a set of callbacks keyed by registration order.
type listeners[T any] struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	l.nextID++
	id := l.nextID
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners[T]) emit(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// notifier delivers the latest snapshot to listeners from its own goroutine.
// Bursts of notify calls coalesce, and the last delivery always reflects the
// state at or after the last notify.
type notifier[T any] struct {
	snapshot  func() T
	listeners listeners[T]
	kick      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

func newNotifier[T any](snapshot func() T) *notifier[T] {
	return &notifier[T]{
		snapshot: snapshot,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (n *notifier[T]) start() {
	n.startOnce.Do(func() { go n.run() })
}

func (n *notifier[T]) run() {
	for {
		select {
		case <-n.done:
			return
		case <-n.kick:
		}
		select {
		case <-n.done:
			return
		default:
		}
		n.listeners.emit(n.snapshot())
	}
}

func (n *notifier[T]) notify() {
	select {
	case n.kick <- struct{}{}:
	default:
	}
}

func (n *notifier[T]) close() {
	n.closeOnce.Do(func() { close(n.done) })
}

// generation tracks the active attachment and how to tear it down.
type generation struct {
	n    uint64
	stop func()
}

// next invalidates the current generation and returns its teardown.
func (g *generation) next() (uint64, func()) {
	g.n++
	stop := g.stop
	g.stop = nil
	return g.n, stop
}

// install records stop for gen. It reports false when gen is stale, in which
// case the caller must call stop itself.
func (g *generation) install(gen uint64, stop func()) bool {
	if g.n != gen {
		return false
	}
	g.stop = stop
	return true
}

func runStops(stops []func()) func() {
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// poll calls fn every interval until the returned function is called.
func poll(interval time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
