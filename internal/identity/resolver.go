// Package identity decides which storage mode a client session runs in.
//
// The Resolver combines the external auth subscription with the session's
// guest flag and exposes exactly one derived State. Consumers switch on
// State.Mode instead of combining booleans themselves.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmynk/spendtrack/internal/local"
	"github.com/mmynk/spendtrack/internal/models"
)

// GuestKey is the session storage key recording guest intent.
const GuestKey = "isGuest"

var ErrAlreadySignedIn = errors.New("guest mode is unavailable while signed in")

// AuthSource delivers the signed-in user, or nil, on every auth change.
type AuthSource interface {
	OnAuthStateChanged(fn func(*models.User)) (unsubscribe func())
}

// Mode is the storage mode derived from auth and guest state.
type Mode int

const (
	// ModeResolving: the auth source has not reported yet.
	ModeResolving Mode = iota
	// ModeSignedOut: no identity and no guest intent.
	ModeSignedOut
	// ModeGuest: local-only storage.
	ModeGuest
	// ModeAuthenticated: remote storage for State.Identity.
	ModeAuthenticated
)

func (m Mode) String() string {
	switch m {
	case ModeResolving:
		return "resolving"
	case ModeSignedOut:
		return "signed-out"
	case ModeGuest:
		return "guest"
	case ModeAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// State is a snapshot of the resolver.
type State struct {
	Mode Mode

	// Identity is set only in ModeAuthenticated.
	Identity *models.User
}

// IdentityID returns the identity's ID, or "" when there is none.
func (s State) IdentityID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.ID
}

// Same reports whether s and o select the same storage: same mode and, when
// authenticated, the same identity.
func (s State) Same(o State) bool {
	return s.Mode == o.Mode && s.IdentityID() == o.IdentityID()
}

// Resolver tracks the current identity mode.
type Resolver struct {
	source  AuthSource
	session local.Storage

	mu        sync.Mutex
	identity  *models.User
	resolving bool
	guest     bool
	started   bool
	stop      func()
	version   uint64
	nextID    int
	listeners map[int]*listener
}

// listener receives states in version order. Each delivery reads the
// resolver's latest state, so a slow delivery is never followed by an older
// one; intermediate states may be skipped.
type listener struct {
	fn func(State)

	mu        sync.Mutex
	delivered bool
	seen      uint64
}

// NewResolver creates a resolver in the resolving state. session is the
// session-scoped storage holding the guest flag; source may be nil when no
// auth backend is configured.
func NewResolver(source AuthSource, session local.Storage) *Resolver {
	r := &Resolver{
		source:    source,
		session:   session,
		resolving: true,
		listeners: make(map[int]*listener),
	}

	if v, ok, err := session.GetItem(GuestKey); err != nil {
		slog.Warn("Failed to read guest flag", "error", err)
	} else if ok && v == "true" {
		r.guest = true
	}

	return r
}

// Start subscribes to the auth source. Resolving ends with the first
// callback and never restarts for this resolver.
func (r *Resolver) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	if r.source == nil {
		r.setIdentity(nil)
		return
	}

	stop := r.source.OnAuthStateChanged(r.setIdentity)

	r.mu.Lock()
	r.stop = stop
	r.mu.Unlock()
}

// Close unsubscribes from the auth source and drops all listeners.
func (r *Resolver) Close() {
	r.mu.Lock()
	stop := r.stop
	r.stop = nil
	r.listeners = make(map[int]*listener)
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// State returns the current derived state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// EnterGuestMode records guest intent for the rest of the session.
func (r *Resolver) EnterGuestMode() error {
	r.mu.Lock()
	if r.identity != nil {
		r.mu.Unlock()
		return ErrAlreadySignedIn
	}
	before := r.stateLocked()
	r.guest = true
	listeners := r.changedLocked(before)
	r.mu.Unlock()

	if err := r.session.SetItem(GuestKey, "true"); err != nil {
		slog.Warn("Failed to persist guest flag", "error", err)
	}

	r.deliver(listeners)
	return nil
}

// ExitGuestMode clears guest intent.
func (r *Resolver) ExitGuestMode() {
	r.mu.Lock()
	before := r.stateLocked()
	r.guest = false
	listeners := r.changedLocked(before)
	r.mu.Unlock()

	if err := r.session.RemoveItem(GuestKey); err != nil {
		slog.Warn("Failed to clear guest flag", "error", err)
	}

	r.deliver(listeners)
}

// Subscribe calls fn with the current state, then on every change. Calls
// for one subscriber never overlap and never go back to an older state.
func (r *Resolver) Subscribe(fn func(State)) (unsubscribe func()) {
	l := &listener{fn: fn}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners[id] = l
	r.mu.Unlock()

	r.deliverTo(l)

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Resolver) setIdentity(user *models.User) {
	r.mu.Lock()
	before := r.stateLocked()
	r.identity = user
	r.resolving = false
	clearGuest := user != nil && r.guest
	if user != nil {
		r.guest = false
	}
	after := r.stateLocked()
	listeners := r.changedLocked(before)
	r.mu.Unlock()

	if clearGuest {
		if err := r.session.RemoveItem(GuestKey); err != nil {
			slog.Warn("Failed to clear guest flag", "error", err)
		}
	}

	slog.Debug("Identity resolved", "mode", after.Mode.String(), "identity_id", after.IdentityID())
	r.deliver(listeners)
}

func (r *Resolver) stateLocked() State {
	switch {
	case r.resolving:
		return State{Mode: ModeResolving}
	case r.identity != nil:
		return State{Mode: ModeAuthenticated, Identity: r.identity}
	case r.guest:
		return State{Mode: ModeGuest}
	default:
		return State{Mode: ModeSignedOut}
	}
}

// changedLocked bumps the version when the state moved away from before and
// returns the listeners to notify.
func (r *Resolver) changedLocked(before State) []*listener {
	after := r.stateLocked()
	if before.Same(after) && before.Identity == after.Identity {
		return nil
	}
	r.version++

	listeners := make([]*listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

func (r *Resolver) deliver(listeners []*listener) {
	for _, l := range listeners {
		r.deliverTo(l)
	}
}

func (r *Resolver) deliverTo(l *listener) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r.mu.Lock()
	state, version := r.stateLocked(), r.version
	r.mu.Unlock()

	if l.delivered && version <= l.seen {
		return
	}
	l.delivered = true
	l.seen = version
	l.fn(state)
}
