package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/spendtrack/internal/broadcast"
	"github.com/mmynk/spendtrack/internal/local"
	"github.com/mmynk/spendtrack/internal/models"
)

// TokenKey is the durable storage key holding the session token.
const TokenKey = "spendtrack-session"

// Credentials exchanges credentials for a session token.
type Credentials interface {
	Register(ctx context.Context, email, displayName, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// Session is the client side of authentication. It keeps the token in
// durable storage, so every session of the same origin shares the sign-in,
// and reports the signed-in user to its listeners.
type Session struct {
	storage local.Storage
	creds   Credentials
	bus     *broadcast.Bus
	source  string
	now     func() time.Time

	mu        sync.Mutex
	token     string
	user      *models.User
	version   uint64
	nextID    int
	listeners map[int]*listener
	unsub     func()
}

// listener receives users in version order. Each delivery reads the latest
// user, so a delivery racing a newer change cannot overwrite it.
type listener struct {
	fn func(*models.User)

	mu        sync.Mutex
	delivered bool
	seen      uint64
}

// NewSession restores any stored token. bus may be nil; when set, sign-in
// and sign-out in one session are picked up by the others.
func NewSession(storage local.Storage, creds Credentials, bus *broadcast.Bus, source string) *Session {
	s := &Session{
		storage:   storage,
		creds:     creds,
		bus:       bus,
		source:    source,
		now:       time.Now,
		listeners: make(map[int]*listener),
	}
	s.token, s.user = s.restore()

	if bus != nil {
		s.unsub = bus.Subscribe(source, func(ev broadcast.Event) {
			if ev.Key == TokenKey || ev.Key == "" {
				s.reload()
			}
		})
	}
	return s
}

// Close detaches the session from the bus and drops all listeners.
func (s *Session) Close() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.listeners = make(map[int]*listener)
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// OnAuthStateChanged calls fn with the current user (nil when signed out),
// then again on every change. Calls for one listener never overlap.
func (s *Session) OnAuthStateChanged(fn func(*models.User)) (unsubscribe func()) {
	l := &listener{fn: fn}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = l
	s.mu.Unlock()

	s.deliverTo(l)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Token returns the bearer token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// SignIn exchanges email and password for a session.
func (s *Session) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	token, err := s.creds.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(token)
}

// SignUp creates an account and signs in to it.
func (s *Session) SignUp(ctx context.Context, email, displayName, password string) (*models.User, error) {
	token, err := s.creds.Register(ctx, email, displayName, password)
	if err != nil {
		return nil, err
	}
	return s.establish(token)
}

// SignOut forgets the stored token.
func (s *Session) SignOut() error {
	if err := s.storage.RemoveItem(TokenKey); err != nil {
		return err
	}
	s.set("", nil)
	s.publish()
	return nil
}

func (s *Session) establish(token string) (*models.User, error) {
	claims, err := DecodeClaims(token, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.storage.SetItem(TokenKey, token); err != nil {
		return nil, err
	}
	user := claims.User()
	s.set(token, user)
	s.publish()
	return user, nil
}

func (s *Session) publish() {
	if s.bus != nil {
		s.bus.Publish(broadcast.Event{Key: TokenKey, Source: s.source})
	}
}

// restore reads the stored token. Unreadable or expired tokens are dropped.
func (s *Session) restore() (string, *models.User) {
	token, ok, err := s.storage.GetItem(TokenKey)
	if err != nil {
		slog.Warn("Failed to read session token", "error", err)
		return "", nil
	}
	if !ok || token == "" {
		return "", nil
	}
	claims, err := DecodeClaims(token, s.now())
	if err != nil {
		slog.Info("Discarding stored session", "error", err)
		if err := s.storage.RemoveItem(TokenKey); err != nil {
			slog.Warn("Failed to clear session token", "error", err)
		}
		return "", nil
	}
	return token, claims.User()
}

func (s *Session) reload() {
	token, user := s.restore()
	s.set(token, user)
}

// set updates the session and notifies listeners when the user changed.
func (s *Session) set(token string, user *models.User) {
	s.mu.Lock()
	changed := s.userID() != userID(user)
	s.token = token
	s.user = user
	var listeners []*listener
	if changed {
		s.version++
		listeners = make([]*listener, 0, len(s.listeners))
		for _, l := range s.listeners {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range listeners {
		s.deliverTo(l)
	}
}

func (s *Session) deliverTo(l *listener) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.mu.Lock()
	user, version := s.user, s.version
	s.mu.Unlock()

	if l.delivered && version <= l.seen {
		return
	}
	l.delivered = true
	l.seen = version
	l.fn(user)
}

func (s *Session) userID() string {
	return userID(s.user)
}

func userID(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
