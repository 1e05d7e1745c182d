package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Rhymond/go-money"

	"github.com/mmynk/spendtrack/internal/identity"
	"github.com/mmynk/spendtrack/internal/local"
	"github.com/mmynk/spendtrack/internal/models"
	"github.com/mmynk/spendtrack/internal/remote"
	"github.com/mmynk/spendtrack/internal/report"
)

// SettingsSnapshot is the observable state of a Settings synchronizer.
type SettingsSnapshot struct {
	Mode        identity.Mode
	Settings    models.Settings
	Initialized bool
}

// Settings holds the preferences of one client session. Name and currency
// follow the identity mode; the theme is a device preference kept in local
// storage in every mode.
type Settings struct {
	states States
	local  *local.Store
	remote remote.Store

	writeMu sync.Mutex

	mu          sync.Mutex
	state       identity.State
	hasState    bool
	settings    models.Settings
	initialized bool
	gen         generation
	closed      bool
	unsubscribe func()

	changes *notifier[SettingsSnapshot]
	errors  listeners[error]
}

// NewSettings creates a settings synchronizer. rs may be nil when no remote
// store is configured.
func NewSettings(states States, store *local.Store, rs remote.Store) *Settings {
	s := &Settings{
		states:   states,
		local:    store,
		remote:   rs,
		settings: models.DefaultSettings(),
	}
	s.changes = newNotifier(s.Snapshot)
	return s
}

// Start begins following identity states.
func (s *Settings) Start() {
	s.changes.start()
	unsubscribe := s.states.Subscribe(s.transition)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// Close detaches from storage and the resolver.
func (s *Settings) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_, stop := s.gen.next()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stop != nil {
		stop()
	}
	s.changes.close()
}

// Get returns the current settings.
func (s *Settings) Get() models.Settings {
	s.mu.Lock()
	settings := s.settings
	s.mu.Unlock()

	settings.Theme = s.local.LoadTheme()
	return settings
}

// IsInitialized reports whether the settings reflect the active storage.
func (s *Settings) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Snapshot returns the current state.
func (s *Settings) Snapshot() SettingsSnapshot {
	s.mu.Lock()
	snap := SettingsSnapshot{
		Mode:        s.state.Mode,
		Settings:    s.settings,
		Initialized: s.initialized,
	}
	s.mu.Unlock()

	snap.Settings.Theme = s.local.LoadTheme()
	return snap
}

// OnChange calls fn with the latest snapshot after changes.
func (s *Settings) OnChange(fn func(SettingsSnapshot)) (unsubscribe func()) {
	return s.changes.listeners.add(fn)
}

// OnError calls fn with a *remote.ReadError when loading remote settings
// fails.
func (s *Settings) OnError(fn func(error)) (unsubscribe func()) {
	return s.errors.add(fn)
}

// FormatCurrency renders amount in the current currency, e.g. "$1,234.50".
func (s *Settings) FormatCurrency(amount float64) string {
	s.mu.Lock()
	currency := s.settings.Currency
	s.mu.Unlock()
	return report.FormatFloat(amount, currency)
}

// SetSettings applies patch. A theme change is stored on this device in any
// mode; other fields need guest or authenticated mode.
func (s *Settings) SetSettings(ctx context.Context, patch models.SettingsPatch) error {
	if patch.Currency != nil && money.GetCurrency(*patch.Currency) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, *patch.Currency)
	}
	if patch.Theme != nil {
		theme, err := models.ParseTheme(string(*patch.Theme))
		if err != nil {
			return err
		}
		if err := s.local.SaveTheme(theme); err != nil {
			return fmt.Errorf("%w: %w", ErrLocalWrite, err)
		}
	}

	rest := patch
	rest.Theme = nil
	if rest.Empty() {
		s.changes.notify()
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	state := s.state
	gen := s.gen.n
	current := s.settings
	s.mu.Unlock()

	var merged models.Settings
	switch state.Mode {
	case identity.ModeGuest:
		merged = current.Merge(rest)
		if err := s.local.SaveSettings(merged); err != nil {
			return fmt.Errorf("%w: %w", ErrLocalWrite, err)
		}

	case identity.ModeAuthenticated:
		if s.remote == nil {
			return &remote.WriteError{Op: "save settings", Err: errors.New("no remote store configured")}
		}
		got, err := s.remote.MergeSettings(ctx, state.IdentityID(), rest)
		if err != nil {
			return asWriteError("save settings", err)
		}
		merged = got

	default:
		return ErrNotSignedIn
	}

	s.mu.Lock()
	if s.gen.n == gen {
		s.settings = merged.WithDefaults()
	}
	s.mu.Unlock()

	s.changes.notify()
	return nil
}

func (s *Settings) transition(st identity.State) {
	s.mu.Lock()
	if s.closed || (s.hasState && s.state.Same(st)) {
		s.mu.Unlock()
		return
	}
	s.hasState = true
	s.state = st
	gen, stop := s.gen.next()
	s.settings = models.DefaultSettings()
	s.initialized = false
	if st.Mode == identity.ModeGuest {
		s.settings = s.local.LoadSettings()
		s.initialized = true
	}
	s.mu.Unlock()

	if stop != nil {
		stop()
	}

	switch st.Mode {
	case identity.ModeGuest:
		s.install(gen, s.local.Watch(local.SettingsKey, func() { s.reload(gen) }))
		s.reload(gen)
	case identity.ModeAuthenticated:
		s.enterRemote(gen, st.IdentityID())
	}

	s.changes.notify()
}

func (s *Settings) enterRemote(gen uint64, owner string) {
	ctx, cancel := context.WithCancel(context.Background())
	s.install(gen, cancel)

	go func() {
		var (
			got models.Settings
			err error
		)
		if s.remote == nil {
			err = errors.New("no remote store configured")
		} else {
			got, err = s.remote.GetSettings(ctx, owner)
		}

		s.mu.Lock()
		if s.gen.n != gen {
			s.mu.Unlock()
			return
		}
		if err == nil {
			s.settings = got.WithDefaults()
		}
		s.initialized = true
		s.mu.Unlock()

		if err != nil {
			var readErr *remote.ReadError
			if !errors.As(err, &readErr) {
				readErr = &remote.ReadError{Op: "get settings", Err: err}
			}
			slog.Warn("Failed to load settings, using defaults", "error", readErr)
			s.errors.emit(readErr)
		}
		s.changes.notify()
	}()
}

func (s *Settings) install(gen uint64, stop func()) {
	s.mu.Lock()
	ok := !s.closed && s.gen.install(gen, stop)
	s.mu.Unlock()
	if !ok {
		stop()
	}
}

func (s *Settings) reload(gen uint64) {
	s.mu.Lock()
	if s.gen.n != gen {
		s.mu.Unlock()
		return
	}
	loaded := s.local.LoadSettings()
	if loaded == s.settings {
		s.mu.Unlock()
		return
	}
	s.settings = loaded
	s.mu.Unlock()

	s.changes.notify()
}
