package local

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mmynk/spendtrack/internal/broadcast"
	"github.com/mmynk/spendtrack/internal/models"
)

// Well-known storage keys.
const (
	ExpensesKey = "expenses"
	SettingsKey = "spendtrack-lite-settings"
	ThemeKey    = "theme"
)

// ParseError reports a stored value that could not be decoded.
// It is logged and never returned to Store callers.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed value under %q: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Store reads and writes the expense list, settings and theme for one
// session. Writes to the expense list are announced on the bus so other
// sessions of the same origin can reload.
type Store struct {
	storage Storage
	bus     *broadcast.Bus
	source  string
}

// NewStore creates a Store. bus may be nil when no other session shares the
// storage. source identifies this session on the bus.
func NewStore(storage Storage, bus *broadcast.Bus, source string) *Store {
	return &Store{storage: storage, bus: bus, source: source}
}

// LoadExpenses returns the stored expense list in stored order.
// A missing, unreadable or malformed value yields an empty list.
func (s *Store) LoadExpenses() []models.Expense {
	var expenses []models.Expense
	if !s.load(ExpensesKey, &expenses) {
		return []models.Expense{}
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	return expenses
}

// SaveExpenses overwrites the stored list and notifies other sessions.
func (s *Store) SaveExpenses(expenses []models.Expense) error {
	if expenses == nil {
		expenses = []models.Expense{}
	}
	if err := s.save(ExpensesKey, expenses); err != nil {
		return err
	}
	s.publish(ExpensesKey)
	return nil
}

// LoadSettings returns the stored settings, or defaults if none are stored.
func (s *Store) LoadSettings() models.Settings {
	var settings models.Settings
	if !s.load(SettingsKey, &settings) {
		return models.DefaultSettings()
	}
	return settings.WithDefaults()
}

// SaveSettings overwrites the stored settings and notifies other sessions.
func (s *Store) SaveSettings(settings models.Settings) error {
	if err := s.save(SettingsKey, settings); err != nil {
		return err
	}
	s.publish(SettingsKey)
	return nil
}

// Watch calls fn whenever another session changes key, or on a manual
// dispatch. It returns a no-op when the store has no bus.
func (s *Store) Watch(key string, fn func()) (unsubscribe func()) {
	if s.bus == nil {
		return func() {}
	}
	return s.bus.Subscribe(s.source, func(ev broadcast.Event) {
		if ev.Key == key || ev.Key == "" {
			fn()
		}
	})
}

func (s *Store) publish(key string) {
	if s.bus != nil {
		s.bus.Publish(broadcast.Event{Key: key, Source: s.source})
	}
}

// LoadTheme returns the device theme preference.
func (s *Store) LoadTheme() models.Theme {
	raw, ok, err := s.storage.GetItem(ThemeKey)
	if err != nil {
		slog.Warn("Failed to read theme", "error", err)
		return models.ThemeSystem
	}
	if !ok {
		return models.ThemeSystem
	}
	theme, err := models.ParseTheme(raw)
	if err != nil {
		slog.Warn("Ignoring stored theme", "error", &ParseError{Key: ThemeKey, Err: err})
		return models.ThemeSystem
	}
	return theme
}

// SaveTheme stores the device theme preference.
func (s *Store) SaveTheme(theme models.Theme) error {
	if err := s.storage.SetItem(ThemeKey, string(theme)); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	return nil
}

// load decodes key into v. It reports false if the key is absent or the
// value cannot be read or decoded.
func (s *Store) load(key string, v any) bool {
	raw, ok, err := s.storage.GetItem(key)
	if err != nil {
		slog.Error("Failed to read local storage", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		slog.Error("Failed to parse local storage", "error", &ParseError{Key: key, Err: err})
		return false
	}
	return true
}

func (s *Store) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	if err := s.storage.SetItem(key, string(data)); err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	return nil
}
