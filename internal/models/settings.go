package models

import "fmt"

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// DefaultCurrency is used until the user picks one.
const DefaultCurrency = "USD"

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(s); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Settings holds user preferences. There is one record per identity, plus one
// shared record for guest mode.
type Settings struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Theme    Theme  `json:"theme"`
}

// DefaultSettings returns the settings used before anything is stored.
func DefaultSettings() Settings {
	return Settings{
		Name:     "",
		Currency: DefaultCurrency,
		Theme:    ThemeSystem,
	}
}

// SettingsPatch is a partial update. Nil fields are left unchanged.
type SettingsPatch struct {
	Name     *string
	Currency *string
	Theme    *Theme
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.Name == nil && p.Currency == nil && p.Theme == nil
}

// Merge returns s with the provided fields of p applied.
func (s Settings) Merge(p SettingsPatch) Settings {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Currency != nil && *p.Currency != "" {
		s.Currency = *p.Currency
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	return s
}

// WithDefaults fills empty fields with their defaults.
func (s Settings) WithDefaults() Settings {
	d := DefaultSettings()
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	return s
}
