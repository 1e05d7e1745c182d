package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"Food", CategoryFood},
		{"food", CategoryFood},
		{"  Transport ", CategoryTransport},
		{"Fuel", CategoryFuel},
		{"Groceries", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.in))
		})
	}
}

func TestCategoryNames(t *testing.T) {
	names := CategoryNames()
	assert.Len(t, names, len(Categories))
	assert.Contains(t, names, "Other")
	assert.True(t, Category("Other").Valid())
	assert.False(t, Category("other").Valid())
}

func TestSettingsMerge(t *testing.T) {
	name := "Ada"
	eur := "EUR"
	dark := ThemeDark

	s := DefaultSettings()
	assert.Equal(t, Settings{Currency: "USD", Theme: ThemeSystem}, s)

	s = s.Merge(SettingsPatch{Name: &name})
	assert.Equal(t, "Ada", s.Name)
	assert.Equal(t, "USD", s.Currency)

	s = s.Merge(SettingsPatch{Currency: &eur, Theme: &dark})
	assert.Equal(t, Settings{Name: "Ada", Currency: "EUR", Theme: ThemeDark}, s)

	assert.True(t, SettingsPatch{}.Empty())
	assert.Equal(t, s, s.Merge(SettingsPatch{}))
}
