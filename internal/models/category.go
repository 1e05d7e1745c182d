package models

import "strings"

// Category is an expense category.
type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryUtilities     Category = "Utilities"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealth        Category = "Health"
	CategoryShopping      Category = "Shopping"
	CategoryOther         Category = "Other"

	// Extended set.
	CategoryTravel    Category = "Travel"
	CategoryEducation Category = "Education"
	CategoryGifts     Category = "Gifts"
	CategoryFuel      Category = "Fuel"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryHealth,
	CategoryShopping,
	CategoryTravel,
	CategoryEducation,
	CategoryGifts,
	CategoryFuel,
	CategoryOther,
}

// CategoryNames returns the category names as strings, e.g. for prompts or
// schema enums.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s against the known categories, ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, known := range Categories {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// NormalizeCategory maps s to a known category, falling back to Other.
func NormalizeCategory(s string) Category {
	if c, ok := ParseCategory(s); ok {
		return c
	}
	return CategoryOther
}
