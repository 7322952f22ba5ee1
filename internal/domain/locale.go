package domain

import "strings"

// Locale is a UI language supported by the storefront.
type Locale string

const (
	LocaleFR Locale = "fr"
	LocaleEN Locale = "en"
)

// DefaultLocale is used when no preference is known.
const DefaultLocale = LocaleFR

// ParseLocale normalises v into a supported locale, falling back to DefaultLocale.
func ParseLocale(v string) Locale {
	switch Locale(strings.ToLower(strings.TrimSpace(v))) {
	case LocaleEN:
		return LocaleEN
	case LocaleFR:
		return LocaleFR
	default:
		return DefaultLocale
	}
}

// Toggle returns the other supported locale.
func (l Locale) Toggle() Locale {
	if l == LocaleEN {
		return LocaleFR
	}
	return LocaleEN
}

func (l Locale) String() string {
	return string(l)
}
