package i18n

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"storefront-catalog-service/internal/domain"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Translator resolves dotted message keys against per-locale tables.
type Translator struct {
	tables map[domain.Locale]map[string]any
}

// New loads the embedded fr and en tables.
func New() (*Translator, error) {
	t := &Translator{tables: make(map[domain.Locale]map[string]any)}
	for _, locale := range []domain.Locale{domain.LocaleFR, domain.LocaleEN} {
		raw, err := localeFS.ReadFile("locales/" + locale.String() + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s table: %w", locale, err)
		}
		if err := t.Add(locale, raw); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add parses a YAML table and registers it for locale, replacing any previous one.
func (t *Translator) Add(locale domain.Locale, raw []byte) error {
	table := map[string]any{}
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return fmt.Errorf("i18n: parse %s table: %w", locale, err)
	}
	t.tables[locale] = table
	return nil
}

// Translate returns the message for key in locale. A missing key, or a key that
// names a section rather than a message, returns the key itself.
func (t *Translator) Translate(key string, locale domain.Locale) string {
	var node any = t.tables[locale]
	for _, part := range strings.Split(key, ".") {
		section, ok := node.(map[string]any)
		if !ok {
			return key
		}
		if node, ok = section[part]; !ok {
			return key
		}
	}
	s, ok := node.(string)
	if !ok || s == "" {
		return key
	}
	return s
}
