package catalog

import (
	"strings"
	"unicode"

	"storefront-catalog-service/internal/domain"
)

// Reserved category selectors.
const (
	SelectorAll           = "all"
	SelectorUncategorized = "uncategorized"
)

// BuiltinCategory is a category that always exists and is never stored.
type BuiltinCategory struct {
	ID    string
	Names map[domain.Locale]string
}

// BuiltinCategories is the fixed built-in table, in display order.
var BuiltinCategories = []BuiltinCategory{
	{ID: "vestes", Names: map[domain.Locale]string{domain.LocaleFR: "Vestes", domain.LocaleEN: "Jackets"}},
	{ID: "chemises", Names: map[domain.Locale]string{domain.LocaleFR: "Chemises", domain.LocaleEN: "Shirts"}},
	{ID: "pantalons", Names: map[domain.Locale]string{domain.LocaleFR: "Pantalons", domain.LocaleEN: "Trousers"}},
	{ID: "robes", Names: map[domain.Locale]string{domain.LocaleFR: "Robes", domain.LocaleEN: "Dresses"}},
	{ID: "costumes", Names: map[domain.Locale]string{domain.LocaleFR: "Costumes", domain.LocaleEN: "Suits"}},
}

var fallbackNames = map[string]map[domain.Locale]string{
	SelectorUncategorized: {domain.LocaleFR: "Non catégorisé", domain.LocaleEN: "Uncategorized"},
	SelectorAll:           {domain.LocaleFR: "Toutes les catégories", domain.LocaleEN: "All Categories"},
}

func builtin(id string) (BuiltinCategory, bool) {
	for _, b := range BuiltinCategories {
		if b.ID == id {
			return b, true
		}
	}
	return BuiltinCategory{}, false
}

// IsBuiltin reports whether id names a built-in category.
func IsBuiltin(id string) bool {
	_, ok := builtin(id)
	return ok
}

// IsReserved reports whether id is one of the reserved selector values.
func IsReserved(id string) bool {
	return id == SelectorAll || id == SelectorUncategorized
}

func localized(names map[domain.Locale]string, locale domain.Locale) string {
	if n, ok := names[locale]; ok {
		return n
	}
	return names[domain.DefaultLocale]
}

// DisplayName resolves a category id to a human-readable label. Resolution order is
// built-in table, custom records, then the reserved fallbacks. An id that resolves to
// nothing (an orphan left behind by a deleted custom category) is returned as is.
func DisplayName(categoryID string, locale domain.Locale, custom []domain.Category) string {
	if b, ok := builtin(categoryID); ok {
		return localized(b.Names, locale)
	}
	for _, c := range custom {
		if c.CategoryID == categoryID {
			return c.Name
		}
	}
	if categoryID == "" {
		categoryID = SelectorUncategorized
	}
	if names, ok := fallbackNames[categoryID]; ok {
		return localized(names, locale)
	}
	return categoryID
}

// Normalize turns a display name into a category slug: lower-cased with every
// Unicode whitespace character removed.
func Normalize(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(raw))
}

// CategoryKey is the bucket a product counts under.
func CategoryKey(p domain.Product) string {
	if p.Category == "" {
		return SelectorUncategorized
	}
	return p.Category
}

// CategoryCounts counts products per category. Products without a category are
// counted under "uncategorized"; the counts always sum to len(products).
func CategoryCounts(products []domain.Product) map[string]int {
	counts := make(map[string]int)
	for _, p := range products {
		counts[CategoryKey(p)]++
	}
	return counts
}

// CategoryOption is one entry of a category selector.
type CategoryOption struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Count   int              `json:"count"`
	Builtin bool             `json:"builtin"`
	Custom  *domain.Category `json:"custom,omitempty"`
}

// CategoryOptions lists the selector entries: "all", the built-ins, the custom
// categories, orphaned ids still referenced by products, then "uncategorized".
func CategoryOptions(locale domain.Locale, custom []domain.Category, products []domain.Product) []CategoryOption {
	counts := CategoryCounts(products)
	options := make([]CategoryOption, 0, len(BuiltinCategories)+len(custom)+2)
	options = append(options, CategoryOption{
		ID:    SelectorAll,
		Name:  DisplayName(SelectorAll, locale, custom),
		Count: len(products),
	})

	seen := map[string]bool{SelectorAll: true, SelectorUncategorized: true}
	for _, b := range BuiltinCategories {
		seen[b.ID] = true
		options = append(options, CategoryOption{
			ID:      b.ID,
			Name:    localized(b.Names, locale),
			Count:   counts[b.ID],
			Builtin: true,
		})
	}
	for i := range custom {
		c := custom[i]
		if seen[c.CategoryID] {
			continue
		}
		seen[c.CategoryID] = true
		options = append(options, CategoryOption{
			ID:     c.CategoryID,
			Name:   c.Name,
			Count:  counts[c.CategoryID],
			Custom: &c,
		})
	}
	for _, p := range products {
		id := CategoryKey(p)
		if seen[id] {
			continue
		}
		seen[id] = true
		options = append(options, CategoryOption{ID: id, Name: id, Count: counts[id]})
	}
	options = append(options, CategoryOption{
		ID:    SelectorUncategorized,
		Name:  DisplayName(SelectorUncategorized, locale, custom),
		Count: counts[SelectorUncategorized],
	})
	return options
}
