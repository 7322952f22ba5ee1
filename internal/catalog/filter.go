package catalog

import (
	"strconv"
	"strings"

	"storefront-catalog-service/internal/domain"
)

// Filter returns the products matching both the search term and the category selector,
// in input order. The term is a case-insensitive substring match on name or
// description; an empty term matches everything. The selector is "all", "uncategorized"
// (products without a category) or an exact category id. An empty selector is treated
// as "all", so a missing query parameter does not narrow the list.
func Filter(products []domain.Product, searchTerm, categorySelector string) []domain.Product {
	term := strings.ToLower(searchTerm)
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if matchesSearch(p, term) && matchesCategory(p, categorySelector) {
			out = append(out, p)
		}
	}
	return out
}

func matchesSearch(p domain.Product, lowerTerm string) bool {
	if lowerTerm == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), lowerTerm) ||
		strings.Contains(strings.ToLower(p.Description), lowerTerm)
}

func matchesCategory(p domain.Product, selector string) bool {
	switch selector {
	case "", SelectorAll:
		return true
	case SelectorUncategorized:
		return p.Category == ""
	default:
		return p.Category == selector
	}
}

// Featured returns the featured products, ignoring any search or category filter.
func Featured(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.IsFeatured {
			out = append(out, p)
		}
	}
	return out
}

// Summary holds the dashboard counters for one snapshot of the collection.
type Summary struct {
	Total       int `json:"total"`
	Featured    int `json:"featured"`
	NonFeatured int `json:"nonFeatured"`
	Filtered    int `json:"filtered"`
}

// Summarize computes the counters for products and the filtered subset of them.
func Summarize(products, filtered []domain.Product) Summary {
	s := Summary{Total: len(products), Filtered: len(filtered)}
	for _, p := range products {
		if p.IsFeatured {
			s.Featured++
		}
	}
	s.NonFeatured = s.Total - s.Featured
	return s
}

// PriceRange bounds a price filter. Max of zero means unbounded.
type PriceRange struct {
	Min float64
	Max float64
}

// AnyPrice matches every product.
var AnyPrice = PriceRange{}

// ParsePriceRange parses "all", "" or "min-max" (max may be omitted).
func ParsePriceRange(v string) (PriceRange, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == SelectorAll {
		return AnyPrice, nil
	}
	lo, hi, ok := strings.Cut(v, "-")
	if !ok {
		return AnyPrice, invalid("ParsePriceRange", "price range %q: want min-max", v)
	}
	var r PriceRange
	var err error
	if r.Min, err = strconv.ParseFloat(strings.TrimSpace(lo), 64); err != nil || r.Min < 0 {
		return AnyPrice, invalid("ParsePriceRange", "price range %q: bad minimum", v)
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		if r.Max, err = strconv.ParseFloat(hi, 64); err != nil || r.Max < r.Min {
			return AnyPrice, invalid("ParsePriceRange", "price range %q: bad maximum", v)
		}
	}
	return r, nil
}

// Contains reports whether price falls in the range, bounds included.
func (r PriceRange) Contains(price float64) bool {
	if price < r.Min {
		return false
	}
	return r.Max == 0 || price <= r.Max
}

// Query combines the public storefront filters.
type Query struct {
	Search   string
	Category string
	Price    PriceRange
}

// Apply runs Filter and then narrows by price.
func (q Query) Apply(products []domain.Product) []domain.Product {
	filtered := Filter(products, q.Search, q.Category)
	if q.Price == AnyPrice {
		return filtered
	}
	out := filtered[:0]
	for _, p := range filtered {
		if q.Price.Contains(p.Price) {
			out = append(out, p)
		}
	}
	return out
}
