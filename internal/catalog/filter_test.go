package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-catalog-service/internal/domain"
)

func scenarioProducts() []domain.Product {
	return []domain.Product{
		{ID: "a", Name: "Red Suit", Category: "vestes", IsFeatured: true},
		{ID: "b", Name: "Blue Shirt", Category: "chemises", IsFeatured: false},
	}
}

func ids(products []domain.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestFilter_Scenario(t *testing.T) {
	products := scenarioProducts()

	assert.Equal(t, []string{"a"}, ids(Filter(products, "red", SelectorAll)))
	assert.Equal(t, []string{"b"}, ids(Filter(products, "", "chemises")))
	assert.Equal(t, Summary{Total: 2, Featured: 1, NonFeatured: 1, Filtered: 2},
		Summarize(products, Filter(products, "", SelectorAll)))
}

func TestFilter_EmptyTermIsSuperset(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Name: "Veste en lin", Description: "Légère", Category: "vestes"},
		{ID: "2", Name: "Chemise", Description: "Coton bleu", Category: "chemises"},
		{ID: "3", Name: "Boubou", Description: "Bleu nuit"},
		{ID: "4", Name: "Robe BLEUE", Category: "robes"},
	}
	for _, cat := range []string{SelectorAll, SelectorUncategorized, "vestes", "robes", "nope"} {
		all := ids(Filter(products, "", cat))
		for _, term := range []string{"bleu", "LIN", "x", ""} {
			for _, id := range ids(Filter(products, term, cat)) {
				assert.Contains(t, all, id, "term %q cat %q", term, cat)
			}
		}
	}
}

func TestFilter_Semantics(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Name: "Veste", Description: "coton BLEU", Category: "vestes"},
		{ID: "2", Name: "Bleu royal"},
		{ID: "3", Name: "Robe", Category: "robes"},
	}

	assert.Equal(t, []string{"1", "2"}, ids(Filter(products, "bleu", SelectorAll)), "matches name or description, keeps order")
	assert.Equal(t, []string{"2"}, ids(Filter(products, "", SelectorUncategorized)))
	assert.Equal(t, []string{"1"}, ids(Filter(products, "bleu", "vestes")))
	assert.Empty(t, Filter(products, "bleu", "robes"))
	assert.Empty(t, Filter(nil, "x", SelectorAll))
	assert.Equal(t, ids(Filter(products, "", SelectorAll)), ids(Filter(products, "", "")), "empty selector behaves like all")
}

func TestFeatured_IgnoresFilters(t *testing.T) {
	products := append(scenarioProducts(), domain.Product{ID: "c", Name: "Green Dress", IsFeatured: true})
	assert.Equal(t, []string{"a", "c"}, ids(Featured(products)))
}

func TestSummarize_Consistent(t *testing.T) {
	products := append(scenarioProducts(), domain.Product{ID: "c", IsFeatured: true})
	s := Summarize(products, Filter(products, "shirt", SelectorAll))
	assert.Equal(t, s.Total, s.Featured+s.NonFeatured)
	assert.Equal(t, 1, s.Filtered)
}

func TestParsePriceRange(t *testing.T) {
	r, err := ParsePriceRange("300-600")
	require.NoError(t, err)
	assert.Equal(t, PriceRange{Min: 300, Max: 600}, r)
	assert.True(t, r.Contains(300))
	assert.True(t, r.Contains(600))
	assert.False(t, r.Contains(601))

	r, err = ParsePriceRange("900-")
	require.NoError(t, err)
	assert.True(t, r.Contains(1e6))

	r, err = ParsePriceRange("all")
	require.NoError(t, err)
	assert.Equal(t, AnyPrice, r)

	for _, bad := range []string{"abc", "600-300", "-5", "x-10"} {
		_, err := ParsePriceRange(bad)
		assert.True(t, errors.Is(err, ErrInvalidInput), bad)
	}
}

func TestQuery_Apply(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Name: "Veste", Price: 250, Category: "vestes"},
		{ID: "2", Name: "Veste longue", Price: 450, Category: "vestes"},
		{ID: "3", Name: "Robe", Price: 450, Category: "robes"},
	}
	q := Query{Search: "veste", Category: "vestes", Price: PriceRange{Min: 300, Max: 600}}
	assert.Equal(t, []string{"2"}, ids(q.Apply(products)))
	assert.Len(t, Query{}.Apply(products), 3)
}
