package catalog

import "storefront-catalog-service/internal/domain"

var (
	generatedRatings = [10]float64{4.5, 4.7, 4.3, 4.8, 4.6, 4.4, 4.9, 4.2, 4.5, 4.6}
	generatedCounts  = [10]int{45, 67, 89, 123, 156, 78, 234, 98, 145, 187}
)

// RatingFor derives a stable display rating and review count from a product id.
// The same id always yields the same pair, across processes and restarts.
func RatingFor(id string) (float64, int) {
	var hash uint64
	for _, r := range id {
		hash += uint64(r)
	}
	i := hash % 10
	return generatedRatings[i], generatedCounts[i]
}

// Ratings returns the rating pair to display for p: the stored values when both are
// present, the generated ones otherwise.
func Ratings(p domain.Product) (float64, int) {
	if p.HasRatings() {
		return *p.Rating, *p.ReviewCount
	}
	return RatingFor(p.ID)
}
