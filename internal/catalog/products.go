package catalog

import (
	"math/rand/v2"

	"github.com/example/skinscan/internal/analysis"
)

// DefaultRecommendationCount is how many products a result screen shows.
const DefaultRecommendationCount = 3

var products = map[analysis.SkinType][]string{
	analysis.Oily: {
		"Salicylic Acid Cleanser",
		"Charcoal Clay Mask",
		"Gel-based Sunscreen",
		"Benzoyl Peroxide",
	},
	analysis.Dry: {
		"Hyaluronic Acid Serum",
		"Coconut Milk Cleanser",
		"Aloe Vera Moisturizer",
		"Ceramide Lotion",
	},
	analysis.Combination: {
		"Balancing Gel Cleanser",
		"Dual-Zone Moisturizer",
		"Green Tea Toner",
		"Exfoliating Pads",
	},
	analysis.Sensitive: {
		"Fragrance-Free Cleanser",
		"Soothing Chamomile Toner",
		"Aloe Rescue Mask",
	},
	analysis.Normal: {
		"Daily Hydrating Lotion",
		"Gentle Foaming Cleanser",
		"Cucumber Mist Spray",
		"Glow Enhancer Cream",
	},
}

// Products returns every product listed for skinType.
func Products(skinType analysis.SkinType) []string {
	return append([]string(nil), products[skinType]...)
}

// Recommend picks up to n distinct products for skinType in random order.
// Unknown skin types get an empty list. A nil rng uses the global source.
func Recommend(skinType analysis.SkinType, n int, rng *rand.Rand) []string {
	list := products[skinType]
	if n > len(list) {
		n = len(list)
	}
	if n <= 0 {
		return []string{}
	}

	perm := permutation(len(list), rng)
	out := make([]string, n)
	for i := range out {
		out[i] = list[perm[i]]
	}
	return out
}

func permutation(n int, rng *rand.Rand) []int {
	if rng == nil {
		return rand.Perm(n)
	}
	return rng.Perm(n)
}
