package analysis

import (
	"math"
	"math/rand/v2"
)

type concernDraw struct {
	candidates []string
	min, max   int
}

var fallbackConcerns = map[SkinType]concernDraw{
	Oily: {
		candidates: []string{"Excess oil production", "Large pores", "Shininess", "Acne breakouts", "Blackheads"},
		min:        1, max: 2,
	},
	Dry: {
		candidates: []string{"Flakiness", "Tight feeling", "Rough texture", "Redness", "Itching"},
		min:        1, max: 2,
	},
	Combination: {
		candidates: []string{"Oily T-zone", "Dry cheeks", "Uneven texture", "Large pores", "Occasional breakouts"},
		min:        1, max: 2,
	},
	Sensitive: {
		candidates: []string{"Redness", "Irritation", "Reactivity to products", "Itching", "Burning sensation"},
		min:        1, max: 2,
	},
	Normal: {
		candidates: []string{"Minor dryness", "Occasional shine", "Good overall balance"},
		min:        0, max: 1,
	},
}

// FallbackConcerns returns the candidate concern phrases for t.
func FallbackConcerns(t SkinType) []string {
	return append([]string(nil), fallbackConcerns[t].candidates...)
}

// Generator synthesizes randomized results. It is not safe for concurrent
// use because the underlying rand.Rand is not.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator drawing from rng, or from a randomly
// seeded source when rng is nil.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng}
}

// Generate draws a fresh result on every call.
func (g *Generator) Generate() Result {
	skinType := SkinTypes[g.rng.IntN(len(SkinTypes))]

	draw := fallbackConcerns[skinType]
	count := draw.min + g.rng.IntN(draw.max-draw.min+1)
	concerns := make([]string, 0, count)
	for _, i := range g.rng.Perm(len(draw.candidates))[:count] {
		concerns = append(concerns, draw.candidates[i])
	}

	return Result{
		SkinType:            skinType,
		Confidence:          g.uniform(0.85, 0.13),
		Concerns:            concerns,
		HydrationLevel:      g.uniform(0.6, 0.3),
		TextureScore:        g.uniform(0.7, 0.25),
		RecommendedProducts: []string{},
	}
}

// uniform returns lo + r*width for r in [0,1), kept strictly below the
// float32 upper bound after rounding.
func (g *Generator) uniform(lo, width float64) float32 {
	hi := float32(lo + width)
	v := float32(lo + g.rng.Float64()*width)
	if v >= hi {
		v = math.Nextafter32(hi, float32(lo))
	}
	return v
}
