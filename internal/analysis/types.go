package analysis

import (
	"errors"
	"strings"
)

// InputSize is the side length of the square image the model expects.
const InputSize = 224

// TensorLen is the number of floats in a preprocessed image.
const TensorLen = InputSize * InputSize * 3

// OutputLen is the number of floats the model produces per image.
const OutputLen = 12

// Layout of the model output vector.
const (
	skinTypeScoresEnd = 5 // [0,5) skin type class scores
	hydrationIndex    = 5
	textureIndex      = 6
	concernScoresFrom = 7 // [7,12) concern likelihoods
)

// ConcernThreshold is the exclusive lower bound a concern score must exceed.
const ConcernThreshold = 0.5

var (
	// ErrDecode reports input bytes that are not a decodable image.
	ErrDecode = errors.New("image decode failed")
	// ErrNoImage reports an analysis requested without any image.
	ErrNoImage = errors.New("no image supplied")
)

// SkinType is the primary classification output.
type SkinType string

const (
	Oily        SkinType = "Oily"
	Dry         SkinType = "Dry"
	Combination SkinType = "Combination"
	Sensitive   SkinType = "Sensitive"
	Normal      SkinType = "Normal"
)

// SkinTypes lists every skin type in model output order.
var SkinTypes = [...]SkinType{Oily, Dry, Combination, Sensitive, Normal}

// ConcernLabels lists the concerns scored by the model, in output order.
var ConcernLabels = [...]string{"Acne", "Dryness", "Oiliness", "Redness", "Wrinkles"}

// ParseSkinType matches s against the known skin types, ignoring case.
func ParseSkinType(s string) (SkinType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range SkinTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// Result is the outcome of one analysis.
type Result struct {
	SkinType            SkinType `json:"skinType"`
	Confidence          float32  `json:"confidence"`
	Concerns            []string `json:"concerns"`
	HydrationLevel      float32  `json:"hydrationLevel"`
	TextureScore        float32  `json:"textureScore"`
	RecommendedProducts []string `json:"recommendedProducts"`
}

// Source tells which path produced a Result.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Outcome is what Session.Analyze hands back. Cause holds the error that
// routed the call to the fallback generator, or nil.
type Outcome struct {
	Result Result
	Source Source
	Cause  error
}
