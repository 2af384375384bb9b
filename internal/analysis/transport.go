package analysis

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Values used by Unmarshal for fields that are missing or unreadable.
const (
	DefaultSkinType       = Combination
	DefaultConfidence     = float32(0.92)
	DefaultHydrationLevel = float32(0.78)
	DefaultTextureScore   = float32(0.85)
)

const quotedString = `"(?:[^"\\]|\\.)*"`

var (
	skinTypePattern   = regexp.MustCompile(`"skinType"\s*:\s*(` + quotedString + `|[^",}\s]+)`)
	quotedListPattern = regexp.MustCompile(`"concerns"\s*:\s*\[((?:\s*` + quotedString + `\s*,?)*)\]`)
	bareListPattern   = regexp.MustCompile(`"concerns"\s*:\s*\[([^\]]*)\]`)
	quotedPattern     = regexp.MustCompile(quotedString)
	confidencePattern = numberPattern("confidence")
	hydrationPattern  = numberPattern("hydrationLevel")
	texturePattern    = numberPattern("textureScore")
)

func numberPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`"` + key + `"\s*:\s*"?([^",}\]\s]+)"?`)
}

// Marshal renders the transport form of r. Recommended products are not
// part of it.
func Marshal(r Result) string {
	quoted := make([]string, len(r.Concerns))
	for i, c := range r.Concerns {
		quoted[i] = strconv.Quote(c)
	}
	return fmt.Sprintf(`{"skinType":%s,"confidence":%s,"concerns":[%s],"hydrationLevel":%s,"textureScore":%s}`,
		strconv.Quote(string(r.SkinType)),
		formatFloat(r.Confidence),
		strings.Join(quoted, ","),
		formatFloat(r.HydrationLevel),
		formatFloat(r.TextureScore),
	)
}

// Unmarshal reads the transport form leniently. It never fails: each field
// that cannot be found or parsed takes its default value.
func Unmarshal(s string) Result {
	r := Result{
		SkinType:            DefaultSkinType,
		Confidence:          DefaultConfidence,
		Concerns:            []string{},
		HydrationLevel:      DefaultHydrationLevel,
		TextureScore:        DefaultTextureScore,
		RecommendedProducts: []string{},
	}

	if m := skinTypePattern.FindStringSubmatch(s); m != nil {
		if v := strings.TrimSpace(unquote(m[1])); v != "" {
			r.SkinType = SkinType(v)
		}
	}
	if v, ok := findFloat(confidencePattern, s); ok {
		r.Confidence = v
	}
	if v, ok := findFloat(hydrationPattern, s); ok {
		r.HydrationLevel = v
	}
	if v, ok := findFloat(texturePattern, s); ok {
		r.TextureScore = v
	}
	if m := quotedListPattern.FindStringSubmatch(s); m != nil {
		r.Concerns = quotedConcerns(m[1])
	} else if m := bareListPattern.FindStringSubmatch(s); m != nil {
		r.Concerns = bareConcerns(m[1])
	}
	return r
}

func quotedConcerns(body string) []string {
	out := []string{}
	for _, item := range quotedPattern.FindAllString(body, -1) {
		if v := unquote(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// bareConcerns reads an unquoted list such as [Acne, Redness].
func bareConcerns(body string) []string {
	out := []string{}
	for _, item := range strings.Split(body, ",") {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func findFloat(pattern *regexp.Regexp, s string) (float32, bool) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 32)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return float32(v), true
}

// unquote keeps the content of a valid string literal verbatim.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if v, err := strconv.Unquote(s); err == nil {
		return v
	}
	return strings.TrimSpace(strings.Trim(s, `"`))
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
