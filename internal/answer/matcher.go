// Package answer evaluates free-text guesses against an accepted answer set.
package answer

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultMaxDistance       = 2
	DefaultRelativeThreshold = 0.2
)

// Spec is the accepted answer for a challenge. A nil MaxDistance and a zero
// RelativeThreshold fall back to the defaults; MaxDistance 0 means exact.
type Spec struct {
	Solution          string   `json:"solution"`
	AcceptedAnswers   []string `json:"acceptedAnswers,omitempty"`
	MaxDistance       *int     `json:"maxDistance,omitempty"`
	RelativeThreshold float64  `json:"relativeThreshold,omitempty"`
}

// Evaluation is the outcome of comparing one attempt.
type Evaluation struct {
	NormalizedAnswer string `json:"normalizedAnswer"`
	Distance         int    `json:"distance"`
	IsMatch          bool   `json:"isMatch"`
}

var separators = regexp.MustCompile(`[\s,.;:!?/\\|\-]+`)

// Normalize folds accents and case, splits on whitespace and punctuation,
// strips everything but letters and digits and joins the sorted tokens.
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var tokens []string
	for _, raw := range separators.Split(folded, -1) {
		token := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, raw)
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Evaluate compares attempt to the solution and every accepted variant and
// keeps the closest one. A variant matches when its distance is within both
// the absolute and the relative tolerance. An attempt with no letters or
// digits never matches; its distance is the length of the shortest variant.
func Evaluate(expected Spec, attempt string) Evaluation {
	normalized := Normalize(attempt)
	result := Evaluation{NormalizedAnswer: normalized, Distance: -1}

	maxDistance := DefaultMaxDistance
	if expected.MaxDistance != nil && *expected.MaxDistance >= 0 {
		maxDistance = *expected.MaxDistance
	}
	relative := expected.RelativeThreshold
	if relative <= 0 {
		relative = DefaultRelativeThreshold
	}

	attemptLen := len([]rune(normalized))
	candidates := append([]string{expected.Solution}, expected.AcceptedAnswers...)
	for _, candidate := range candidates {
		target := Normalize(candidate)
		if target == "" {
			continue
		}
		distance := levenshtein.ComputeDistance(normalized, target)
		longest := attemptLen
		if n := len([]rune(target)); n > longest {
			longest = n
		}
		allowed := int(math.Floor(relative * float64(longest)))
		if maxDistance < allowed {
			allowed = maxDistance
		}
		if result.Distance < 0 || distance < result.Distance {
			result.Distance = distance
		}
		if distance <= allowed && normalized != "" {
			result.IsMatch = true
		}
	}
	if result.Distance < 0 {
		result.Distance = attemptLen
	}
	return result
}
