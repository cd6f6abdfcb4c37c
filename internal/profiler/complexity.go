package profiler

import "strings"

// Complexity weights per textual feature
const (
	weightQuantifier    = 5
	weightBackreference = 10
	weightLookaround    = 15
	weightGroup         = 3
	weightAlternation   = 7
	weightCharClass     = 2
	weightCapture       = 8
	weightPredicate     = 5
	weightWildcard      = 3
)

var lookarounds = []string{"(?=", "(?!", "(?<=", "(?<!"}

// EstimateComplexity returns a static cost estimate for a regex or
// structural query pattern. Higher is more expensive; empty input is 0.
//
// Backreferences count once per distinct digit present, so "\1\1" scores
// the same as "\1".
func EstimateComplexity(pattern string) int {
	if pattern == "" {
		return 0
	}

	score := 0

	quantifiers := strings.Count(pattern, "*") + strings.Count(pattern, "+") +
		strings.Count(pattern, "?") + strings.Count(pattern, "{")
	score += quantifiers * weightQuantifier

	for d := '0'; d <= '9'; d++ {
		if strings.Contains(pattern, `\`+string(d)) {
			score += weightBackreference
		}
	}

	for _, la := range lookarounds {
		score += strings.Count(pattern, la) * weightLookaround
	}

	score += strings.Count(pattern, "(") * weightGroup
	score += strings.Count(pattern, "|") * weightAlternation
	score += strings.Count(pattern, "[") * weightCharClass
	score += strings.Count(pattern, "@") * weightCapture
	score += strings.Count(pattern, "#") * weightPredicate
	score += (strings.Count(pattern, "_") + strings.Count(pattern, ".")) * weightWildcard

	return score
}
