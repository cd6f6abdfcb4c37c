package profiler

import (
	"sort"
	"time"
)

// Bottleneck thresholds
const (
	SlowAverage         = 100 * time.Millisecond
	FrequentCount       = 100
	FrequentAverage     = 10 * time.Millisecond
	ComplexityThreshold = 50
	LargePatternSize    = 500
)

// Bottleneck is a pattern whose compilation cost warrants attention
type Bottleneck struct {
	PatternName string   `json:"pattern_name"`
	Reasons     []string `json:"reasons"`
	Stats       Stats    `json:"stats"`
	Suggestions []string `json:"optimization_suggestions"`
}

// Bottlenecks returns the patterns that are slow on average, frequently
// compiled at significant cost, or highly complex, ordered by total
// compilation time.
func (p *Profiler) Bottlenecks() []Bottleneck {
	report := p.Report()

	var out []Bottleneck
	for name, stats := range report.Details {
		var reasons []string
		if stats.AvgTime > SlowAverage {
			reasons = append(reasons, "high average compilation time")
		}
		if stats.Count > FrequentCount && stats.AvgTime > FrequentAverage {
			reasons = append(reasons, "frequently compiled with significant time")
		}
		if stats.Complexity > ComplexityThreshold {
			reasons = append(reasons, "high pattern complexity")
		}
		if len(reasons) == 0 {
			continue
		}
		out = append(out, Bottleneck{
			PatternName: name,
			Reasons:     reasons,
			Stats:       stats,
			Suggestions: SuggestOptimizations(stats),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Stats.TotalTime != out[j].Stats.TotalTime {
			return out[i].Stats.TotalTime > out[j].Stats.TotalTime
		}
		return out[i].PatternName < out[j].PatternName
	})
	return out
}

// SuggestOptimizations returns optimization hints for a pattern's stats.
// The last entry is always a generic review suggestion.
func SuggestOptimizations(stats Stats) []string {
	var out []string
	if stats.Count > FrequentCount {
		out = append(out, "Consider caching the compiled pattern")
	}
	if stats.Complexity > ComplexityThreshold {
		out = append(out, "Simplify pattern complexity by breaking into smaller patterns")
	}
	if stats.Size > LargePatternSize {
		out = append(out, "Pattern is very large, consider refactoring into smaller patterns")
	}
	if float64(stats.StdevTime) > float64(stats.AvgTime)*0.5 {
		out = append(out, "High variability in compilation time, investigate inconsistent behavior")
	}
	return append(out, "Review pattern for optimization opportunities (nested quantifiers, lookarounds, etc.)")
}
