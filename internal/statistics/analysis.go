package statistics

import (
	"fmt"
	"sort"
	"time"
)

// Analysis thresholds. The constants are kept for compatibility with
// existing stored reports and downstream tooling.
const (
	TopValuableLimit   = 10
	TopBottleneckLimit = 10
	RecommendTopN      = 5

	BottleneckMinExecutions = 5
	RemoveMinExecutions     = 10
	LowValueThreshold       = 0.1

	AnalysisMaxAge = time.Hour

	CacheWarmingLimit       = 20
	CacheWarmingMinValue    = 0.5
	CacheWarmingMinHitRatio = 0.1
	HighPriorityValue       = 5
)

// Report statuses
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
)

// Recommendation types
const (
	RecommendPrioritizeCaching = "prioritize_caching"
	RecommendConsiderRemoving  = "consider_removing"
	RecommendOptimize          = "optimize_or_deprioritize"
	RecommendFocusLanguage     = "focus_language"
)

// Cache warming priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// GroupStats aggregates the records sharing a language or pattern type
type GroupStats struct {
	PatternCount     int     `json:"pattern_count"`
	AvgHitRatio      float64 `json:"avg_hit_ratio"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
	TotalMatches     int64   `json:"total_matches"`
	TotalExecutions  int64   `json:"total_executions"`
}

// PatternSummary is the projection of a record used in report lists
type PatternSummary struct {
	PatternID        string  `json:"pattern_id"`
	Language         string  `json:"language"`
	Type             string  `json:"type"`
	ValueScore       float64 `json:"value_score"`
	HitRatio         float64 `json:"hit_ratio"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
	Executions       int64   `json:"executions"`
	Matches          int64   `json:"matches"`
}

// Recommendation is one actionable suggestion from Analyze
type Recommendation struct {
	Type      string `json:"type"`
	PatternID string `json:"pattern_id,omitempty"`
	Language  string `json:"language"`
	Reason    string `json:"reason"`
}

// Report is the result of Analyze
type Report struct {
	Status          string                `json:"status"`
	Message         string                `json:"message,omitempty"`
	Timestamp       time.Time             `json:"timestamp"`
	TotalPatterns   int                   `json:"total_patterns"`
	ByLanguage      map[string]GroupStats `json:"by_language,omitempty"`
	ByPatternType   map[string]GroupStats `json:"by_pattern_type,omitempty"`
	MostValuable    []PatternSummary      `json:"most_valuable_patterns,omitempty"`
	Bottlenecks     []PatternSummary      `json:"performance_bottlenecks,omitempty"`
	Recommendations []Recommendation      `json:"recommendations,omitempty"`
}

// CacheWarmingCandidate is a pattern worth precompiling
type CacheWarmingCandidate struct {
	PatternID  string  `json:"pattern_id"`
	Language   string  `json:"language"`
	Type       string  `json:"type"`
	Priority   string  `json:"priority"`
	Reason     string  `json:"reason"`
	ValueScore float64 `json:"value_score"`
	HitRatio   float64 `json:"hit_ratio"`
}

// LanguageStats are per-language totals computed from counters
type LanguageStats struct {
	PatternCount       int            `json:"pattern_count"`
	TotalExecutions    int64          `json:"total_executions"`
	TotalMatches       int64          `json:"total_matches"`
	TotalExecutionTime float64        `json:"total_execution_time"`
	AvgHitRatio        float64        `json:"avg_hit_ratio"`
	AvgExecutionTime   float64        `json:"avg_execution_time"`
	PatternsByType     map[string]int `json:"patterns_by_type"`
}

// Summary projects a snapshot onto the fields used in report lists
func (m Metrics) Summary() PatternSummary {
	return PatternSummary{
		PatternID:        m.PatternID,
		Language:         m.Language,
		Type:             string(m.PatternType),
		ValueScore:       m.ValueScore,
		HitRatio:         m.HitRatio,
		AvgExecutionTime: m.AvgExecutionTimeMs,
		Executions:       m.Executions,
		Matches:          m.Matches,
	}
}

// Analyze computes grouped aggregates, the most valuable patterns, the
// performance bottlenecks and recommendations. With no records it returns a
// no_data report and leaves the cached analysis untouched.
func (m *Manager) Analyze() Report {
	all := m.snapshots()
	now := m.now()

	if len(all) == 0 {
		return Report{
			Status:    StatusNoData,
			Message:   "No pattern statistics available",
			Timestamp: now,
		}
	}

	report := Report{
		Status:        StatusOK,
		Timestamp:     now,
		TotalPatterns: len(all),
		ByLanguage:    groupBy(all, func(x Metrics) string { return x.Language }),
		ByPatternType: groupBy(all, func(x Metrics) string { return string(x.PatternType) }),
	}

	valuable := rankByValue(all)
	bottlenecks := selectBottlenecks(all)

	for _, x := range topN(valuable, TopValuableLimit) {
		report.MostValuable = append(report.MostValuable, x.Summary())
	}
	for _, x := range topN(bottlenecks, TopBottleneckLimit) {
		report.Bottlenecks = append(report.Bottlenecks, x.Summary())
	}

	report.Recommendations = buildRecommendations(
		topN(valuable, RecommendTopN),
		topN(bottlenecks, RecommendTopN),
		all,
	)

	m.analysisMu.Lock()
	cached := report
	m.lastAnalysis = &cached
	m.analysisMu.Unlock()

	return report
}

// Recommendations returns the cached analysis's recommendations, running
// Analyze first when there is no analysis or it is older than AnalysisMaxAge.
func (m *Manager) Recommendations() []Recommendation {
	m.analysisMu.Lock()
	last := m.lastAnalysis
	m.analysisMu.Unlock()

	if last == nil || m.now().Sub(last.Timestamp) > AnalysisMaxAge {
		report := m.Analyze()
		last = &report
	}

	return append([]Recommendation(nil), last.Recommendations...)
}

// LastAnalysis returns the cached analysis, if any
func (m *Manager) LastAnalysis() (Report, bool) {
	m.analysisMu.Lock()
	defer m.analysisMu.Unlock()
	if m.lastAnalysis == nil {
		return Report{}, false
	}
	return *m.lastAnalysis, true
}

// CacheWarmingCandidates returns up to CacheWarmingLimit patterns ranked by
// (value score, hit ratio) that clear the value and hit ratio floors.
func (m *Manager) CacheWarmingCandidates() []CacheWarmingCandidate {
	all := m.snapshots()
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].ValueScore != all[j].ValueScore {
			return all[i].ValueScore > all[j].ValueScore
		}
		return all[i].HitRatio > all[j].HitRatio
	})

	var out []CacheWarmingCandidate
	for _, x := range topN(all, CacheWarmingLimit) {
		if x.ValueScore <= CacheWarmingMinValue || x.HitRatio <= CacheWarmingMinHitRatio {
			continue
		}
		priority := PriorityMedium
		if x.ValueScore > HighPriorityValue {
			priority = PriorityHigh
		}
		out = append(out, CacheWarmingCandidate{
			PatternID:  x.PatternID,
			Language:   x.Language,
			Type:       string(x.PatternType),
			Priority:   priority,
			Reason:     fmt.Sprintf("Value score: %.2f, Hit ratio: %.2f", x.ValueScore, x.HitRatio),
			ValueScore: x.ValueScore,
			HitRatio:   x.HitRatio,
		})
	}
	return out
}

// ValueRanking returns every record ordered by value score, highest first
func (m *Manager) ValueRanking() []Metrics {
	return rankByValue(m.snapshots())
}

// LanguageStatistics returns per-language totals. Averages are computed
// from the totals rather than averaged per pattern.
func (m *Manager) LanguageStatistics() map[string]LanguageStats {
	out := make(map[string]LanguageStats)
	for _, x := range m.snapshots() {
		s, ok := out[x.Language]
		if !ok {
			s.PatternsByType = make(map[string]int)
		}
		s.PatternCount++
		s.TotalExecutions += x.Executions
		s.TotalMatches += x.Matches
		s.TotalExecutionTime += x.TotalExecutionTimeMs
		s.PatternsByType[string(x.PatternType)]++
		out[x.Language] = s
	}

	for lang, s := range out {
		if s.TotalExecutions > 0 {
			s.AvgHitRatio = float64(s.TotalMatches) / float64(s.TotalExecutions)
			s.AvgExecutionTime = s.TotalExecutionTime / float64(s.TotalExecutions)
		}
		out[lang] = s
	}
	return out
}

func rankByValue(all []Metrics) []Metrics {
	ranked := append([]Metrics(nil), all...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ValueScore > ranked[j].ValueScore
	})
	return ranked
}

// selectBottlenecks keeps records with more than BottleneckMinExecutions
// executions, or with any executions at all when none qualify, ordered
// lowest value first and slowest first among equal values.
func selectBottlenecks(all []Metrics) []Metrics {
	threshold := int64(BottleneckMinExecutions)
	hasQualifying := false
	for _, x := range all {
		if x.Executions > threshold {
			hasQualifying = true
			break
		}
	}
	if !hasQualifying {
		threshold = 0
	}

	var candidates []Metrics
	for _, x := range all {
		if x.Executions > threshold {
			candidates = append(candidates, x)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ValueScore != candidates[j].ValueScore {
			return candidates[i].ValueScore < candidates[j].ValueScore
		}
		return candidates[i].AvgExecutionTimeMs > candidates[j].AvgExecutionTimeMs
	})
	return candidates
}

func buildRecommendations(valuable, bottlenecks, all []Metrics) []Recommendation {
	var recs []Recommendation

	for _, x := range valuable {
		recs = append(recs, Recommendation{
			Type:      RecommendPrioritizeCaching,
			PatternID: x.PatternID,
			Language:  x.Language,
			Reason:    fmt.Sprintf("High value pattern (score: %.2f) with good hit ratio (%.2f)", x.ValueScore, x.HitRatio),
		})
	}

	for _, x := range bottlenecks {
		switch {
		case x.Matches == 0 && x.Executions > RemoveMinExecutions:
			recs = append(recs, Recommendation{
				Type:      RecommendConsiderRemoving,
				PatternID: x.PatternID,
				Language:  x.Language,
				Reason:    fmt.Sprintf("Pattern never matches despite %d executions", x.Executions),
			})
		case x.ValueScore < LowValueThreshold:
			recs = append(recs, Recommendation{
				Type:      RecommendOptimize,
				PatternID: x.PatternID,
				Language:  x.Language,
				Reason:    fmt.Sprintf("Low value score (%.2f) with high execution time (%.2fms)", x.ValueScore, x.AvgExecutionTimeMs),
			})
		}
	}

	if lang, ratio, ok := bestLanguage(all); ok {
		recs = append(recs, Recommendation{
			Type:     RecommendFocusLanguage,
			Language: lang,
			Reason:   fmt.Sprintf("Highest average hit ratio (%.2f) across patterns", ratio),
		})
	}
	return recs
}

// bestLanguage returns the language with the highest mean hit ratio.
// Ties go to the language seen first.
func bestLanguage(all []Metrics) (string, float64, bool) {
	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[string]*acc)
	var langs []string
	for _, x := range all {
		a, ok := sums[x.Language]
		if !ok {
			a = &acc{}
			sums[x.Language] = a
			langs = append(langs, x.Language)
		}
		a.sum += x.HitRatio
		a.count++
	}

	best, bestRatio := "", 0.0
	for _, lang := range langs {
		ratio := sums[lang].sum / float64(sums[lang].count)
		if best == "" || ratio > bestRatio {
			best, bestRatio = lang, ratio
		}
	}
	return best, bestRatio, best != ""
}

func groupBy(all []Metrics, keyFn func(Metrics) string) map[string]GroupStats {
	groups := make(map[string][]Metrics)
	for _, x := range all {
		k := keyFn(x)
		groups[k] = append(groups[k], x)
	}

	out := make(map[string]GroupStats, len(groups))
	for k, members := range groups {
		var gs GroupStats
		var hitSum, timeSum float64
		for _, x := range members {
			hitSum += x.HitRatio
			timeSum += x.AvgExecutionTimeMs
			gs.TotalMatches += x.Matches
			gs.TotalExecutions += x.Executions
		}
		gs.PatternCount = len(members)
		gs.AvgHitRatio = hitSum / float64(len(members))
		gs.AvgExecutionTime = timeSum / float64(len(members))
		out[k] = gs
	}
	return out
}

func topN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
