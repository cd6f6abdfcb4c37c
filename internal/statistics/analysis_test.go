package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patternloop/pkg/types"
)

func recordN(t *testing.T, mgr *Manager, id types.Identity, n int, execMs float64, matchFn func(i int) int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, mgr.Record(id, execMs, 0, matchFn(i), 0))
	}
}

func always(n int) func(int) int { return func(int) int { return n } }

func pyID(id string) types.Identity {
	return types.Identity{Language: "python", Type: types.PatternErrorHandling, ID: id}
}

func TestAnalyze_NoData(t *testing.T) {
	mgr, _ := setupTestManager(t)

	report := mgr.Analyze()

	assert.Equal(t, StatusNoData, report.Status)
	assert.Zero(t, report.TotalPatterns)
	_, ok := mgr.LastAnalysis()
	assert.False(t, ok, "no_data analysis must not be cached")
	assert.Empty(t, mgr.Recommendations())
}

func TestAnalyze_Aggregates(t *testing.T) {
	mgr, clock := setupTestManager(t)
	recordN(t, mgr, goID("a"), 2, 4, always(1))
	recordN(t, mgr, goID("b"), 2, 8, always(0))
	recordN(t, mgr, pyID("c"), 1, 2, always(3))

	report := mgr.Analyze()

	require.Equal(t, StatusOK, report.Status)
	assert.Equal(t, 3, report.TotalPatterns)
	assert.Equal(t, clock.Now(), report.Timestamp)

	golang := report.ByLanguage["go"]
	assert.Equal(t, 2, golang.PatternCount)
	assert.InDelta(t, 0.5, golang.AvgHitRatio, 1e-9)
	assert.InDelta(t, 6.0, golang.AvgExecutionTime, 1e-9)
	assert.Equal(t, int64(2), golang.TotalMatches)
	assert.Equal(t, int64(4), golang.TotalExecutions)

	assert.Equal(t, 2, report.ByPatternType[string(types.PatternCodeStructure)].PatternCount)
	assert.Equal(t, 1, report.ByPatternType[string(types.PatternErrorHandling)].PatternCount)

	require.NotEmpty(t, report.MostValuable)
	assert.Equal(t, "c", report.MostValuable[0].PatternID)

	cached, ok := mgr.LastAnalysis()
	require.True(t, ok)
	assert.Equal(t, report.TotalPatterns, cached.TotalPatterns)
}

func TestAnalyze_RecommendationOrder(t *testing.T) {
	mgr, _ := setupTestManager(t)

	// value 50
	recordN(t, mgr, goID("fast"), 10, 1, always(1))
	// never matches, value 0
	recordN(t, mgr, goID("dead"), 12, 5, always(0))
	// hit 0.5, avg 1000ms, value below 0.1
	recordN(t, mgr, pyID("slow"), 6, 1000, func(i int) int { return (i + 1) % 2 })
	// value 10
	recordN(t, mgr, pyID("ok"), 6, 9, always(1))

	report := mgr.Analyze()
	recs := report.Recommendations

	require.Len(t, recs, 7)

	var got [][2]string
	for _, r := range recs {
		got = append(got, [2]string{r.Type, r.PatternID})
	}
	assert.Equal(t, [][2]string{
		{RecommendPrioritizeCaching, "fast"},
		{RecommendPrioritizeCaching, "ok"},
		{RecommendPrioritizeCaching, "slow"},
		{RecommendPrioritizeCaching, "dead"},
		{RecommendConsiderRemoving, "dead"},
		{RecommendOptimize, "slow"},
		{RecommendFocusLanguage, ""},
	}, got)

	assert.Equal(t, "Pattern never matches despite 12 executions", recs[4].Reason)
	assert.Equal(t, "python", recs[6].Language)
	assert.Equal(t, "Highest average hit ratio (0.75) across patterns", recs[6].Reason)
	assert.Equal(t, "High value pattern (score: 50.00) with good hit ratio (1.00)", recs[0].Reason)
}

func TestSelectBottlenecks_ThresholdFallback(t *testing.T) {
	mk := func(id string, executions int64, avg float64) Metrics {
		return Metrics{PatternID: id, Executions: executions, AvgExecutionTimeMs: avg}
	}

	t.Run("falls back when none exceed five", func(t *testing.T) {
		got := selectBottlenecks([]Metrics{mk("a", 1, 1), mk("b", 2, 3), mk("c", 3, 2), mk("d", 4, 5)})
		require.Len(t, got, 4)
		// All values are 0, so slowest first
		assert.Equal(t, []string{"d", "b", "c", "a"}, ids(got))
	})

	t.Run("fallback still excludes unexecuted records", func(t *testing.T) {
		got := selectBottlenecks([]Metrics{mk("a", 0, 0), mk("b", 1, 0), mk("c", 2, 0), mk("d", 4, 0)})
		assert.Equal(t, []string{"b", "c", "d"}, ids(got))
	})

	t.Run("keeps threshold when any record qualifies", func(t *testing.T) {
		got := selectBottlenecks([]Metrics{mk("a", 0, 0), mk("b", 1, 0), mk("c", 2, 0), mk("d", 10, 0)})
		assert.Equal(t, []string{"d"}, ids(got))
	})
}

func TestAnalyze_BottlenecksFallbackEndToEnd(t *testing.T) {
	mgr, _ := setupTestManager(t)
	for i, n := range []int{1, 2, 3, 4} {
		recordN(t, mgr, goID(string(rune('a'+i))), n, 2, always(0))
	}

	report := mgr.Analyze()
	assert.Len(t, report.Bottlenecks, 4)
}

func TestRecommendations_Staleness(t *testing.T) {
	mgr, clock := setupTestManager(t)
	recordN(t, mgr, goID("a"), 1, 1, always(1))

	first := mgr.Recommendations()
	require.Len(t, first, 2, "prioritize_caching plus focus_language")

	recordN(t, mgr, pyID("b"), 1, 1, always(1))

	clock.Advance(30 * time.Minute)
	assert.Len(t, mgr.Recommendations(), 2, "cached analysis is reused within an hour")

	clock.Advance(31 * time.Minute)
	assert.Len(t, mgr.Recommendations(), 3, "stale analysis is recomputed")
}

func TestCacheWarmingCandidates(t *testing.T) {
	mgr, _ := setupTestManager(t)

	firstOnly := func(i int) int {
		if i == 0 {
			return 1
		}
		return 0
	}

	recordN(t, mgr, goID("hot"), 2, 1, always(1))    // value 50
	recordN(t, mgr, goID("warm"), 2, 99, always(1))  // value 1
	recordN(t, mgr, goID("rare"), 20, 0, firstOnly)  // hit 0.05
	recordN(t, mgr, goID("cold"), 2, 300, always(1)) // value below 0.5

	got := mgr.CacheWarmingCandidates()

	require.Len(t, got, 2)
	assert.Equal(t, "hot", got[0].PatternID)
	assert.Equal(t, PriorityHigh, got[0].Priority)
	assert.Equal(t, "warm", got[1].PatternID)
	assert.Equal(t, PriorityMedium, got[1].Priority)
	assert.Equal(t, "Value score: 1.00, Hit ratio: 1.00", got[1].Reason)
}

func TestValueRanking(t *testing.T) {
	mgr, _ := setupTestManager(t)
	recordN(t, mgr, goID("low"), 3, 50, always(0))
	recordN(t, mgr, goID("high"), 3, 1, always(2))
	recordN(t, mgr, pyID("mid"), 3, 10, always(1))

	ranking := mgr.ValueRanking()

	require.Len(t, ranking, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, ids(ranking))
	for i := 1; i < len(ranking); i++ {
		assert.GreaterOrEqual(t, ranking[i-1].ValueScore, ranking[i].ValueScore)
	}
}

func TestLanguageStatistics(t *testing.T) {
	mgr, _ := setupTestManager(t)
	recordN(t, mgr, goID("a"), 2, 3, always(1))
	recordN(t, mgr, types.Identity{Language: "go", Type: types.PatternCodeNaming, ID: "b"}, 2, 5, always(0))

	stats := mgr.LanguageStatistics()

	require.Contains(t, stats, "go")
	golang := stats["go"]
	assert.Equal(t, 2, golang.PatternCount)
	assert.Equal(t, int64(4), golang.TotalExecutions)
	assert.Equal(t, int64(2), golang.TotalMatches)
	assert.InDelta(t, 0.5, golang.AvgHitRatio, 1e-9)
	assert.InDelta(t, 4.0, golang.AvgExecutionTime, 1e-9)
	assert.Equal(t, map[string]int{"code_structure": 1, "code_naming": 1}, golang.PatternsByType)
}

func ids(ms []Metrics) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.PatternID)
	}
	return out
}
