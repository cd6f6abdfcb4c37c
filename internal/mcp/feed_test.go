package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patternloop/internal/learning"
	"github.com/dshills/patternloop/internal/profiler"
	"github.com/dshills/patternloop/internal/recovery"
	"github.com/dshills/patternloop/internal/statistics"
	"github.com/dshills/patternloop/internal/storage"
)

func identityArgs(id string, extra map[string]interface{}) map[string]interface{} {
	args := map[string]interface{}{
		"language":     "go",
		"pattern_type": "code_structure",
		"pattern_id":   id,
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

func TestRecordExecution(t *testing.T) {
	s, deps := setupTestServer(t)
	ctx := context.Background()

	t.Run("records into the statistics manager", func(t *testing.T) {
		result, err := s.handleRecordExecution(ctx, callRequest("record_execution", identityArgs("functions", map[string]interface{}{
			"execution_ms":   float64(4),
			"compilation_ms": float64(1),
			"matches_found":  float64(2),
		})))
		require.NoError(t, err)
		out := decode(t, result)

		metrics := out["metrics"].(map[string]interface{})
		assert.EqualValues(t, 1, metrics["executions"])
		assert.Equal(t, false, out["needs_flush"])

		m, ok := deps.Stats.Metrics(goPattern("functions"))
		require.True(t, ok)
		assert.Equal(t, int64(2), m.Matches)
	})

	t.Run("tenth identity requests a flush", func(t *testing.T) {
		for i := 1; i < statistics.FlushCadence; i++ {
			_, err := s.handleRecordExecution(ctx, callRequest("record_execution", identityArgs(fmt.Sprintf("p%d", i), map[string]interface{}{
				"execution_ms": float64(1),
			})))
			require.NoError(t, err)
		}
		assert.True(t, deps.Stats.NeedsFlush())
	})

	t.Run("missing execution time", func(t *testing.T) {
		_, err := s.handleRecordExecution(ctx, callRequest("record_execution", identityArgs("functions", nil)))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("negative values", func(t *testing.T) {
		_, err := s.handleRecordExecution(ctx, callRequest("record_execution", identityArgs("functions", map[string]interface{}{
			"execution_ms": float64(-1),
		})))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("invalid identity", func(t *testing.T) {
		args := identityArgs("functions", map[string]interface{}{"execution_ms": float64(1)})
		args["pattern_type"] = "unknown"
		_, err := s.handleRecordExecution(ctx, callRequest("record_execution", args))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})
}

func TestEstimateComplexity(t *testing.T) {
	s, deps := setupTestServer(t)
	ctx := context.Background()
	pattern := `(call_expression function: (identifier) @fn (#match? @fn "^test"))`

	t.Run("estimate only", func(t *testing.T) {
		result, err := s.handleEstimateComplexity(ctx, callRequest("estimate_complexity", map[string]interface{}{
			"pattern": pattern,
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.EqualValues(t, profiler.EstimateComplexity(pattern), out["complexity"])
		assert.EqualValues(t, len(pattern), out["size"])
		assert.Equal(t, false, out["recorded"])
	})

	t.Run("records compilation", func(t *testing.T) {
		result, err := s.handleEstimateComplexity(ctx, callRequest("estimate_complexity", map[string]interface{}{
			"pattern":         pattern,
			"pattern_name":    "go:code_structure:tests",
			"compile_time_ms": float64(2),
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, true, out["recorded"])

		stats, ok := deps.Profiler.PatternStats("go:code_structure:tests")
		require.True(t, ok)
		assert.Equal(t, 1, stats.Count)
		assert.Equal(t, profiler.EstimateComplexity(pattern), stats.Complexity)
	})

	t.Run("missing pattern", func(t *testing.T) {
		_, err := s.handleEstimateComplexity(ctx, callRequest("estimate_complexity", nil))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("recording without profiler", func(t *testing.T) {
		bare, err := NewServer(Deps{Stats: statistics.NewManager()})
		require.NoError(t, err)
		_, err = bare.handleEstimateComplexity(ctx, callRequest("estimate_complexity", map[string]interface{}{
			"pattern":         pattern,
			"pattern_name":    "x",
			"compile_time_ms": float64(1),
		}))
		requireMCPError(t, err, ErrorCodeUnavailable)
	})
}

func TestRefinePattern(t *testing.T) {
	s, deps := setupTestServer(t)
	ctx := context.Background()

	t.Run("node frequencies fill a wildcard", func(t *testing.T) {
		result, err := s.handleRefinePattern(ctx, callRequest("refine_pattern", map[string]interface{}{
			"pattern":  "(call_expression function: (_))",
			"language": "go",
			"insights": map[string]interface{}{
				"node_type_frequencies": map[string]interface{}{"identifier": float64(4)},
			},
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, true, out["changed"])
		ref := out["refinement"].(map[string]interface{})
		assert.Equal(t, "(call_expression function: (identifier))", ref["pattern"])
		assert.Contains(t, ref["applied"], learning.StrategyNodePatternImprovement)
	})

	t.Run("match count enables generalization", func(t *testing.T) {
		result, err := s.handleRefinePattern(ctx, callRequest("refine_pattern", map[string]interface{}{
			"pattern":     `(call_expression arguments: "handler_name")`,
			"match_count": float64(5),
		}))
		require.NoError(t, err)
		ref := decode(t, result)["refinement"].(map[string]interface{})
		assert.Equal(t, `(call_expression arguments: ".*")`, ref["pattern"])
		assert.InDelta(t, 0.48, ref["confidence"], 1e-9)
	})

	t.Run("nothing to learn", func(t *testing.T) {
		result, err := s.handleRefinePattern(ctx, callRequest("refine_pattern", map[string]interface{}{
			"pattern": "(identifier)",
		}))
		require.NoError(t, err)
		assert.Equal(t, false, decode(t, result)["changed"])
	})

	t.Run("invalid insights", func(t *testing.T) {
		_, err := s.handleRefinePattern(ctx, callRequest("refine_pattern", map[string]interface{}{
			"pattern":  "(_)",
			"insights": "lots",
		}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("missing pattern", func(t *testing.T) {
		_, err := s.handleRefinePattern(ctx, callRequest("refine_pattern", nil))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	var attempts int
	for _, m := range deps.Learning.Metrics() {
		if m.Name == learning.StrategyNodePatternImprovement {
			attempts = m.Attempts
		}
	}
	assert.Equal(t, 3, attempts)
}

func TestRegexRecover(t *testing.T) {
	s, deps := setupTestServer(t)
	ctx := context.Background()
	source := "package x\nfunc Alpha() {}\nfunc Beta() {}\n"

	t.Run("matches", func(t *testing.T) {
		result, err := s.handleRegexRecover(ctx, callRequest("regex_recover", map[string]interface{}{
			"source": source,
			"regex":  `^func (?P<name>\w+)`,
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, true, out["success"])
		assert.EqualValues(t, 2, out["match_count"])

		first := out["matches"].([]interface{})[0].(map[string]interface{})
		assert.EqualValues(t, 10, first["start"])
		assert.Equal(t, "func Alpha", first["text"])
		assert.Equal(t, "Alpha", first["named_groups"].(map[string]interface{})["name"])
	})

	t.Run("no match", func(t *testing.T) {
		result, err := s.handleRegexRecover(ctx, callRequest("regex_recover", map[string]interface{}{
			"source": source,
			"regex":  `^type \w+`,
		}))
		require.NoError(t, err)
		out := decode(t, result)
		assert.Equal(t, false, out["success"])
		assert.Contains(t, out["error"], "did not match")
	})

	t.Run("missing regex", func(t *testing.T) {
		_, err := s.handleRegexRecover(ctx, callRequest("regex_recover", map[string]interface{}{
			"source": source,
		}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	for _, m := range deps.Recovery.Metrics() {
		if m.Name == recovery.StrategyRegexFallback {
			assert.Equal(t, 2, m.Attempts)
			assert.Equal(t, 1, m.Successes)
		}
	}
}

func runArgs(files int, query string) map[string]interface{} {
	var fileList []interface{}
	for i := 0; i < files; i++ {
		fileList = append(fileList, map[string]interface{}{
			"path":     fmt.Sprintf("f%d.go", i),
			"language": "go",
			"content":  fmt.Sprintf("package x\nfunc F%d() {}\n", i),
		})
	}
	return map[string]interface{}{
		"files": fileList,
		"patterns": []interface{}{
			map[string]interface{}{
				"language":     "go",
				"pattern_type": "code_structure",
				"pattern_id":   "functions",
				"query":        query,
			},
		},
	}
}

func TestRunPatterns(t *testing.T) {
	ctx := context.Background()

	t.Run("feeds statistics and profiler", func(t *testing.T) {
		s, deps := setupTestServer(t)
		args := runArgs(3, `^func (?P<name>\w+)`)
		args["refine"] = true

		result, err := s.handleRunPatterns(ctx, callRequest("run_patterns", args))
		require.NoError(t, err)
		out := decode(t, result)
		assert.EqualValues(t, 3, out["files_processed"])
		assert.EqualValues(t, 3, out["matched"])
		assert.EqualValues(t, 3, out["matches_found"])
		assert.EqualValues(t, 0, out["error_count"])
		assert.NotContains(t, out, "errors")

		refinements := out["refinements"].([]interface{})
		require.Len(t, refinements, 1)
		assert.Equal(t, "functions", refinements[0].(map[string]interface{})["pattern_id"])

		m, ok := deps.Stats.Metrics(goPattern("functions"))
		require.True(t, ok)
		assert.Equal(t, int64(3), m.Executions)

		_, ok = deps.Profiler.PatternStats(goPattern("functions").Key())
		assert.True(t, ok)
	})

	t.Run("errors are capped by the run config", func(t *testing.T) {
		s, _ := setupTestServer(t)

		result, err := s.handleRunPatterns(ctx, callRequest("run_patterns", runArgs(10, `(`)))
		require.NoError(t, err)
		out := decode(t, result)
		assert.EqualValues(t, 10, out["files_processed"])
		assert.EqualValues(t, 7, out["error_count"])
		assert.Len(t, out["errors"], MaxSurfacedErrors)
	})

	t.Run("invalid catalog", func(t *testing.T) {
		s, _ := setupTestServer(t)
		args := runArgs(1, "")
		_, err := s.handleRunPatterns(ctx, callRequest("run_patterns", args))
		requireMCPError(t, err, ErrorCodeInvalidParams)

		_, err = s.handleRunPatterns(ctx, callRequest("run_patterns", map[string]interface{}{"files": "nope"}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
	})

	t.Run("no runner", func(t *testing.T) {
		s, err := NewServer(Deps{Stats: statistics.NewManager(), Store: storage.NewMemoryStore()})
		require.NoError(t, err)
		_, err = s.handleRunPatterns(ctx, callRequest("run_patterns", runArgs(1, "x")))
		requireMCPError(t, err, ErrorCodeUnavailable)
	})
}
