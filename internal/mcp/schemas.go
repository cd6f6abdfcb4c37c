package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/patternloop/pkg/types"
)

var patternTypes = []string{
	string(types.PatternCodeStructure),
	string(types.PatternCodeNaming),
	string(types.PatternErrorHandling),
	string(types.PatternDocumentation),
	string(types.PatternArchitecture),
	string(types.PatternDependency),
	string(types.PatternCodePattern),
}

func noArgs() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	}
}

// analyzePatternsTool returns the tool definition for analyze_patterns
func analyzePatternsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "analyze_patterns",
		Description: "Analyze pattern execution statistics: per-language and per-type aggregates, most valuable patterns, performance bottlenecks and recommendations",
		InputSchema: noArgs(),
	}
}

// getRecommendationsTool returns the tool definition for get_recommendations
func getRecommendationsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_recommendations",
		Description: "Get caching, optimization and removal recommendations from the latest analysis (re-analyzes when older than an hour)",
		InputSchema: noArgs(),
	}
}

// cacheWarmingCandidatesTool returns the tool definition for cache_warming_candidates
func cacheWarmingCandidatesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_warming_candidates",
		Description: "List patterns worth precompiling at startup, ordered by value score",
		InputSchema: noArgs(),
	}
}

// valueRankingTool returns the tool definition for value_ranking
func valueRankingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "value_ranking",
		Description: "Rank patterns by value score (hit ratio weighted against execution time)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of patterns to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Only rank patterns for this language",
				},
			},
		},
	}
}

// patternMetricsTool returns the tool definition for pattern_metrics
func patternMetricsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "pattern_metrics",
		Description: "Get the metrics record for one pattern",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: identityProperties(),
			Required:   []string{"language", "pattern_type", "pattern_id"},
		},
	}
}

// profilerReportTool returns the tool definition for profiler_report
func profilerReportTool() mcp.Tool {
	return mcp.Tool{
		Name:        "profiler_report",
		Description: "Get the compilation profiling report and detected bottlenecks with optimization suggestions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"include_details": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include per-pattern compilation statistics",
					"default":     false,
				},
			},
		},
	}
}

// strategyMetricsTool returns the tool definition for strategy_metrics
func strategyMetricsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "strategy_metrics",
		Description: "Get attempt and success counters for every recovery and learning strategy",
		InputSchema: noArgs(),
	}
}

// flushStatisticsTool returns the tool definition for flush_statistics
func flushStatisticsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "flush_statistics",
		Description: "Persist pattern statistics and the profiler report to the key-value store",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If false, only save when statistics are stale",
					"default":     true,
				},
			},
		},
	}
}

// identityProperties returns the schema properties naming one pattern
func identityProperties() map[string]interface{} {
	return map[string]interface{}{
		"language": map[string]interface{}{
			"type":        "string",
			"description": "Pattern language (e.g., go, python)",
		},
		"pattern_type": map[string]interface{}{
			"type":        "string",
			"description": "Pattern category",
			"enum":        patternTypes,
		},
		"pattern_id": map[string]interface{}{
			"type":        "string",
			"description": "Pattern identifier within its language and type",
		},
	}
}

// recordExecutionTool returns the tool definition for record_execution
func recordExecutionTool() mcp.Tool {
	props := identityProperties()
	props["execution_ms"] = map[string]interface{}{
		"type":        "number",
		"description": "Query execution time in milliseconds",
		"minimum":     0,
	}
	props["compilation_ms"] = map[string]interface{}{
		"type":        "number",
		"description": "Query compilation time in milliseconds",
		"default":     0,
		"minimum":     0,
	}
	props["matches_found"] = map[string]interface{}{
		"type":        "integer",
		"description": "Number of matches the execution produced",
		"default":     0,
		"minimum":     0,
	}
	props["memory_bytes"] = map[string]interface{}{
		"type":        "integer",
		"description": "Estimated memory used by the execution",
		"default":     0,
		"minimum":     0,
	}
	return mcp.Tool{
		Name:        "record_execution",
		Description: "Record one pattern execution into the statistics manager and return the updated metrics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"language", "pattern_type", "pattern_id", "execution_ms"},
		},
	}
}

// estimateComplexityTool returns the tool definition for estimate_complexity
func estimateComplexityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "estimate_complexity",
		Description: "Estimate the static complexity of a query pattern, optionally recording a compilation for the profiler",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Structural query text",
				},
				"pattern_name": map[string]interface{}{
					"type":        "string",
					"description": "Profiler name to record the compilation under",
				},
				"compile_time_ms": map[string]interface{}{
					"type":        "number",
					"description": "Measured compilation time; recorded when pattern_name is set",
					"minimum":     0,
				},
			},
			Required: []string{"pattern"},
		},
	}
}

// refinePatternTool returns the tool definition for refine_pattern
func refinePatternTool() mcp.Tool {
	return mcp.Tool{
		Name:        "refine_pattern",
		Description: "Chain the learning strategies over a pattern using accumulated match insights",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Structural query text to refine",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Pattern language",
				},
				"insights": map[string]interface{}{
					"type":        "object",
					"description": "Insight bag: node_type_frequencies, capture_frequencies, structure_frequencies, predicate_outcomes, pattern_confidence",
				},
				"match_count": map[string]interface{}{
					"type":        "integer",
					"description": "Number of matches the insights were gathered from",
					"default":     0,
					"minimum":     0,
				},
			},
			Required: []string{"pattern"},
		},
	}
}

// regexRecoverTool returns the tool definition for regex_recover
func regexRecoverTool() mcp.Tool {
	return mcp.Tool{
		Name:        "regex_recover",
		Description: "Run the regex fallback recovery strategy over source text",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Source text to scan",
				},
				"regex": map[string]interface{}{
					"type":        "string",
					"description": "Regular expression; ^ and $ match at line boundaries and . matches newlines",
				},
				"pattern_name": map[string]interface{}{
					"type":        "string",
					"description": "Name attached to the returned matches",
				},
			},
			Required: []string{"source", "regex"},
		},
	}
}

// runPatternsTool returns the tool definition for run_patterns
func runPatternsTool() mcp.Tool {
	patternProps := identityProperties()
	patternProps["query"] = map[string]interface{}{
		"type":        "string",
		"description": "Primary query",
	}
	patternProps["fallback_queries"] = map[string]interface{}{
		"type":        "array",
		"description": "Queries tried in order when the primary finds nothing",
		"items":       map[string]interface{}{"type": "string"},
	}
	patternProps["regex"] = map[string]interface{}{
		"type":        "string",
		"description": "Regex fallback used after the fallback queries",
	}

	return mcp.Tool{
		Name:        "run_patterns",
		Description: "Run a pattern catalog over source files, recording statistics and recovering failed matches",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"files": map[string]interface{}{
					"type":        "array",
					"description": "Source files",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"path":     map[string]interface{}{"type": "string"},
							"language": map[string]interface{}{"type": "string"},
							"content":  map[string]interface{}{"type": "string"},
						},
						"required": []string{"path", "language", "content"},
					},
				},
				"patterns": map[string]interface{}{
					"type":        "array",
					"description": "Pattern catalog",
					"items": map[string]interface{}{
						"type":       "object",
						"properties": patternProps,
						"required":   []string{"language", "pattern_type", "pattern_id", "query"},
					},
				},
				"refine": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, chain the learning strategies over every pattern with matches after the run",
					"default":     false,
				},
			},
			Required: []string{"files", "patterns"},
		},
	}
}
