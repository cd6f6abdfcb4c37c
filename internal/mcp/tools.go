package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/patternloop/internal/pipeline"
	"github.com/dshills/patternloop/internal/profiler"
	"github.com/dshills/patternloop/internal/recovery"
	"github.com/dshills/patternloop/internal/statistics"
	"github.com/dshills/patternloop/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodePatternNotFound  = -32001 // No metrics recorded for the pattern
	ErrorCodeUnavailable      = -32002 // Backing component not configured
	ErrorCodePersistenceError = -32003 // Key-value store write failed
	ErrorCodeRunInProgress    = -32004 // Another run_patterns call is active
)

// Limits for value_ranking
const (
	DefaultRankingLimit = 10
	MaxRankingLimit     = 100
)

// MaxSurfacedErrors caps the per-run error messages in a run_patterns response
const MaxSurfacedErrors = 5

// handleAnalyzePatterns handles the analyze_patterns tool invocation
func (s *Server) handleAnalyzePatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := s.stats.Analyze()
	return mcp.NewToolResultText(formatJSON(report)), nil
}

// handleGetRecommendations handles the get_recommendations tool invocation
func (s *Server) handleGetRecommendations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs := s.stats.Recommendations()
	if recs == nil {
		recs = []statistics.Recommendation{}
	}

	response := map[string]interface{}{
		"count":           len(recs),
		"recommendations": recs,
	}
	if last, ok := s.stats.LastAnalysis(); ok {
		response["analyzed_at"] = last.Timestamp
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCacheWarmingCandidates handles the cache_warming_candidates tool invocation
func (s *Server) handleCacheWarmingCandidates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	candidates := s.stats.CacheWarmingCandidates()
	if candidates == nil {
		candidates = []statistics.CacheWarmingCandidate{}
	}

	response := map[string]interface{}{
		"count":      len(candidates),
		"candidates": candidates,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleValueRanking handles the value_ranking tool invocation
func (s *Server) handleValueRanking(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	limit := getIntDefault(args, "limit", DefaultRankingLimit)
	if limit < 1 || limit > MaxRankingLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	language := getStringDefault(args, "language", "")

	ranking := s.stats.ValueRanking()
	patterns := make([]statistics.PatternSummary, 0, limit)
	total := 0
	for _, m := range ranking {
		if language != "" && m.Language != language {
			continue
		}
		total++
		if len(patterns) < limit {
			patterns = append(patterns, m.Summary())
		}
	}

	response := map[string]interface{}{
		"total":    total,
		"patterns": patterns,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handlePatternMetrics handles the pattern_metrics tool invocation
func (s *Server) handlePatternMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := identityArg(args)
	if err != nil {
		return nil, err
	}

	m, found := s.stats.Metrics(id)
	if !found {
		return nil, newMCPError(ErrorCodePatternNotFound, "no metrics recorded for pattern", map[string]interface{}{
			"pattern": id.Key(),
		})
	}
	return mcp.NewToolResultText(formatJSON(m)), nil
}

// handleProfilerReport handles the profiler_report tool invocation
func (s *Server) handleProfilerReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.profiler == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "profiler is not enabled", nil)
	}
	includeDetails := getBoolDefault(arguments(request), "include_details", false)

	report := s.profiler.Report()
	if !includeDetails {
		report.Details = nil
	}

	response := map[string]interface{}{
		"report":      report,
		"bottlenecks": s.profiler.Bottlenecks(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStrategyMetrics handles the strategy_metrics tool invocation
func (s *Server) handleStrategyMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.recovery == nil && s.learning == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "no strategy engines configured", nil)
	}

	response := map[string]interface{}{}
	if s.recovery != nil {
		response["recovery"] = s.recovery.Metrics()
	}
	if s.learning != nil {
		response["learning"] = s.learning.Metrics()
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFlushStatistics handles the flush_statistics tool invocation
func (s *Server) handleFlushStatistics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "no key-value store configured", nil)
	}
	force := getBoolDefault(arguments(request), "force", true)

	before := s.stats.NeedsFlush()
	response := map[string]interface{}{
		"needs_flush_before": before,
		"saved":              false,
	}

	if before || force {
		var errs []error
		if err := s.stats.Save(ctx, s.store); err != nil {
			errs = append(errs, err)
		}
		if s.profiler != nil {
			if err := s.profiler.SaveReport(ctx, s.store); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			s.logger.Warn("flush failed", "error", err)
			return nil, newMCPError(ErrorCodePersistenceError, "failed to save statistics", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["saved"] = true
		response["pattern_count"] = s.stats.Len()
	}

	response["needs_flush_after"] = s.stats.NeedsFlush()
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRecordExecution handles the record_execution tool invocation
func (s *Server) handleRecordExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := identityArg(args)
	if err != nil {
		return nil, err
	}
	if _, ok := args["execution_ms"].(float64); !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "execution_ms parameter is required", map[string]interface{}{
			"param":  "execution_ms",
			"reason": "missing or not a number",
		})
	}

	err = s.stats.Record(id,
		getFloatDefault(args, "execution_ms", 0),
		getFloatDefault(args, "compilation_ms", 0),
		getIntDefault(args, "matches_found", 0),
		int64(getIntDefault(args, "memory_bytes", 0)))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "failed to record execution", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	m, _ := s.stats.Metrics(id)
	response := map[string]interface{}{
		"metrics":     m,
		"needs_flush": s.stats.NeedsFlush(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleEstimateComplexity handles the estimate_complexity tool invocation
func (s *Server) handleEstimateComplexity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	pattern := getStringDefault(args, "pattern", "")
	if pattern == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "pattern parameter is required", map[string]interface{}{
			"param":  "pattern",
			"reason": "missing or empty",
		})
	}

	complexity := profiler.EstimateComplexity(pattern)
	response := map[string]interface{}{
		"complexity": complexity,
		"size":       len(pattern),
		"recorded":   false,
	}

	name := getStringDefault(args, "pattern_name", "")
	compileMs, timed := args["compile_time_ms"].(float64)
	if name != "" && timed {
		if s.profiler == nil {
			return nil, newMCPError(ErrorCodeUnavailable, "profiler is not enabled", nil)
		}
		if compileMs < 0 {
			return nil, newMCPError(ErrorCodeInvalidParams, "compile_time_ms must be non-negative", map[string]interface{}{
				"param": "compile_time_ms",
				"value": compileMs,
			})
		}
		s.profiler.RecordCompilation(name, time.Duration(compileMs*float64(time.Millisecond)), len(pattern), complexity)
		response["recorded"] = true
		if stats, ok := s.profiler.PatternStats(name); ok {
			response["stats"] = stats
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRefinePattern handles the refine_pattern tool invocation
func (s *Server) handleRefinePattern(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.learning == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "learning engine is not configured", nil)
	}
	args := arguments(request)

	pattern := getStringDefault(args, "pattern", "")
	if pattern == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "pattern parameter is required", map[string]interface{}{
			"param":  "pattern",
			"reason": "missing or empty",
		})
	}

	bag := types.NewInsightBag()
	if err := decodeArg(args, "insights", bag); err != nil {
		return nil, err
	}
	matchCount := getIntDefault(args, "match_count", 0)
	if matchCount < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "match_count must be non-negative", map[string]interface{}{
			"param": "match_count",
			"value": matchCount,
		})
	}
	bag.Matches = make([]types.Match, matchCount)

	ref, err := s.learning.ApplyChain(ctx, pattern, bag, getStringDefault(args, "language", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "refinement failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"refinement": ref,
		"changed":    ref.Changed(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRegexRecover handles the regex_recover tool invocation
func (s *Server) handleRegexRecover(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.recovery == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "recovery engine is not configured", nil)
	}
	args := arguments(request)

	source, ok := args["source"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "source parameter is required", map[string]interface{}{
			"param":  "source",
			"reason": "missing",
		})
	}
	regex := getStringDefault(args, "regex", "")
	if regex == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "regex parameter is required", map[string]interface{}{
			"param":  "regex",
			"reason": "missing or empty",
		})
	}
	name := getStringDefault(args, "pattern_name", "regex_recover")

	res, found := s.recovery.Apply(ctx, recovery.StrategyRegexFallback, source, name, recovery.Params{RegexPattern: regex})
	if !found {
		return nil, newMCPError(ErrorCodeUnavailable, "regex fallback strategy is not registered", nil)
	}

	matches := make([]map[string]interface{}, 0, len(res.Matches))
	for _, m := range res.Matches {
		matches = append(matches, map[string]interface{}{
			"text":         m.Text,
			"start":        m.Start,
			"end":          m.End,
			"groups":       m.Groups,
			"named_groups": m.NamedGroups,
		})
	}

	response := map[string]interface{}{
		"success":       res.Success,
		"match_count":   len(matches),
		"matches":       matches,
		"recovery_time": res.RecoveryTime,
	}
	if res.Err != nil {
		response["error"] = res.Err.Error()
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

type fileArg struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

type patternArg struct {
	Language        string   `json:"language"`
	PatternType     string   `json:"pattern_type"`
	PatternID       string   `json:"pattern_id"`
	Query           string   `json:"query"`
	FallbackQueries []string `json:"fallback_queries"`
	Regex           string   `json:"regex"`
}

// handleRunPatterns handles the run_patterns tool invocation
func (s *Server) handleRunPatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.runner == nil {
		return nil, newMCPError(ErrorCodeUnavailable, "pattern runner is not configured", nil)
	}
	args := arguments(request)

	var fileArgs []fileArg
	if err := decodeArg(args, "files", &fileArgs); err != nil {
		return nil, err
	}
	var patternArgs []patternArg
	if err := decodeArg(args, "patterns", &patternArgs); err != nil {
		return nil, err
	}
	if len(fileArgs) == 0 || len(patternArgs) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "files and patterns are required", nil)
	}

	files := make([]pipeline.SourceFile, len(fileArgs))
	for i, f := range fileArgs {
		files[i] = pipeline.SourceFile{Path: f.Path, Language: f.Language, Content: f.Content}
	}

	patterns := make([]pipeline.Pattern, len(patternArgs))
	for i, p := range patternArgs {
		id := types.Identity{Language: p.Language, Type: types.PatternType(p.PatternType), ID: p.PatternID}
		if err := id.Validate(); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid pattern identity", map[string]interface{}{
				"index":  i,
				"reason": err.Error(),
			})
		}
		if p.Query == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, "pattern query is required", map[string]interface{}{
				"index":   i,
				"pattern": id.Key(),
			})
		}
		patterns[i] = pipeline.Pattern{
			Identity:        id,
			Query:           p.Query,
			FallbackQueries: p.FallbackQueries,
			RegexPattern:    p.Regex,
		}
	}

	config := s.runConfig
	stats, err := s.runner.Run(ctx, files, patterns, &config)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		return nil, newMCPError(ErrorCodeRunInProgress, "a pattern run is already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "pattern run failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"files_processed": stats.FilesProcessed,
		"executions":      stats.Executions,
		"matched":         stats.Matched,
		"recovered":       stats.Recovered,
		"failed":          stats.Failed,
		"matches_found":   stats.MatchesFound,
		"duration_ms":     stats.Duration.Milliseconds(),
		"needs_flush":     stats.NeedsFlush,
		"error_count":     len(stats.ErrorMessages),
	}
	if len(stats.ErrorMessages) > 0 {
		response["errors"] = stats.ErrorMessages[:min(MaxSurfacedErrors, len(stats.ErrorMessages))]
	}

	if getBoolDefault(args, "refine", false) {
		refinements, err := s.runner.Refine(ctx)
		if errors.Is(err, pipeline.ErrNoLearningEngine) {
			return nil, newMCPError(ErrorCodeUnavailable, "learning engine is not configured", nil)
		}
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "refinement failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		out := make([]map[string]interface{}, 0, len(refinements))
		for _, r := range refinements {
			out = append(out, map[string]interface{}{
				"language":     r.Identity.Language,
				"pattern_type": r.Identity.Type,
				"pattern_id":   r.Identity.ID,
				"refinement":   r.Refinement,
				"changed":      r.Changed(),
			})
		}
		response["refinements"] = out
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// identityArg reads language, pattern_type and pattern_id
func identityArg(args map[string]interface{}) (types.Identity, error) {
	var id types.Identity
	for _, p := range []struct {
		name string
		dest func(string)
	}{
		{"language", func(v string) { id.Language = v }},
		{"pattern_type", func(v string) { id.Type = types.PatternType(v) }},
		{"pattern_id", func(v string) { id.ID = v }},
	} {
		v, ok := args[p.name].(string)
		if !ok || v == "" {
			return id, newMCPError(ErrorCodeInvalidParams, p.name+" parameter is required", map[string]interface{}{
				"param":  p.name,
				"reason": "missing or empty",
			})
		}
		p.dest(v)
	}

	if err := id.Validate(); err != nil {
		return id, newMCPError(ErrorCodeInvalidParams, "invalid pattern identity", map[string]interface{}{
			"reason": err.Error(),
		})
	}
	return id, nil
}

// decodeArg re-encodes a structured argument into dest. A missing key
// leaves dest untouched.
func decodeArg(args map[string]interface{}, key string, dest interface{}) error {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err == nil {
		err = json.Unmarshal(data, dest)
	}
	if err != nil {
		return newMCPError(ErrorCodeInvalidParams, "invalid "+key+" parameter", map[string]interface{}{
			"param":  key,
			"reason": err.Error(),
		})
	}
	return nil
}

// arguments returns the call arguments, or an empty map for tools that take none
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
