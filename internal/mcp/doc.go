// Package mcp implements the Model Context Protocol (MCP) server for patternloop.
//
// The server exposes the pattern feedback loop to MCP clients:
//   - analyze_patterns: Grouped statistics, most valuable patterns, bottlenecks and recommendations
//   - get_recommendations: Recommendations from the latest analysis, refreshed hourly
//   - cache_warming_candidates: Patterns worth precompiling at startup
//   - value_ranking: Patterns ordered by value score
//   - pattern_metrics: The metrics record for one pattern
//   - profiler_report: Compilation profile and bottlenecks
//   - strategy_metrics: Recovery and learning strategy counters
//   - flush_statistics: Persist statistics to the key-value store
//   - record_execution: Record one execution into the statistics manager
//   - estimate_complexity: Static complexity, optionally recorded as a compilation
//   - refine_pattern: Chain the learning strategies over one pattern
//   - regex_recover: Run the regex fallback strategy over source text
//   - run_patterns: Run a catalog over files through the pipeline runner
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. Stdout carries
// protocol messages only; logs go to stderr.
//
// # Tool: value_ranking
//
//	Request:
//	{
//	  "name": "value_ranking",
//	  "arguments": {
//	    "limit": 5,
//	    "language": "go"
//	  }
//	}
//
//	Response:
//	{
//	  "total": 12,
//	  "patterns": [
//	    {
//	      "pattern_id": "function_definitions",
//	      "language": "go",
//	      "type": "code_structure",
//	      "value_score": 47.6,
//	      "hit_ratio": 1,
//	      "avg_execution_time": 1.1,
//	      "executions": 240,
//	      "matches": 240
//	    }
//	  ]
//	}
//
// # Tool: pattern_metrics
//
//	Request:
//	{
//	  "name": "pattern_metrics",
//	  "arguments": {
//	    "language": "python",
//	    "pattern_type": "error_handling",
//	    "pattern_id": "bare_except"
//	  }
//	}
//
// The response is the full metrics record including the bounded execution
// history.
//
// # Tool: flush_statistics
//
// Saves only when statistics are stale unless force is true (the default):
//
//	Response:
//	{
//	  "needs_flush_before": true,
//	  "saved": true,
//	  "pattern_count": 40,
//	  "needs_flush_after": false
//	}
//
// # Tool: run_patterns
//
// At most the first five per-run errors are returned; error_count is the
// number the run kept (pipeline.max_error_messages).
//
//	Request:
//	{
//	  "name": "run_patterns",
//	  "arguments": {
//	    "files": [{"path": "main.go", "language": "go", "content": "func main() {}"}],
//	    "patterns": [{
//	      "language": "go",
//	      "pattern_type": "code_structure",
//	      "pattern_id": "functions",
//	      "query": "^func (?P<name>\\w+)",
//	      "regex": "func\\s"
//	    }],
//	    "refine": true
//	  }
//	}
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "patternloop": {
//	      "command": "/usr/local/bin/patternloop",
//	      "env": {
//	        "PATTERNLOOP_DB_PATH": "/var/lib/patternloop/stats.db"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Handlers return *MCPError values:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error
//   - -32001: No metrics recorded for the pattern
//   - -32002: Backing component not configured
//   - -32003: Key-value store write failed
//   - -32004: Another run_patterns call is in progress
package mcp
