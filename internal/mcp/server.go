package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/patternloop/internal/learning"
	"github.com/dshills/patternloop/internal/pipeline"
	"github.com/dshills/patternloop/internal/profiler"
	"github.com/dshills/patternloop/internal/recovery"
	"github.com/dshills/patternloop/internal/statistics"
	"github.com/dshills/patternloop/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "patternloop"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// ErrMissingStatistics is returned by NewServer without a statistics manager
var ErrMissingStatistics = errors.New("statistics manager is required")

// Deps are the components exposed through the server. Only Stats is
// required; tools backed by a missing component report it as unavailable.
type Deps struct {
	Stats    *statistics.Manager
	Profiler *profiler.Profiler
	Recovery *recovery.Engine
	Learning *learning.Engine
	Store    storage.KVStore
	Logger   *slog.Logger

	// Runner backs run_patterns; RunConfig is passed to every run
	Runner    *pipeline.Runner
	RunConfig pipeline.Config
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	stats    *statistics.Manager
	profiler *profiler.Profiler
	recovery *recovery.Engine
	learning *learning.Engine
	store    storage.KVStore
	logger   *slog.Logger

	runner    *pipeline.Runner
	runConfig pipeline.Config
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Stats == nil {
		return nil, ErrMissingStatistics
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		stats:    deps.Stats,
		profiler: deps.Profiler,
		recovery: deps.Recovery,
		learning: deps.Learning,
		store:    deps.Store,
		logger:   logger,

		runner:    deps.Runner,
		runConfig: deps.RunConfig,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(analyzePatternsTool(), s.handleAnalyzePatterns)
	s.mcp.AddTool(getRecommendationsTool(), s.handleGetRecommendations)
	s.mcp.AddTool(cacheWarmingCandidatesTool(), s.handleCacheWarmingCandidates)
	s.mcp.AddTool(valueRankingTool(), s.handleValueRanking)
	s.mcp.AddTool(patternMetricsTool(), s.handlePatternMetrics)
	s.mcp.AddTool(profilerReportTool(), s.handleProfilerReport)
	s.mcp.AddTool(strategyMetricsTool(), s.handleStrategyMetrics)
	s.mcp.AddTool(flushStatisticsTool(), s.handleFlushStatistics)
	s.mcp.AddTool(recordExecutionTool(), s.handleRecordExecution)
	s.mcp.AddTool(estimateComplexityTool(), s.handleEstimateComplexity)
	s.mcp.AddTool(refinePatternTool(), s.handleRefinePattern)
	s.mcp.AddTool(regexRecoverTool(), s.handleRegexRecover)
	s.mcp.AddTool(runPatternsTool(), s.handleRunPatterns)
	return nil
}
