package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dshills/patternloop/internal/telemetry"
	"github.com/dshills/patternloop/pkg/types"
)

// Strategy names
const (
	StrategyFallbackPatterns = "fallback_patterns"
	StrategyRegexFallback    = "regex_fallback"
	StrategyPartialMatch     = "partial_match"
)

// Fallback types set on recovered matches
const (
	FallbackTypePattern = "pattern"
	FallbackTypeRegex   = "regex"
	FallbackTypePartial = "partial"
)

var (
	// ErrMissingParameters is returned when a strategy lacks the inputs it needs
	ErrMissingParameters = errors.New("missing required parameters")
	// ErrNoMatch is returned when every strategy failed
	ErrNoMatch = errors.New("no recovery strategy matched")
	// ErrNoFallbackMatched is returned when no fallback query produced matches
	ErrNoFallbackMatched = errors.New("no fallback patterns matched")
	// ErrRegexNoMatch is returned when the regex fallback found nothing
	ErrRegexNoMatch = errors.New("regex pattern did not match")
	// ErrNoPartialMatch is returned when no window produced matches
	ErrNoPartialMatch = errors.New("no partial matches found")
)

// QueryExecutor runs a structural query against source text.
// Byte offsets in returned captures are relative to source.
type QueryExecutor interface {
	Execute(ctx context.Context, source, query string) ([]types.Match, error)
}

// QueryExecutorFunc adapts a function to QueryExecutor
type QueryExecutorFunc func(ctx context.Context, source, query string) ([]types.Match, error)

// Execute calls f
func (f QueryExecutorFunc) Execute(ctx context.Context, source, query string) ([]types.Match, error) {
	return f(ctx, source, query)
}

// Params carries the inputs strategies draw from. Each strategy uses a subset.
type Params struct {
	Executor        QueryExecutor
	FallbackQueries []string // fallback_patterns
	Query           string   // partial_match
	RegexPattern    string   // regex_fallback
}

// Result is the outcome of a recovery attempt
type Result struct {
	Success       bool
	Matches       []types.Match
	Strategy      string
	RecoveryTime  time.Duration
	FallbackIndex int // fallback_patterns only
	FallbackType  string
	PartialMatch  bool
	Err           error
}

// Strategy is one recovery technique. Apply returns a failed Result for an
// expected miss and a non-nil error only when the attempt itself broke.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, source, patternName string, params Params) (Result, error)
}

// Metrics are the counters kept for one strategy
type Metrics struct {
	Name            string        `json:"name"`
	Attempts        int           `json:"attempts"`
	Successes       int           `json:"successes"`
	SuccessRate     float64       `json:"success_rate"`
	AvgRecoveryTime time.Duration `json:"avg_recovery_time"`
}

// tracked wraps a strategy with its metrics
type tracked struct {
	strategy Strategy

	mu      sync.Mutex
	metrics Metrics
}

func (t *tracked) run(ctx context.Context, e *Engine, source, patternName string, params Params) Result {
	name := t.strategy.Name()
	start := time.Now()

	res, err := t.strategy.Apply(ctx, source, patternName, params)
	elapsed := time.Since(start)

	// A cancelled attempt leaves no trace on the metrics
	if ctxErr := ctx.Err(); ctxErr != nil && (err != nil || !res.Success) {
		return Result{Strategy: name, Err: ctxErr}
	}

	if err != nil {
		e.logger.Warn("recovery strategy failed",
			"strategy", name,
			"pattern", patternName,
			"error", err)
		res = Result{Err: err}
	}

	t.mu.Lock()
	t.metrics.Attempts++
	if res.Success {
		t.metrics.Successes++
		n := time.Duration(t.metrics.Successes)
		t.metrics.AvgRecoveryTime = (t.metrics.AvgRecoveryTime*(n-1) + elapsed) / n
	}
	t.metrics.SuccessRate = float64(t.metrics.Successes) / float64(t.metrics.Attempts)
	t.mu.Unlock()

	e.telemetry.ObserveStrategy(telemetry.KindRecovery, name, res.Success, elapsed)

	res.Strategy = name
	res.RecoveryTime = elapsed
	return res
}

func (t *tracked) snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metrics
	m.Name = t.strategy.Name()
	return m
}

// Engine runs recovery strategies in registration order
type Engine struct {
	strategies []*tracked
	logger     *slog.Logger
	telemetry  *telemetry.Collectors
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTelemetry attaches Prometheus collectors
func WithTelemetry(c *telemetry.Collectors) Option {
	return func(e *Engine) {
		e.telemetry = c
	}
}

// WithStrategies replaces the default strategy chain
func WithStrategies(strategies ...Strategy) Option {
	return func(e *Engine) {
		e.strategies = nil
		for _, s := range strategies {
			e.strategies = append(e.strategies, &tracked{strategy: s})
		}
	}
}

// DefaultStrategies returns the standard chain: fallback patterns, regex
// fallback, then partial match.
func DefaultStrategies() []Strategy {
	return []Strategy{
		NewFallbackPatterns(),
		NewRegexFallback(DefaultRegexCacheSize),
		NewPartialMatch(),
	}
}

// NewEngine creates an engine with the default strategy chain unless
// WithStrategies is given.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	WithStrategies(DefaultStrategies()...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recover tries each strategy in order and returns the first success.
// When all fail the result wraps ErrNoMatch; recovery never invents a match.
func (e *Engine) Recover(ctx context.Context, source, patternName string, params Params) Result {
	var last Result
	for _, t := range e.strategies {
		if err := ctx.Err(); err != nil {
			return Result{Err: err}
		}

		res := t.run(ctx, e, source, patternName, params)
		if res.Success {
			e.logger.Debug("pattern recovered",
				"pattern", patternName,
				"strategy", res.Strategy,
				"matches", len(res.Matches))
			return res
		}
		last = res
	}

	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}
	return Result{Strategy: last.Strategy, Err: ErrNoMatch}
}

// Apply runs one named strategy through the metrics envelope. The bool is
// false when no strategy has that name.
func (e *Engine) Apply(ctx context.Context, name, source, patternName string, params Params) (Result, bool) {
	for _, t := range e.strategies {
		if t.strategy.Name() == name {
			return t.run(ctx, e, source, patternName, params), true
		}
	}
	return Result{}, false
}

// Metrics returns a snapshot of every strategy's metrics, in order
func (e *Engine) Metrics() []Metrics {
	out := make([]Metrics, 0, len(e.strategies))
	for _, t := range e.strategies {
		out = append(out, t.snapshot())
	}
	return out
}

// Names returns the registered strategy names, in order
func (e *Engine) Names() []string {
	out := make([]string, 0, len(e.strategies))
	for _, t := range e.strategies {
		out = append(out, t.strategy.Name())
	}
	return out
}
