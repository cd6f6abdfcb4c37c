package learning

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/patternloop/internal/telemetry"
	"github.com/dshills/patternloop/pkg/types"
)

// Strategy names
const (
	StrategyNodePatternImprovement = "node_pattern_improvement"
	StrategyCaptureOptimization    = "capture_optimization"
	StrategyPredicateRefinement    = "predicate_refinement"
	StrategyPatternGeneralization  = "pattern_generalization"
)

// Confidence bounds every strategy clamps its output to
const (
	MinConfidence = 0.3
	MaxConfidence = 0.95
)

// ErrEmptyPattern is returned when there is no pattern text to refine
var ErrEmptyPattern = errors.New("pattern is empty")

// Proposal is a rewritten pattern suggested by one strategy
type Proposal struct {
	Strategy   string  `json:"strategy"`
	Pattern    string  `json:"pattern"`
	Confidence float64 `json:"confidence"`
}

// Strategy proposes an improved pattern from accumulated insights.
// It returns nil when it has nothing to suggest.
type Strategy interface {
	Name() string
	Improve(ctx context.Context, pattern string, bag *types.InsightBag, language string) (*Proposal, error)
}

// Metrics are the counters kept for one strategy
type Metrics struct {
	Name             string  `json:"name"`
	Attempts         int     `json:"attempts"`
	Improvements     int     `json:"improvements"`
	ImprovementRate  float64 `json:"improvement_rate"`
	ConfidenceChange float64 `json:"confidence_change"`
}

type tracked struct {
	strategy Strategy

	mu      sync.Mutex
	metrics Metrics
}

func (t *tracked) run(ctx context.Context, e *Engine, pattern string, bag *types.InsightBag, language string) *Proposal {
	name := t.strategy.Name()
	if ctx.Err() != nil {
		return nil
	}

	start := time.Now()
	p, err := t.strategy.Improve(ctx, pattern, bag, language)
	elapsed := time.Since(start)

	// Cancelled runs are not counted
	if ctx.Err() != nil {
		return nil
	}

	if err != nil {
		e.logger.Warn("learning strategy failed",
			"strategy", name,
			"language", language,
			"error", err)
		p = nil
	}

	t.mu.Lock()
	t.metrics.Attempts++
	var delta float64
	if p != nil {
		p.Strategy = name
		delta = p.Confidence - bag.Confidence()
		t.metrics.Improvements++
		t.metrics.ConfidenceChange += delta
	}
	t.metrics.ImprovementRate = float64(t.metrics.Improvements) / float64(t.metrics.Attempts)
	t.mu.Unlock()

	e.telemetry.ObserveStrategy(telemetry.KindLearning, name, p != nil, elapsed)
	if p != nil {
		e.telemetry.ObserveConfidenceDelta(name, delta)
	}
	return p
}

func (t *tracked) snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metrics
	m.Name = t.strategy.Name()
	return m
}

// Engine runs learning strategies in registration order. Unlike recovery,
// strategies are not exclusive: callers pick between Apply, ApplyFirst and
// ApplyChain.
type Engine struct {
	strategies []*tracked
	logger     *slog.Logger
	telemetry  *telemetry.Collectors
	workers    int
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

// WithWorkers bounds ApplyAll concurrency
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
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

// DefaultStrategies returns node pattern improvement, capture optimization,
// predicate refinement and pattern generalization, in that order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		NodePatternImprovement{},
		CaptureOptimization{},
		PredicateRefinement{},
		PatternGeneralization{},
	}
}

// NewEngine creates an engine with the default strategies unless
// WithStrategies is given.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:  slog.Default(),
		workers: runtime.NumCPU(),
	}
	WithStrategies(DefaultStrategies()...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs every strategy against the original pattern and returns all
// proposals in strategy order.
func (e *Engine) Apply(ctx context.Context, pattern string, bag *types.InsightBag, language string) ([]Proposal, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	if bag == nil {
		bag = types.NewInsightBag()
	}

	var out []Proposal
	for _, t := range e.strategies {
		if p := t.run(ctx, e, pattern, bag, language); p != nil {
			out = append(out, *p)
		}
	}
	return out, ctx.Err()
}

// ApplyFirst returns the first proposal in strategy order, or nil.
// Strategies after the first success are not run.
func (e *Engine) ApplyFirst(ctx context.Context, pattern string, bag *types.InsightBag, language string) (*Proposal, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	if bag == nil {
		bag = types.NewInsightBag()
	}

	for _, t := range e.strategies {
		if p := t.run(ctx, e, pattern, bag, language); p != nil {
			return p, nil
		}
	}
	return nil, ctx.Err()
}

// Refinement is the outcome of chaining every strategy over one pattern
type Refinement struct {
	Original   string   `json:"original"`
	Pattern    string   `json:"pattern"`
	Confidence float64  `json:"confidence"`
	Applied    []string `json:"applied"`
}

// Changed reports whether any strategy rewrote the pattern
func (r Refinement) Changed() bool {
	return r.Pattern != r.Original
}

// ApplyChain feeds each proposal into the next strategy: the rewritten
// pattern and its confidence carry forward.
func (e *Engine) ApplyChain(ctx context.Context, pattern string, bag *types.InsightBag, language string) (Refinement, error) {
	if pattern == "" {
		return Refinement{}, ErrEmptyPattern
	}
	if bag == nil {
		bag = types.NewInsightBag()
	}

	ref := Refinement{Original: pattern, Pattern: pattern, Confidence: bag.Confidence()}
	current := *bag
	for _, t := range e.strategies {
		p := t.run(ctx, e, ref.Pattern, &current, language)
		if p == nil {
			continue
		}
		ref.Pattern = p.Pattern
		ref.Confidence = p.Confidence
		ref.Applied = append(ref.Applied, p.Strategy)
		current.PatternConfidence = p.Confidence
	}
	return ref, ctx.Err()
}

// Request is one pattern to refine in ApplyAll
type Request struct {
	Pattern  string
	Bag      *types.InsightBag
	Language string
}

// ApplyAll chains every strategy over many patterns concurrently. Results
// are returned in request order. The first error cancels the rest.
func (e *Engine) ApplyAll(ctx context.Context, requests []Request) ([]Refinement, error) {
	results := make([]Refinement, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, req := range requests {
		g.Go(func() error {
			ref, err := e.ApplyChain(gctx, req.Pattern, req.Bag, req.Language)
			if err != nil {
				return err
			}
			results[i] = ref
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Metrics returns a snapshot of every strategy's metrics, in order
func (e *Engine) Metrics() []Metrics {
	out := make([]Metrics, 0, len(e.strategies))
	for _, t := range e.strategies {
		out = append(out, t.snapshot())
	}
	return out
}

// clampConfidence bounds c to [MinConfidence, MaxConfidence]
func clampConfidence(c float64) float64 {
	return max(MinConfidence, min(MaxConfidence, c))
}
