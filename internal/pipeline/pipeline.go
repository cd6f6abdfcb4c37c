package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/patternloop/internal/learning"
	"github.com/dshills/patternloop/internal/profiler"
	"github.com/dshills/patternloop/internal/recovery"
	"github.com/dshills/patternloop/internal/statistics"
	"github.com/dshills/patternloop/internal/storage"
	"github.com/dshills/patternloop/pkg/types"
)

// Defaults
const (
	DefaultMaxErrorMessages = 100
)

var (
	// ErrRunInProgress is returned when Run is called while another run is active
	ErrRunInProgress = errors.New("pipeline run already in progress")
	// ErrNoLearningEngine is returned by Refine when the runner has no learning engine
	ErrNoLearningEngine = errors.New("no learning engine configured")
)

// SourceFile is one unit of source text to run patterns against
type SourceFile struct {
	Path     string
	Language string
	Content  string
}

// Pattern is one catalog entry: the primary structural query plus the
// recovery inputs used when it finds nothing.
type Pattern struct {
	Identity        types.Identity
	Query           string
	FallbackQueries []string
	RegexPattern    string
}

// Compiler is implemented by executors that compile queries separately from
// running them. Compile time is fed to the profiler.
type Compiler interface {
	Compile(ctx context.Context, language, query string) error
}

// Config contains per-run configuration
type Config struct {
	Workers          int // Concurrent files (default: runtime.NumCPU())
	MaxErrorMessages int // Errors kept in Statistics (default: 100)
}

// Statistics summarizes one run
type Statistics struct {
	FilesProcessed int
	Executions     int
	Matched        int // Primary query found something
	Recovered      int // Primary missed, a recovery strategy succeeded
	Failed         int // Primary and recovery both came up empty
	MatchesFound   int
	Duration       time.Duration
	ErrorMessages  []string
	NeedsFlush     bool
}

// PatternRefinement pairs a learning refinement with its pattern
type PatternRefinement struct {
	Identity types.Identity
	learning.Refinement
}

// Runner executes pattern catalogs and feeds the statistics, profiler,
// recovery and learning components.
type Runner struct {
	executor recovery.QueryExecutor
	stats    *statistics.Manager
	recovery *recovery.Engine
	profiler *profiler.Profiler
	learning *learning.Engine
	store    storage.KVStore
	logger   *slog.Logger

	lock RunLock

	mu      sync.Mutex
	bags    map[string]*types.InsightBag
	queries map[string]Pattern
	order   []string
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the runner logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProfiler records query compilation into p
func WithProfiler(p *profiler.Profiler) Option {
	return func(r *Runner) {
		r.profiler = p
	}
}

// WithLearning enables Refine
func WithLearning(e *learning.Engine) Option {
	return func(r *Runner) {
		r.learning = e
	}
}

// WithStore saves statistics after a run when the manager reports them stale
func WithStore(s storage.KVStore) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// New creates a Runner
func New(executor recovery.QueryExecutor, stats *statistics.Manager, rec *recovery.Engine, opts ...Option) *Runner {
	r := &Runner{
		executor: executor,
		stats:    stats,
		recovery: rec,
		logger:   slog.Default(),
		bags:     make(map[string]*types.InsightBag),
		queries:  make(map[string]Pattern),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Running reports whether a run is in progress
func (r *Runner) Running() bool {
	return r.lock.Held()
}

type counters struct {
	files     atomic.Int32
	executed  atomic.Int32
	matched   atomic.Int32
	recovered atomic.Int32
	failed    atomic.Int32
	matches   atomic.Int32
}

// Run executes every pattern whose language matches the file against every
// file. Per-file errors are collected into Statistics.ErrorMessages.
func (r *Runner) Run(ctx context.Context, files []SourceFile, patterns []Pattern, config *Config) (*Statistics, error) {
	if !r.lock.TryAcquire() {
		return nil, ErrRunInProgress
	}
	defer r.lock.Release()

	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxErrors := config.MaxErrorMessages
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrorMessages
	}

	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	byLanguage := make(map[string][]Pattern)
	for _, p := range patterns {
		if err := p.Identity.Validate(); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p.Identity.Key(), err)
		}
		byLanguage[p.Identity.Language] = append(byLanguage[p.Identity.Language], p)
		r.remember(p)
	}

	semaphore := make(chan struct{}, workers)
	var c counters
	var mu sync.Mutex // Protect stats.ErrorMessages

	g, gctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			errs := r.processFile(gctx, file, byLanguage[file.Language], &c)
			if len(errs) > 0 {
				mu.Lock()
				for _, err := range errs {
					if len(stats.ErrorMessages) < maxErrors {
						stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", file.Path, err))
					}
				}
				mu.Unlock()
			}
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline run interrupted: %w", err)
	}

	stats.FilesProcessed = int(c.files.Load())
	stats.Executions = int(c.executed.Load())
	stats.Matched = int(c.matched.Load())
	stats.Recovered = int(c.recovered.Load())
	stats.Failed = int(c.failed.Load())
	stats.MatchesFound = int(c.matches.Load())
	stats.NeedsFlush = r.stats.NeedsFlush()
	stats.Duration = time.Since(startTime)

	r.logger.Info("pipeline run complete",
		"files", stats.FilesProcessed,
		"executions", stats.Executions,
		"matched", stats.Matched,
		"recovered", stats.Recovered,
		"failed", stats.Failed,
		"duration", stats.Duration)

	if stats.NeedsFlush && r.store != nil {
		if err := r.stats.Save(ctx, r.store); err != nil {
			r.logger.Warn("failed to save statistics", "error", err)
		} else {
			stats.NeedsFlush = false
		}
	}

	return stats, nil
}

// processFile runs the file's patterns in order and returns non-fatal errors
func (r *Runner) processFile(ctx context.Context, file SourceFile, patterns []Pattern, c *counters) []error {
	var errs []error
	for _, p := range patterns {
		if ctx.Err() != nil {
			return errs
		}
		if err := r.execute(ctx, file, p, c); err != nil {
			errs = append(errs, err)
		}
	}
	c.files.Add(1)
	return errs
}

// execute runs one pattern against one file
func (r *Runner) execute(ctx context.Context, file SourceFile, p Pattern, c *counters) error {
	key := p.Identity.Key()

	compilationMs, err := r.compile(ctx, file.Language, p)
	if err != nil {
		return fmt.Errorf("%s: compile failed: %w", key, err)
	}

	start := time.Now()
	matches, execErr := r.executor.Execute(ctx, file.Content, p.Query)
	executionMs := float64(time.Since(start).Microseconds()) / 1000.0
	if ctx.Err() != nil {
		return nil
	}
	c.executed.Add(1)

	var result error
	if execErr != nil {
		result = fmt.Errorf("%s: query failed: %w", key, execErr)
		matches = nil
	}

	if err := r.stats.Record(p.Identity, executionMs, compilationMs, len(matches), estimateMemory(matches)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	if len(matches) > 0 {
		c.matched.Add(1)
	} else {
		res := r.recovery.Recover(ctx, file.Content, key, recovery.Params{
			Executor:        r.executor,
			FallbackQueries: p.FallbackQueries,
			Query:           p.Query,
			RegexPattern:    p.RegexPattern,
		})
		if !res.Success {
			if ctx.Err() == nil {
				c.failed.Add(1)
			}
			return result
		}
		c.recovered.Add(1)
		matches = res.Matches
	}

	c.matches.Add(int32(len(matches)))
	r.observe(key, matches)
	return result
}

// compile times the optional compilation step and reports it to the profiler
func (r *Runner) compile(ctx context.Context, language string, p Pattern) (float64, error) {
	compiler, ok := r.executor.(Compiler)
	if !ok {
		return 0, nil
	}

	start := time.Now()
	err := compiler.Compile(ctx, language, p.Query)
	elapsed := time.Since(start)
	if err != nil {
		return 0, err
	}

	if r.profiler != nil {
		r.profiler.RecordCompilation(p.Identity.Key(), elapsed, len(p.Query), profiler.EstimateComplexity(p.Query))
	}
	return float64(elapsed.Microseconds()) / 1000.0, nil
}

func (r *Runner) remember(p Pattern) {
	key := p.Identity.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queries[key]; !ok {
		r.order = append(r.order, key)
		r.bags[key] = types.NewInsightBag()
	}
	r.queries[key] = p
}

func (r *Runner) observe(key string, matches []types.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bag := r.bags[key]
	for _, m := range matches {
		bag.Observe(m)
	}
}

// Insights returns a copy of the insight bag accumulated for id
func (r *Runner) Insights(id types.Identity) (*types.InsightBag, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bag, ok := r.bags[id.Key()]
	if !ok {
		return nil, false
	}
	return cloneBag(bag), true
}

// Refine chains the learning strategies over every pattern seen so far,
// in first-seen order. Only patterns with at least one observed match are
// submitted.
func (r *Runner) Refine(ctx context.Context) ([]PatternRefinement, error) {
	if r.learning == nil {
		return nil, ErrNoLearningEngine
	}

	r.mu.Lock()
	ids := make([]types.Identity, 0, len(r.order))
	requests := make([]learning.Request, 0, len(r.order))
	for _, key := range r.order {
		bag := r.bags[key]
		if len(bag.Matches) == 0 {
			continue
		}
		p := r.queries[key]
		ids = append(ids, p.Identity)
		requests = append(requests, learning.Request{
			Pattern:  p.Query,
			Bag:      cloneBag(bag),
			Language: p.Identity.Language,
		})
	}
	r.mu.Unlock()

	refinements, err := r.learning.ApplyAll(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("failed to refine patterns: %w", err)
	}

	out := make([]PatternRefinement, len(refinements))
	for i, ref := range refinements {
		out[i] = PatternRefinement{Identity: ids[i], Refinement: ref}
	}
	return out, nil
}

// ObservePredicate records a predicate evaluation reported by the executor
// for a pattern already seen by Run.
func (r *Runner) ObservePredicate(id types.Identity, predicate string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bag, found := r.bags[id.Key()]; found {
		bag.ObservePredicate(predicate, ok)
	}
}

func cloneBag(b *types.InsightBag) *types.InsightBag {
	out := types.NewInsightBag()
	maps.Copy(out.NodeTypeFrequencies, b.NodeTypeFrequencies)
	maps.Copy(out.CaptureFrequencies, b.CaptureFrequencies)
	maps.Copy(out.StructureFrequencies, b.StructureFrequencies)
	maps.Copy(out.PredicateOutcomes, b.PredicateOutcomes)
	out.Matches = slices.Clone(b.Matches)
	out.PatternConfidence = b.PatternConfidence
	return out
}

// estimateMemory approximates the bytes held by a result set
func estimateMemory(matches []types.Match) int64 {
	var n int64
	for i := range matches {
		n += int64(len(matches[i].Text))
		for _, caps := range matches[i].Captures {
			for _, c := range caps {
				n += int64(len(c.Text))
			}
		}
	}
	return n
}
