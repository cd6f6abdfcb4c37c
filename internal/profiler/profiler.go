package profiler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/patternloop/internal/storage"
)

// Report list sizes
const (
	ReportTopN  = 20
	DefaultTopN = 10
)

// Profiler records pattern compilation cost. It is safe for concurrent use.
type Profiler struct {
	mu        sync.Mutex
	profiles  map[string]*profile
	order     []string
	totalTime time.Duration

	samplingRate float64
	enabled      bool

	sample func() float64
	now    func() time.Time
	logger *slog.Logger
}

type profile struct {
	times      []time.Duration
	size       int
	complexity int
}

// Option configures a Profiler
type Option func(*Profiler)

// WithLogger sets the profiler logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSampler replaces the uniform [0,1) source used for sampling
func WithSampler(sample func() float64) Option {
	return func(p *Profiler) {
		if sample != nil {
			p.sample = sample
		}
	}
}

// WithClock replaces time.Now for report timestamps and Track
func WithClock(now func() time.Time) Option {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates an enabled profiler that records every compilation
func New(opts ...Option) *Profiler {
	p := &Profiler{
		profiles:     make(map[string]*profile),
		samplingRate: 1.0,
		enabled:      true,
		sample:       rand.Float64,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configure sets the sampling rate, clamped to [0, 1], and toggles recording
func (p *Profiler) Configure(samplingRate float64, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samplingRate = max(0, min(1, samplingRate))
	p.enabled = enabled
}

// RecordCompilation adds one compilation observation. Size and complexity
// replace the stored values only when positive.
func (p *Profiler) RecordCompilation(name string, d time.Duration, size, complexity int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || p.sample() > p.samplingRate {
		return
	}

	pr, ok := p.profiles[name]
	if !ok {
		pr = &profile{}
		p.profiles[name] = pr
		p.order = append(p.order, name)
	}

	pr.times = append(pr.times, d)
	p.totalTime += d

	if size > 0 {
		pr.size = size
	}
	if complexity > 0 {
		pr.complexity = complexity
	}
}

// Track starts timing a compilation and returns the function that records it:
//
//	defer prof.Track(name, len(src), profiler.EstimateComplexity(src))()
func (p *Profiler) Track(name string, size, complexity int) func() {
	start := p.now()
	return func() {
		p.RecordCompilation(name, p.now().Sub(start), size, complexity)
	}
}

// Stats summarizes one pattern's compilations
type Stats struct {
	Count      int           `json:"count"`
	AvgTime    time.Duration `json:"avg_time"`
	MaxTime    time.Duration `json:"max_time"`
	MinTime    time.Duration `json:"min_time"`
	MedianTime time.Duration `json:"median_time"`
	StdevTime  time.Duration `json:"stdev_time"`
	TotalTime  time.Duration `json:"total_time"`
	Size       int           `json:"pattern_size"`
	Complexity int           `json:"complexity_score"`
}

// PatternStats returns the stats for name, or false if it was never recorded
func (p *Profiler) PatternStats(name string) (Stats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pr, ok := p.profiles[name]
	if !ok || len(pr.times) == 0 {
		return Stats{}, false
	}
	return pr.stats(), true
}

func (pr *profile) stats() Stats {
	n := len(pr.times)
	sorted := append([]time.Duration(nil), pr.times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	mean := float64(total) / float64(n)

	var median time.Duration
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var stdev float64
	if n > 1 {
		var sq float64
		for _, d := range sorted {
			diff := float64(d) - mean
			sq += diff * diff
		}
		stdev = math.Sqrt(sq / float64(n-1))
	}

	return Stats{
		Count:      n,
		AvgTime:    time.Duration(mean),
		MaxTime:    sorted[n-1],
		MinTime:    sorted[0],
		MedianTime: median,
		StdevTime:  time.Duration(stdev),
		TotalTime:  total,
		Size:       pr.size,
		Complexity: pr.complexity,
	}
}

// NamedDuration pairs a pattern name with its mean compilation time
type NamedDuration struct {
	Name    string        `json:"pattern_name"`
	AvgTime time.Duration `json:"avg_time"`
}

// NamedCount pairs a pattern name with its compilation count
type NamedCount struct {
	Name  string `json:"pattern_name"`
	Count int    `json:"count"`
}

// Slowest returns up to n patterns by mean compilation time, slowest first
func (p *Profiler) Slowest(n int) []NamedDuration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slowestLocked(n)
}

func (p *Profiler) slowestLocked(n int) []NamedDuration {
	out := make([]NamedDuration, 0, len(p.order))
	for _, name := range p.order {
		pr := p.profiles[name]
		var total time.Duration
		for _, d := range pr.times {
			total += d
		}
		out = append(out, NamedDuration{Name: name, AvgTime: total / time.Duration(len(pr.times))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgTime > out[j].AvgTime })
	return limit(out, n)
}

// MostCompiled returns up to n patterns by compilation count, highest first
func (p *Profiler) MostCompiled(n int) []NamedCount {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mostCompiledLocked(n)
}

func (p *Profiler) mostCompiledLocked(n int) []NamedCount {
	out := make([]NamedCount, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, NamedCount{Name: name, Count: len(p.profiles[name].times)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return limit(out, n)
}

// Report is the full profiling snapshot
type Report struct {
	ReportID             string           `json:"report_id"`
	Timestamp            time.Time        `json:"timestamp"`
	TotalCompilationTime time.Duration    `json:"total_compilation_time"`
	TotalPatterns        int              `json:"total_patterns"`
	TotalCompilations    int              `json:"total_compilations"`
	Slowest              []NamedDuration  `json:"slowest_patterns"`
	MostCompiled         []NamedCount     `json:"most_compiled"`
	Details              map[string]Stats `json:"pattern_details,omitempty"`
}

// Report builds a snapshot with the top ReportTopN slowest and most compiled
// patterns and per-pattern stats.
func (p *Profiler) Report() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	details := make(map[string]Stats, len(p.profiles))
	compilations := 0
	for name, pr := range p.profiles {
		details[name] = pr.stats()
		compilations += len(pr.times)
	}

	return Report{
		ReportID:             uuid.NewString(),
		Timestamp:            p.now(),
		TotalCompilationTime: p.totalTime,
		TotalPatterns:        len(p.profiles),
		TotalCompilations:    compilations,
		Slowest:              p.slowestLocked(ReportTopN),
		MostCompiled:         p.mostCompiledLocked(ReportTopN),
		Details:              details,
	}
}

// SaveReport stores the current report under storage.ProfilerReportKey
func (p *Profiler) SaveReport(ctx context.Context, store storage.KVStore) error {
	report := p.Report()
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode profiler report: %w", err)
	}
	if err := store.Set(ctx, storage.ProfilerReportKey, data); err != nil {
		return fmt.Errorf("failed to save profiler report: %w", err)
	}
	p.logger.Info("saved pattern profiling report",
		"report_id", report.ReportID,
		"patterns", report.TotalPatterns)
	return nil
}

// Reset drops all profiling data. Configuration is kept.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles = make(map[string]*profile)
	p.order = nil
	p.totalTime = 0
}

func limit[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}
