package statistics

import (
	"sync"
	"time"

	"github.com/dshills/patternloop/pkg/types"
)

// HistoryLimit caps every per-pattern history sequence
const HistoryLimit = 100

// Metrics is a point-in-time copy of one pattern's record.
// Derived fields are computed from the counters when the copy is taken.
type Metrics struct {
	PatternID   string            `json:"pattern_id"`
	PatternType types.PatternType `json:"pattern_type"`
	Language    string            `json:"language"`

	// Execution metrics
	Executions             int64   `json:"executions"`
	Matches                int64   `json:"matches"`
	TotalExecutionTimeMs   float64 `json:"total_execution_time_ms"`
	TotalCompilationTimeMs float64 `json:"total_compilation_time_ms"`
	EstimatedMemoryBytes   int64   `json:"estimated_memory_bytes"`

	// Derived metrics
	HitRatio           float64 `json:"hit_ratio"`
	AvgExecutionTimeMs float64 `json:"avg_execution_time_ms"`
	ValueScore         float64 `json:"value_score"`

	// History, oldest first
	ExecutionTimes []float64 `json:"execution_times"`
	MatchCounts    []int     `json:"match_counts"`
	Timestamps     []float64 `json:"timestamps"` // Unix seconds
}

// Identity returns the pattern identity of the metrics
func (m Metrics) Identity() types.Identity {
	return types.Identity{Language: m.Language, Type: m.PatternType, ID: m.PatternID}
}

// HitRatio returns matches / max(1, executions)
func HitRatio(matches, executions int64) float64 {
	return float64(matches) / float64(max(1, executions))
}

// AvgExecutionTime returns totalMs / max(1, executions)
func AvgExecutionTime(totalMs float64, executions int64) float64 {
	return totalMs / float64(max(1, executions))
}

// ValueScore returns (hitRatio * 100) / (avgExecutionTimeMs + 1).
// Higher is better: frequent matches at low cost.
func ValueScore(hitRatio, avgExecutionTimeMs float64) float64 {
	return (hitRatio * 100) / (avgExecutionTimeMs + 1)
}

// record is the mutable counter bundle for one identity
type record struct {
	mu sync.Mutex
	id types.Identity

	executions        int64
	matches           int64
	totalExecutionMs  float64
	totalCompileMs    float64
	estimatedMemBytes int64

	executionTimes []float64
	matchCounts    []int
	timestamps     []float64
}

func newRecord(id types.Identity) *record {
	return &record{id: id}
}

// update applies one execution. Caller must hold r.mu.
func (r *record) update(executionMs, compilationMs float64, matchesFound int, memoryBytes int64, now time.Time) {
	r.executions++
	r.matches += int64(matchesFound)
	r.totalExecutionMs += executionMs
	r.totalCompileMs += compilationMs
	r.estimatedMemBytes = max(r.estimatedMemBytes, memoryBytes)

	r.executionTimes = appendBounded(r.executionTimes, executionMs)
	r.matchCounts = appendBounded(r.matchCounts, matchesFound)
	r.timestamps = appendBounded(r.timestamps, float64(now.UnixNano())/1e9)
}

// snapshot copies the record. Caller must hold r.mu.
func (r *record) snapshot() Metrics {
	hit := HitRatio(r.matches, r.executions)
	avg := AvgExecutionTime(r.totalExecutionMs, r.executions)

	return Metrics{
		PatternID:              r.id.ID,
		PatternType:            r.id.Type,
		Language:               r.id.Language,
		Executions:             r.executions,
		Matches:                r.matches,
		TotalExecutionTimeMs:   r.totalExecutionMs,
		TotalCompilationTimeMs: r.totalCompileMs,
		EstimatedMemoryBytes:   r.estimatedMemBytes,
		HitRatio:               hit,
		AvgExecutionTimeMs:     avg,
		ValueScore:             ValueScore(hit, avg),
		ExecutionTimes:         append([]float64(nil), r.executionTimes...),
		MatchCounts:            append([]int(nil), r.matchCounts...),
		Timestamps:             append([]float64(nil), r.timestamps...),
	}
}

// restore rebuilds a record from persisted metrics. Stored derived fields
// are ignored and recomputed on the next snapshot.
func restore(m Metrics) *record {
	r := newRecord(m.Identity())
	r.executions = m.Executions
	r.matches = m.Matches
	r.totalExecutionMs = m.TotalExecutionTimeMs
	r.totalCompileMs = m.TotalCompilationTimeMs
	r.estimatedMemBytes = m.EstimatedMemoryBytes
	r.executionTimes = tail(m.ExecutionTimes)
	r.matchCounts = tail(m.MatchCounts)
	r.timestamps = tail(m.Timestamps)
	return r
}

// appendBounded appends v and drops the oldest entries beyond HistoryLimit
func appendBounded[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > HistoryLimit {
		// Copy so the backing array does not grow without bound
		trimmed := make([]T, HistoryLimit, HistoryLimit+1)
		copy(trimmed, s[len(s)-HistoryLimit:])
		s = trimmed
	}
	return s
}

func tail[T any](s []T) []T {
	if len(s) > HistoryLimit {
		s = s[len(s)-HistoryLimit:]
	}
	return append([]T(nil), s...)
}
