package recovery

import (
	"context"

	"github.com/dshills/patternloop/pkg/types"
)

// FallbackPatterns runs alternative structural queries for the same
// semantic pattern until one matches.
type FallbackPatterns struct{}

// NewFallbackPatterns creates the fallback_patterns strategy
func NewFallbackPatterns() *FallbackPatterns {
	return &FallbackPatterns{}
}

// Name implements Strategy
func (s *FallbackPatterns) Name() string { return StrategyFallbackPatterns }

// Apply implements Strategy. Matches are tagged with the index of the
// winning query. A query that errors is treated as a miss.
func (s *FallbackPatterns) Apply(ctx context.Context, source, patternName string, params Params) (Result, error) {
	if params.Executor == nil || len(params.FallbackQueries) == 0 {
		return Result{Err: ErrMissingParameters}, nil
	}

	for idx, query := range params.FallbackQueries {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		matches, err := params.Executor.Execute(ctx, source, query)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			continue
		}
		if len(matches) == 0 {
			continue
		}

		tagFallback(matches, patternName, FallbackTypePattern, idx)
		return Result{
			Success:       true,
			Matches:       matches,
			FallbackIndex: idx,
			FallbackType:  FallbackTypePattern,
		}, nil
	}

	return Result{Err: ErrNoFallbackMatched}, nil
}

func tagFallback(matches []types.Match, patternName, fallbackType string, idx int) {
	for i := range matches {
		matches[i].IsFallback = true
		matches[i].FallbackType = fallbackType
		matches[i].FallbackIndex = idx
		if matches[i].PatternName == "" {
			matches[i].PatternName = patternName
		}
	}
}
