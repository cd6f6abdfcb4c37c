package recovery

import (
	"context"
	"strings"

	"github.com/dshills/patternloop/pkg/types"
)

// Sliding window bounds, in lines
const (
	InitialWindowLines = 5
	MaxWindowLines     = 20
)

// PartialMatch re-runs the structural query over sliding line windows when
// the whole source fails to match, for example because of an unrelated
// syntax error elsewhere in the file.
type PartialMatch struct{}

// NewPartialMatch creates the partial_match strategy
func NewPartialMatch() *PartialMatch {
	return &PartialMatch{}
}

// Name implements Strategy
func (s *PartialMatch) Name() string { return StrategyPartialMatch }

// Apply implements Strategy.
//
// The window starts at InitialWindowLines and doubles while it does not
// exceed min(MaxWindowLines, line count). Windows slide with a stride of half
// their size. The first size that yields any match wins and every window
// position at that size contributes. Capture offsets are shifted by the byte
// length of the lines preceding the window so they index into source.
func (s *PartialMatch) Apply(ctx context.Context, source, patternName string, params Params) (Result, error) {
	if params.Executor == nil || params.Query == "" {
		return Result{Err: ErrMissingParameters}, nil
	}

	lines := strings.Split(source, "\n")

	// lineOffsets[i] is the byte offset of line i in source
	lineOffsets := make([]int, len(lines)+1)
	for i, line := range lines {
		lineOffsets[i+1] = lineOffsets[i] + len(line) + 1
	}

	maxWindow := min(MaxWindowLines, len(lines))

	var found []types.Match
	for window := InitialWindowLines; window <= maxWindow && len(found) == 0; window *= 2 {
		stride := window / 2
		for start := 0; start+window <= len(lines); start += stride {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}

			slice := strings.Join(lines[start:start+window], "\n")
			matches, err := params.Executor.Execute(ctx, slice, params.Query)
			if err != nil {
				if ctx.Err() != nil {
					return Result{}, ctx.Err()
				}
				continue
			}
			if len(matches) == 0 {
				continue
			}

			for i := range matches {
				matches[i].PartialMatch = true
				matches[i].IsFallback = true
				matches[i].FallbackType = FallbackTypePartial
				matches[i].WindowStartLine = start
				matches[i].WindowEndLine = start + window
				if matches[i].PatternName == "" {
					matches[i].PatternName = patternName
				}
				matches[i].ShiftBytes(lineOffsets[start])
			}
			found = append(found, matches...)
		}
	}

	if len(found) == 0 {
		return Result{Err: ErrNoPartialMatch}, nil
	}

	return Result{
		Success:      true,
		Matches:      found,
		PartialMatch: true,
		FallbackType: FallbackTypePartial,
	}, nil
}
