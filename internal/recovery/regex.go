package recovery

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/patternloop/internal/regexpool"
	"github.com/dshills/patternloop/pkg/types"
)

// DefaultRegexCacheSize bounds the compiled regex cache
const DefaultRegexCacheSize = 256

// regexFlags makes ^/$ match at line boundaries and . match newlines
const regexFlags = "(?ms)"

// RegexFallback scans the whole source with a secondary textual regex.
// Cached entries are pooled so one pattern can serve concurrent callers.
type RegexFallback struct {
	cache *lru.Cache[string, *regexpool.Regex]
}

// NewRegexFallback creates the regex_fallback strategy with a compiled
// pattern cache of the given size.
func NewRegexFallback(cacheSize int) *RegexFallback {
	if cacheSize <= 0 {
		cacheSize = DefaultRegexCacheSize
	}
	cache, err := lru.New[string, *regexpool.Regex](cacheSize)
	if err != nil {
		// Only fails for non-positive sizes
		cache, _ = lru.New[string, *regexpool.Regex](DefaultRegexCacheSize)
	}
	return &RegexFallback{cache: cache}
}

// Name implements Strategy
func (s *RegexFallback) Name() string { return StrategyRegexFallback }

// Apply implements Strategy. Each match carries its full text, span, the
// positional groups and the named groups.
func (s *RegexFallback) Apply(ctx context.Context, source, patternName string, params Params) (Result, error) {
	if params.RegexPattern == "" {
		return Result{Err: ErrMissingParameters}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	re, err := s.compile(params.RegexPattern)
	if err != nil {
		return Result{Err: err}, nil
	}

	names := re.SubexpNames()
	var matches []types.Match
	for _, loc := range re.FindAllStringSubmatchIndex(source, -1) {
		m := types.Match{
			PatternName:  patternName,
			IsFallback:   true,
			FallbackType: FallbackTypeRegex,
			Start:        loc[0],
			End:          loc[1],
			Text:         source[loc[0]:loc[1]],
		}

		for g := 1; g*2+1 < len(loc); g++ {
			var text string
			if loc[g*2] >= 0 {
				text = source[loc[g*2]:loc[g*2+1]]
			}
			m.Groups = append(m.Groups, text)
			if g < len(names) && names[g] != "" {
				if m.NamedGroups == nil {
					m.NamedGroups = make(map[string]string)
				}
				m.NamedGroups[names[g]] = text
			}
		}
		matches = append(matches, m)
	}

	if len(matches) == 0 {
		return Result{Err: ErrRegexNoMatch}, nil
	}
	return Result{Success: true, Matches: matches, FallbackType: FallbackTypeRegex}, nil
}

func (s *RegexFallback) compile(pattern string) (*regexpool.Regex, error) {
	if re, ok := s.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexpool.Compile(regexFlags + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex fallback %q: %w", pattern, err)
	}
	s.cache.Add(pattern, re)
	return re, nil
}

// CacheLen returns the number of compiled patterns held
func (s *RegexFallback) CacheLen() int {
	return s.cache.Len()
}
