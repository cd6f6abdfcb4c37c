package pipeline

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/patternloop/internal/regexpool"
	"github.com/dshills/patternloop/pkg/types"
)

// DefaultRegexCacheSize bounds the compiled query cache of a RegexExecutor
const DefaultRegexCacheSize = 256

// wholeMatchCapture names the capture used when a query has no named groups
const wholeMatchCapture = "match"

// RegexExecutor runs queries as multi-line regular expressions. Each named
// group becomes a capture; a query without named groups captures the whole
// match. Regex captures carry no node type.
//
// It stands in for a syntax-tree executor when none is attached, so the
// runner can be driven end to end from textual catalogs.
type RegexExecutor struct {
	cache *lru.Cache[string, *regexpool.Regex]
}

// NewRegexExecutor creates an executor with a compiled query cache of the
// given size.
func NewRegexExecutor(cacheSize int) *RegexExecutor {
	if cacheSize <= 0 {
		cacheSize = DefaultRegexCacheSize
	}
	cache, err := lru.New[string, *regexpool.Regex](cacheSize)
	if err != nil {
		cache, _ = lru.New[string, *regexpool.Regex](DefaultRegexCacheSize)
	}
	return &RegexExecutor{cache: cache}
}

// Compile implements Compiler. Compiled queries are cached, so only the
// first call per query does real work.
func (e *RegexExecutor) Compile(ctx context.Context, language, query string) error {
	_, err := e.compile(query)
	return err
}

// Execute implements recovery.QueryExecutor
func (e *RegexExecutor) Execute(ctx context.Context, source, query string) ([]types.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	re, err := e.compile(query)
	if err != nil {
		return nil, err
	}

	names := re.SubexpNames()
	var out []types.Match
	for _, loc := range re.FindAllStringSubmatchIndex(source, -1) {
		m := types.Match{Captures: make(map[string][]types.Capture)}
		for g := 1; g < len(names) && g*2+1 < len(loc); g++ {
			if names[g] == "" || loc[g*2] < 0 {
				continue
			}
			m.Captures[names[g]] = append(m.Captures[names[g]], textCapture(source, names[g], loc[g*2], loc[g*2+1]))
		}
		if len(m.Captures) == 0 {
			m.Captures[wholeMatchCapture] = []types.Capture{textCapture(source, wholeMatchCapture, loc[0], loc[1])}
		}
		out = append(out, m)
	}
	return out, nil
}

func (e *RegexExecutor) compile(query string) (*regexpool.Regex, error) {
	if re, ok := e.cache.Get(query); ok {
		return re, nil
	}
	re, err := regexpool.Compile("(?m)" + query)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", query, err)
	}
	e.cache.Add(query, re)
	return re, nil
}

func textCapture(source, name string, start, end int) types.Capture {
	startLine := strings.Count(source[:start], "\n")
	return types.Capture{
		Name:      name,
		Text:      source[start:end],
		StartByte: start,
		EndByte:   end,
		StartLine: startLine,
		EndLine:   startLine + strings.Count(source[start:end], "\n"),
	}
}
