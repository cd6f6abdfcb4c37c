package learning

import (
	"context"
	"strings"

	"github.com/coregx/coregex"

	"github.com/dshills/patternloop/internal/regexpool"
	"github.com/dshills/patternloop/pkg/types"
)

const (
	generalizeMinMatches  = 5
	literalMinLength      = 3
	literalPenalty        = 0.02
	optionalChildPenalty  = 0.01
	wildcardLiteral       = `".*"`
	regexMetacharsInQuote = "^$*+?"
)

// parentChild lists node pairs whose child may be made optional
var parentChild = []struct{ parent, child string }{
	{"parent", "child"},
	{"class", "method"},
	{"function", "parameter"},
	{"if", "then"},
	{"for", "body"},
}

// childRes holds the node-reference regex for each child in parentChild
var childRes = func() map[string]*regexpool.Regex {
	out := make(map[string]*regexpool.Regex, len(parentChild))
	for _, pc := range parentChild {
		out[pc.child] = regexpool.MustCompile(`\(` + coregex.QuoteMeta(pc.child) + `[^)]*\)`)
	}
	return out
}()

// PatternGeneralization widens a pattern that has matched often enough:
// long string literals become wildcards and known child nodes become
// optional.
type PatternGeneralization struct{}

// Name implements Strategy
func (PatternGeneralization) Name() string { return StrategyPatternGeneralization }

// Improve implements Strategy
func (PatternGeneralization) Improve(ctx context.Context, pattern string, bag *types.InsightBag, language string) (*Proposal, error) {
	if bag == nil || len(bag.Matches) < generalizeMinMatches {
		return nil, nil
	}

	improved := pattern
	confidence := bag.Confidence()

	for _, groups := range quotedLiteralRe.FindAllStringSubmatch(pattern, -1) {
		literal := groups[1]
		// Literals that look like regexes belong to predicates
		if strings.ContainsAny(literal, regexMetacharsInQuote) || len(literal) <= literalMinLength {
			continue
		}
		quoted := `"` + literal + `"`
		if !strings.Contains(improved, quoted) {
			continue
		}
		improved = strings.Replace(improved, quoted, wildcardLiteral, 1)
		confidence -= literalPenalty
	}

	for _, pc := range parentChild {
		if !strings.Contains(improved, "("+pc.parent) || !strings.Contains(improved, "("+pc.child) {
			continue
		}
		loc := childRes[pc.child].FindStringIndex(improved)
		if loc == nil || strings.HasPrefix(improved[loc[1]:], "?") {
			continue
		}
		improved = improved[:loc[1]] + "?" + improved[loc[1]:]
		confidence -= optionalChildPenalty
	}

	if improved == pattern {
		return nil, nil
	}
	return &Proposal{Pattern: improved, Confidence: clampConfidence(confidence)}, nil
}
