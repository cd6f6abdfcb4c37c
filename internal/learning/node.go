package learning

import (
	"context"

	"github.com/dshills/patternloop/internal/regexpool"
	"github.com/dshills/patternloop/pkg/types"
)

// wildcardNodeRe finds "(_)" and "(.)" node references
var wildcardNodeRe = regexpool.MustCompile(`\([._]\)`)

const nodeImprovementBoost = 0.05

// NodePatternImprovement replaces one wildcard node reference with the most
// frequently observed node type.
type NodePatternImprovement struct{}

// Name implements Strategy
func (NodePatternImprovement) Name() string { return StrategyNodePatternImprovement }

// Improve implements Strategy
func (NodePatternImprovement) Improve(ctx context.Context, pattern string, bag *types.InsightBag, language string) (*Proposal, error) {
	if bag == nil || len(bag.NodeTypeFrequencies) == 0 {
		return nil, nil
	}

	loc := wildcardNodeRe.FindStringIndex(pattern)
	if loc == nil {
		return nil, nil
	}

	mostCommon := rankCounts(bag.NodeTypeFrequencies)[0].key
	improved := pattern[:loc[0]] + "(" + mostCommon + ")" + pattern[loc[1]:]

	return &Proposal{
		Pattern:    improved,
		Confidence: clampConfidence(bag.Confidence() + nodeImprovementBoost),
	}, nil
}
