package learning

import (
	"context"
	"strings"

	"github.com/dshills/patternloop/internal/regexpool"
	"github.com/dshills/patternloop/pkg/types"
)

var (
	predicateCaptureRe = regexpool.MustCompile(`#\w+\?\s+@(\w+)`)
	quotedLiteralRe    = regexpool.MustCompile(`"([^"]+)"`)
)

const (
	predicateMinOccurrences = 5
	predicateMaxSuccessRate = 0.3
	predicatePenalty        = 0.03
)

// PredicateRefinement relaxes or removes predicates that rarely succeed
type PredicateRefinement struct{}

// Name implements Strategy
func (PredicateRefinement) Name() string { return StrategyPredicateRefinement }

// Improve implements Strategy. A predicate qualifies when it was evaluated
// more than five times with a success rate below 30%. "#match?" literals
// lose their anchors; any other predicate is removed.
func (PredicateRefinement) Improve(ctx context.Context, pattern string, bag *types.InsightBag, language string) (*Proposal, error) {
	if bag == nil {
		return nil, nil
	}

	var poor []string
	for _, pred := range sortedKeys(bag.PredicateOutcomes) {
		outcome := bag.PredicateOutcomes[pred]
		if outcome.Total() > predicateMinOccurrences && outcome.SuccessRate() < predicateMaxSuccessRate {
			poor = append(poor, pred)
		}
	}
	if len(poor) == 0 {
		return nil, nil
	}

	improved := pattern
	confidence := bag.Confidence()
	for _, pred := range poor {
		if !predicateCaptureRe.MatchString(pred) || !strings.Contains(improved, pred) {
			continue
		}

		replacement := ""
		if strings.Contains(pred, "#match?") {
			groups := quotedLiteralRe.FindStringSubmatch(pred)
			if groups == nil {
				continue
			}
			relaxed := strings.NewReplacer("^", "", "$", "").Replace(groups[1])
			if relaxed == groups[1] {
				continue
			}
			replacement = strings.Replace(pred, groups[1], relaxed, 1)
		}

		improved = strings.Replace(improved, pred, replacement, 1)
		confidence -= predicatePenalty
	}

	if improved == pattern {
		return nil, nil
	}
	return &Proposal{Pattern: improved, Confidence: clampConfidence(confidence)}, nil
}
