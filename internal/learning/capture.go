package learning

import (
	"context"
	"fmt"
	"strings"

	"github.com/coregx/coregex"

	"github.com/dshills/patternloop/pkg/types"
)

const (
	rareCaptureLimit     = 3
	commonStructureTopN  = 3
	commonStructureMin   = 5
	captureAdditionBoost = 0.05
)

// CaptureOptimization drops rarely used captures and captures frequently
// seen structures that are not captured yet.
type CaptureOptimization struct{}

// Name implements Strategy
func (CaptureOptimization) Name() string { return StrategyCaptureOptimization }

// Improve implements Strategy. It does nothing unless at least one capture
// was used fewer than three times.
func (CaptureOptimization) Improve(ctx context.Context, pattern string, bag *types.InsightBag, language string) (*Proposal, error) {
	if bag == nil {
		return nil, nil
	}

	var rare []string
	for _, name := range sortedKeys(bag.CaptureFrequencies) {
		if bag.CaptureFrequencies[name] < rareCaptureLimit {
			rare = append(rare, name)
		}
	}
	if len(rare) == 0 {
		return nil, nil
	}

	improved := pattern
	for _, name := range rare {
		re, err := coregex.Compile("@" + coregex.QuoteMeta(name) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("capture %q: %w", name, err)
		}
		// Keeps the node, drops only the annotation
		improved = re.ReplaceAllString(improved, "")
	}

	confidence := bag.Confidence()
	structures := rankCounts(bag.StructureFrequencies)
	for _, s := range structures[:min(commonStructureTopN, len(structures))] {
		if s.count < commonStructureMin {
			continue
		}
		captureName, nodeType, ok := strings.Cut(s.key, ":")
		if !ok || captureName == "" || nodeType == "" {
			continue
		}

		node := "(" + nodeType + ")"
		captured := node + " @" + captureName
		if strings.Contains(improved, node) && !strings.Contains(improved, captured) {
			improved = strings.Replace(improved, node, captured, 1)
			confidence += captureAdditionBoost
		}
	}

	if improved == pattern {
		return nil, nil
	}
	return &Proposal{Pattern: improved, Confidence: clampConfidence(confidence)}, nil
}
