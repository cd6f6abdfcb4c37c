package types

// DefaultConfidence is assumed when an insight bag carries no confidence
const DefaultConfidence = 0.5

// PredicateOutcome counts how often a predicate held for candidate nodes
type PredicateOutcome struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Total returns the number of evaluations
func (p PredicateOutcome) Total() int {
	return p.Success + p.Failure
}

// SuccessRate returns Success / Total, or 0 for no evaluations
func (p PredicateOutcome) SuccessRate() float64 {
	total := p.Total()
	if total == 0 {
		return 0
	}
	return float64(p.Success) / float64(total)
}

// InsightBag holds accumulated match data for one pattern.
// It is owned by the caller and not retained by the learning engine.
type InsightBag struct {
	NodeTypeFrequencies  map[string]int              `json:"node_type_frequencies"`
	CaptureFrequencies   map[string]int              `json:"capture_frequencies"`
	StructureFrequencies map[string]int              `json:"structure_frequencies"` // "capture:node_type"
	PredicateOutcomes    map[string]PredicateOutcome `json:"predicate_outcomes"`
	Matches              []Match                     `json:"-"`
	PatternConfidence    float64                     `json:"pattern_confidence"`
}

// NewInsightBag creates an empty bag
func NewInsightBag() *InsightBag {
	return &InsightBag{
		NodeTypeFrequencies:  make(map[string]int),
		CaptureFrequencies:   make(map[string]int),
		StructureFrequencies: make(map[string]int),
		PredicateOutcomes:    make(map[string]PredicateOutcome),
	}
}

// Confidence returns the pattern confidence, defaulting to DefaultConfidence
func (b *InsightBag) Confidence() float64 {
	if b == nil || b.PatternConfidence == 0 {
		return DefaultConfidence
	}
	return b.PatternConfidence
}

// Observe accumulates frequencies from one match
func (b *InsightBag) Observe(m Match) {
	if b.NodeTypeFrequencies == nil {
		b.NodeTypeFrequencies = make(map[string]int)
	}
	if b.CaptureFrequencies == nil {
		b.CaptureFrequencies = make(map[string]int)
	}
	if b.StructureFrequencies == nil {
		b.StructureFrequencies = make(map[string]int)
	}

	for name, caps := range m.Captures {
		for _, c := range caps {
			b.CaptureFrequencies[name]++
			if c.NodeType == "" {
				continue
			}
			b.NodeTypeFrequencies[c.NodeType]++
			b.StructureFrequencies[name+":"+c.NodeType]++
		}
	}
	b.Matches = append(b.Matches, m)
}

// ObservePredicate records one predicate evaluation
func (b *InsightBag) ObservePredicate(predicate string, ok bool) {
	if b.PredicateOutcomes == nil {
		b.PredicateOutcomes = make(map[string]PredicateOutcome)
	}
	outcome := b.PredicateOutcomes[predicate]
	if ok {
		outcome.Success++
	} else {
		outcome.Failure++
	}
	b.PredicateOutcomes[predicate] = outcome
}
