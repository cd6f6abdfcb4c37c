package types

// Capture is one named node captured by a structural query.
// Byte offsets are relative to the text the query ran against.
type Capture struct {
	Name      string
	NodeType  string
	Text      string
	StartByte int
	EndByte   int
	StartLine int
	EndLine   int
}

// Match represents a single structural or fallback match
type Match struct {
	PatternName string
	Captures    map[string][]Capture

	// Recovery metadata
	IsFallback      bool
	FallbackType    string // "pattern", "regex" or "partial"
	FallbackIndex   int    // Index of the fallback query that produced this match
	PartialMatch    bool
	WindowStartLine int
	WindowEndLine   int

	// Textual span, populated by regex fallback
	Text        string
	Start       int
	End         int
	Groups      []string
	NamedGroups map[string]string
}

// CaptureCount returns the total number of captures across all names
func (m *Match) CaptureCount() int {
	n := 0
	for _, caps := range m.Captures {
		n += len(caps)
	}
	return n
}

// ShiftBytes moves every capture offset by delta
func (m *Match) ShiftBytes(delta int) {
	for name, caps := range m.Captures {
		for i := range caps {
			caps[i].StartByte += delta
			caps[i].EndByte += delta
		}
		m.Captures[name] = caps
	}
}
