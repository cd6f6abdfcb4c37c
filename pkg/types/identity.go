package types

import (
	"fmt"
	"strings"
)

// PatternType classifies what a pattern detects
type PatternType string

const (
	PatternCodeStructure PatternType = "code_structure"
	PatternCodeNaming    PatternType = "code_naming"
	PatternErrorHandling PatternType = "error_handling"
	PatternDocumentation PatternType = "documentation"
	PatternArchitecture  PatternType = "architecture"
	PatternDependency    PatternType = "dependency"
	PatternCodePattern   PatternType = "code_pattern"
)

// keySeparator joins identity parts. Pattern IDs may themselves contain it.
const keySeparator = ":"

// Identity uniquely addresses one metrics record
type Identity struct {
	Language string
	Type     PatternType
	ID       string
}

// Key returns the stable string form "language:type:id"
func (i Identity) Key() string {
	return i.Language + keySeparator + string(i.Type) + keySeparator + i.ID
}

// String implements fmt.Stringer
func (i Identity) String() string {
	return i.Key()
}

// Validate checks that every part of the identity is present and that the
// language and type do not contain the key separator
func (i Identity) Validate() error {
	if i.Language == "" || i.Type == "" || i.ID == "" {
		return fmt.Errorf("%w: language, type and id are required", ErrInvalidIdentity)
	}
	if strings.Contains(i.Language, keySeparator) || strings.Contains(string(i.Type), keySeparator) {
		return fmt.Errorf("%w: language and type must not contain %q", ErrInvalidIdentity, keySeparator)
	}
	return nil
}

// ParseIdentity parses a key produced by Identity.Key
func ParseIdentity(key string) (Identity, error) {
	parts := strings.SplitN(key, keySeparator, 3)
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, key)
	}

	id := Identity{
		Language: parts[0],
		Type:     PatternType(parts[1]),
		ID:       parts[2],
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}
