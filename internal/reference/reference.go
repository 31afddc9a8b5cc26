// Package reference recognizes and parses the reference forms that may
// appear in place of a sensitive value.
//
// Two kinds of reference exist. A coordinate reference points at a managed
// payload and is persisted as a single-key wrapper object:
//
//	{"_secret": "airbyte_workspace_<owner>_secret_<base>_v<n>"}
//
// An external reference names a secret in an externally managed secret
// manager and is persisted as a plain string in one of two equivalent
// syntaxes:
//
//	${NAME}
//	secret_coordinate::NAME
//
// Both syntaxes normalize to the same canonical form immediately after
// parsing, so no downstream logic ever branches on the original spelling.
package reference

import (
	"strings"

	"github.com/systmms/confseal/internal/coordinate"
)

// WrapperKey is the single key of the persisted coordinate wrapper object.
const WrapperKey = "_secret"

const (
	bracketOpen    = "${"
	bracketClose   = "}"
	explicitPrefix = "secret_coordinate::"
)

// External is a named pointer to a secret stored and managed outside the
// engine's control. It is never paired with a coordinate and never written
// to the managed store; resolution is always live.
type External struct {
	// Name is the exact, case-sensitive identifier used by the external
	// secret manager. It may contain slashes and dots.
	Name string
}

// String returns the canonical persisted form of the reference.
func (e External) String() string {
	return bracketOpen + e.Name + bracketClose
}

// Reference is a parsed pointer embedded in a document in place of a raw
// value. Exactly one of Coordinate and External is set.
type Reference struct {
	Coordinate *coordinate.Coordinate
	External   *External
}

// ParseString recognizes the two external-reference syntaxes in a string
// value. Both forms yield the same External. A string matching neither
// syntax is plain data and returns ok=false.
//
// A literal value that happens to match the bracket syntax cannot be
// distinguished from a reference; reference syntax always wins.
func ParseString(s string) (External, bool) {
	if name, ok := strings.CutPrefix(s, explicitPrefix); ok && name != "" {
		return External{Name: name}, true
	}

	if inner, ok := strings.CutPrefix(s, bracketOpen); ok {
		name, ok := strings.CutSuffix(inner, bracketClose)
		if ok && name != "" && !strings.Contains(name, bracketClose) {
			return External{Name: name}, true
		}
	}

	return External{}, false
}

// ParseValue classifies an arbitrary document value. It returns the parsed
// reference and ok=true when the value is a coordinate wrapper object or an
// external reference string, and ok=false when the value is plain data.
// A wrapper object carrying a corrupt coordinate string fails with
// MalformedCoordinateError rather than being treated as data.
func ParseValue(value any) (Reference, bool, error) {
	switch v := value.(type) {
	case string:
		ext, ok := ParseString(v)
		if !ok {
			return Reference{}, false, nil
		}
		return Reference{External: &ext}, true, nil

	case map[string]any:
		raw, ok := wrapperPayload(v)
		if !ok {
			return Reference{}, false, nil
		}
		coord, err := coordinate.Parse(raw)
		if err != nil {
			return Reference{}, false, err
		}
		return Reference{Coordinate: &coord}, true, nil

	default:
		return Reference{}, false, nil
	}
}

// WrapCoordinate builds the persisted wrapper object for a coordinate.
func WrapCoordinate(c coordinate.Coordinate) map[string]any {
	return map[string]any{WrapperKey: c.String()}
}

// wrapperPayload extracts the coordinate string from a candidate wrapper
// object. Only a single-key object with a string under WrapperKey counts;
// anything else is an ordinary document object.
func wrapperPayload(obj map[string]any) (string, bool) {
	if len(obj) != 1 {
		return "", false
	}
	raw, ok := obj[WrapperKey].(string)
	return raw, ok
}
