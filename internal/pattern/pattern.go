// Package pattern compiles dotted symbol patterns such as
// "System.Web.Mvc.*" into a form the query engine can match against
// candidate namespaces and symbols.
package pattern

import (
	"strings"

	"github.com/standardbeagle/sharpindex/internal/csharperrors"
)

const wildcard = "*"

// Part is one segment of a compiled pattern.
type Part struct {
	Literal    string
	IsWildcard bool
}

// Compiled is an ordered list of pattern parts, split on literal '.'.
type Compiled struct {
	Parts []Part
	raw   string
}

// String returns the original pattern text.
func (c *Compiled) String() string {
	return c.raw
}

// Compile splits pattern on '.' into parts, each either a literal or
// the wildcard token "*". It fails if the pattern is empty or any part
// is itself empty (e.g. a leading, trailing, or doubled dot).
func Compile(pattern string) (*Compiled, error) {
	if pattern == "" {
		return nil, csharperrors.NewInvalidPattern(pattern, "pattern is empty")
	}

	segments := strings.Split(pattern, ".")
	parts := make([]Part, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return nil, csharperrors.NewInvalidPattern(pattern, "empty segment after splitting on '.'")
		}
		parts = append(parts, Part{Literal: seg, IsWildcard: seg == wildcard})
	}

	return &Compiled{Parts: parts, raw: pattern}, nil
}

// prefixParts returns all parts but the last — the namespace prefix a
// pattern implies.
func (c *Compiled) prefixParts() []Part {
	if len(c.Parts) == 0 {
		return nil
	}
	return c.Parts[:len(c.Parts)-1]
}

// lastPart returns the final pattern part, the one matched against a
// bare symbol name.
func (c *Compiled) lastPart() (Part, bool) {
	if len(c.Parts) == 0 {
		return Part{}, false
	}
	return c.Parts[len(c.Parts)-1], true
}

func splitDotted(dotted string) []string {
	if dotted == "" {
		return nil
	}
	return strings.Split(dotted, ".")
}

func partMatches(p Part, segment string) bool {
	if p.IsWildcard {
		return true
	}
	return p.Literal == segment
}

// MatchNamespace matches a dotted candidate namespace against all but
// the pattern's last part. The candidate must have exactly as many
// segments as the pattern prefix — no partial wildcards within a
// segment, and no matching a shorter or longer candidate.
func (c *Compiled) MatchNamespace(dotted string) bool {
	prefix := c.prefixParts()
	segments := splitDotted(dotted)

	if len(prefix) == 0 {
		return dotted == ""
	}
	if len(segments) != len(prefix) {
		return false
	}
	for i, p := range prefix {
		if !partMatches(p, segments[i]) {
			return false
		}
	}
	return true
}

// MatchSymbol matches the pattern's final part against a bare symbol.
func (c *Compiled) MatchSymbol(s string) bool {
	last, ok := c.lastPart()
	if !ok {
		return false
	}
	return partMatches(last, s)
}

// PartialNamespace is a prefix check used to early-exit traversal: the
// compiled pattern's first k parts (k = len(segments)) match dotted's k
// segments, where dotted may be shorter than the full pattern prefix.
func (c *Compiled) PartialNamespace(dotted string) bool {
	prefix := c.prefixParts()
	segments := splitDotted(dotted)

	if len(segments) > len(prefix) {
		return false
	}
	for i, seg := range segments {
		if !partMatches(prefix[i], seg) {
			return false
		}
	}
	return true
}
