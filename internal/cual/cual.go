// Package cual implements the Canonical Universal Asset Locator
// (spec §3, §4.1): scheme://authority/path-segments, where scheme
// names the connector the asset came from (internal/builder writes the
// connector namespace there, not the connector kind), authority
// identifies the account/site, and
// path segments reflect the container hierarchy. CUALs are opaque
// outside the Translator (spec §4.1).
package cual

import (
	"fmt"
	"net/url"
	"strings"
)

// CUAL is a parsed Canonical Universal Asset Locator.
type CUAL struct {
	scheme    string
	authority string
	segments  []string // decoded path segments, in order
}

// ParseError reports why a CUAL string failed to parse.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cual: invalid %q: %s", e.Input, e.Reason)
}

// Parse decodes a CUAL string into its components. Percent-decoding is
// applied only to path segments (spec §4.1); the scheme and authority
// are taken verbatim. A segment must already be in the encoding Render
// produces, so that rendering the result gives back s.
func Parse(s string) (CUAL, error) {
	idx := strings.Index(s, "://")
	if idx <= 0 {
		return CUAL{}, &ParseError{Input: s, Reason: "malformed scheme: missing \"://\""}
	}
	scheme := s[:idx]
	if !isValidScheme(scheme) {
		return CUAL{}, &ParseError{Input: s, Reason: "malformed scheme"}
	}

	rest := s[idx+3:]
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		return CUAL{}, &ParseError{Input: s, Reason: "empty authority"}
	}
	authority := parts[0]

	var segments []string
	for _, raw := range parts[1:] {
		if raw == "" {
			return CUAL{}, &ParseError{Input: s, Reason: "empty path segment"}
		}
		decoded, err := url.PathUnescape(raw)
		if err != nil {
			return CUAL{}, &ParseError{Input: s, Reason: "mixed or invalid percent-encoding in segment " + raw}
		}
		if url.PathEscape(decoded) != raw {
			return CUAL{}, &ParseError{Input: s, Reason: "mixed or non-canonical percent-encoding in segment " + raw}
		}
		segments = append(segments, decoded)
	}

	return CUAL{scheme: scheme, authority: authority, segments: segments}, nil
}

// New builds a CUAL directly from components, skipping parse/render.
func New(scheme, authority string, segments ...string) CUAL {
	return CUAL{scheme: scheme, authority: authority, segments: segments}
}

func isValidScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r >= 'a' && r <= 'z' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-') {
			continue
		}
		return false
	}
	return true
}

// Render is a total inverse of Parse: render(parse(s)) == s for any s
// accepted by Parse.
func (c CUAL) Render() string {
	var b strings.Builder
	b.WriteString(c.scheme)
	b.WriteString("://")
	b.WriteString(c.authority)
	for _, seg := range c.segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

func (c CUAL) String() string { return c.Render() }

// Scheme returns the scheme component. CUALs built by internal/builder
// carry the connector namespace here; the connector kind is not
// encoded in a CUAL.
func (c CUAL) Scheme() string { return c.scheme }

// Authority returns the account/site identifier.
func (c CUAL) Authority() string { return c.authority }

// Path returns the decoded path segments.
func (c CUAL) Path() []string { return c.segments }

// IsAncestorOf reports whether c is a path-prefix ancestor of other
// within the same scheme/authority — used by default-policy wildcard
// matching (spec §4.7).
func (c CUAL) IsAncestorOf(other CUAL) bool {
	if c.scheme != other.scheme || c.authority != other.authority {
		return false
	}
	if len(c.segments) >= len(other.segments) {
		return false
	}
	for i, seg := range c.segments {
		if other.segments[i] != seg {
			return false
		}
	}
	return true
}

// Depth returns the number of path segments, used for ancestor-
// distance tie-breaking (spec §4.7).
func (c CUAL) Depth() int { return len(c.segments) }
