// Package pathpattern parses and matches route path patterns such as "/items/{id}" and
// "/static/{path...}".
package pathpattern

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind identifies what a pattern segment matches.
type Kind int

const (
	// Literal segments match a path segment exactly.
	Literal Kind = iota
	// Param segments match any single non-empty path segment.
	Param
	// CatchAll segments match the remainder of the path, slashes included.
	CatchAll
)

// Segment is one slash-separated part of a pattern.
type Segment struct {
	Kind  Kind
	Value string // literal text, or the parameter name
}

// Pattern is a parsed path pattern.
type Pattern struct {
	raw  string
	segs []Segment
}

// ParsePattern parses a path pattern. Patterns start with a slash, have no empty
// segments, and may end in a single catch-all segment.
func ParsePattern(s string) (*Pattern, error) {
	if s == "" {
		return nil, errors.New("empty pattern")
	}
	if s[0] != '/' {
		return nil, errors.Newf("pattern %q must start with a slash", s)
	}

	pat := &Pattern{raw: s}
	if s == "/" {
		return pat, nil
	}

	names := map[string]struct{}{}
	parts := strings.Split(s[1:], "/")
	for i, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %d of %q", i+1, s)
		}

		if seg.Kind == CatchAll && i != len(parts)-1 {
			if next, nerr := parseSegment(parts[i+1]); nerr == nil && next.Kind == CatchAll {
				return nil, errors.Newf("pattern %q has consecutive catch-all segments", s)
			}
			return nil, errors.Newf("catch-all {%s...} must be the last segment of %q", seg.Value, s)
		}

		if seg.Kind != Literal {
			if _, dup := names[seg.Value]; dup {
				return nil, errors.Newf("duplicate parameter name %q in %q", seg.Value, s)
			}
			names[seg.Value] = struct{}{}
		}

		pat.segs = append(pat.segs, seg)
	}

	return pat, nil
}

func parseSegment(part string) (Segment, error) {
	if part == "" {
		return Segment{}, errors.New("empty literal segment")
	}

	open, closing := strings.IndexByte(part, '{'), strings.IndexByte(part, '}')
	if open < 0 && closing < 0 {
		return Segment{Kind: Literal, Value: part}, nil
	}
	if open != 0 || closing != len(part)-1 || strings.Count(part, "{") != 1 || strings.Count(part, "}") != 1 {
		return Segment{}, errors.Newf("bad wildcard segment %q: a wildcard must be the whole segment", part)
	}

	name, kind := part[1:len(part)-1], Param
	if trimmed, ok := strings.CutSuffix(name, "..."); ok {
		name, kind = trimmed, CatchAll
	}
	if !isIdent(name) {
		return Segment{}, errors.Newf("bad wildcard name %q", name)
	}

	return Segment{Kind: kind, Value: name}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// String returns the pattern as it was parsed.
func (p *Pattern) String() string { return p.raw }

// Segments returns the parsed segments.
func (p *Pattern) Segments() []Segment { return p.segs }

// LiteralPrefix returns the number of literal segments before the first wildcard.
func (p *Pattern) LiteralPrefix() int {
	n := 0
	for _, seg := range p.segs {
		if seg.Kind != Literal {
			break
		}
		n++
	}
	return n
}

// Key returns a structural identity for the pattern: parameter names do not take part,
// so "/a/{x}" and "/a/{y}" share a key.
func (p *Pattern) Key() string {
	var b strings.Builder
	for _, seg := range p.segs {
		b.WriteByte('/')
		switch seg.Kind {
		case Literal:
			b.WriteString(seg.Value)
		case Param:
			b.WriteString("{}")
		case CatchAll:
			b.WriteString("{...}")
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// SplitPath splits a request path into its segments. The root path has none.
func SplitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Match reports whether the pattern matches the split path. Parameter values are added to
// params, which may be nil when the caller only needs the boolean.
func (p *Pattern) Match(parts []string, params map[string]string) bool {
	for i, seg := range p.segs {
		if seg.Kind == CatchAll {
			if params != nil {
				params[seg.Value] = strings.Join(parts[min(i, len(parts)):], "/")
			}
			return true
		}
		if i >= len(parts) {
			return false
		}

		switch seg.Kind {
		case Literal:
			if parts[i] != seg.Value {
				return false
			}
		case Param:
			if parts[i] == "" {
				return false
			}
			if params != nil {
				params[seg.Value] = parts[i]
			}
		}
	}

	return len(parts) == len(p.segs)
}

// Build substitutes vals, in order, into the pattern's wildcards. Parameter values are
// path-escaped; catch-all values are inserted with their slashes kept.
func Build(p *Pattern, vals ...string) (string, error) {
	var b strings.Builder
	i := 0
	for _, seg := range p.segs {
		b.WriteByte('/')
		if seg.Kind == Literal {
			b.WriteString(seg.Value)
			continue
		}

		if i >= len(vals) {
			return "", errors.Newf("not enough values for pattern %q: got %d", p.raw, len(vals))
		}

		if seg.Kind == CatchAll {
			parts := strings.Split(vals[i], "/")
			for j := range parts {
				parts[j] = url.PathEscape(parts[j])
			}
			b.WriteString(strings.Join(parts, "/"))
		} else {
			b.WriteString(url.PathEscape(vals[i]))
		}
		i++
	}

	if i < len(vals) {
		return "", errors.Newf("too many values for pattern %q: got %d, want %d", p.raw, len(vals), i)
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}
