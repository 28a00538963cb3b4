// File: internal/locator/locator.go
// Description: Decodes the opaque locator strings produced by the resolution
// layer into an explicit form the executor can act on. A locator is one of
// three encodings serialized into a single string: a plain query, an
// ancestor-hint override chain joined by ">", or a frame chain joined by ">>".
package locator

import "strings"

// Kind discriminates the three wire encodings of a locator string.
type Kind int

const (
	// KindPlain is a single query evaluated in the top-level document.
	KindPlain Kind = iota
	// KindOverride is a ">"-joined hint chain; only the final, most specific
	// segment is trusted as a query. Earlier segments are ancestor hints the
	// model emitted that are unreliable as CSS and are discarded.
	KindOverride
	// KindFrameChain is a ">>"-joined chain: every segment but the last
	// selects a frame to descend into, the last is the in-frame query.
	KindFrameChain
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindOverride:
		return "override"
	case KindFrameChain:
		return "frame-chain"
	default:
		return "unknown"
	}
}

const (
	frameSep    = ">>"
	overrideSep = ">"
)

// Target is the decoded form of a locator: an ordered outer-to-inner list of
// frame-selecting queries (empty for top-level locators) plus the terminal
// element query. Decoding is pure string work; applying the frame chain to a
// live page is the executor's job.
type Target struct {
	Kind   Kind
	Frames []string
	Query  string
}

// Parse decodes a locator string. It never fails: any input maps onto one of
// the three variants, with whitespace-only segments dropped. An empty input
// yields an empty plain query, which callers reject at validation time.
func Parse(raw string) Target {
	s := strings.TrimSpace(raw)

	if strings.Contains(s, frameSep) {
		segs := splitTrim(s, frameSep)
		if len(segs) == 0 {
			return Target{Kind: KindFrameChain, Query: ""}
		}
		return Target{
			Kind:   KindFrameChain,
			Frames: segs[:len(segs)-1],
			Query:  segs[len(segs)-1],
		}
	}

	if strings.Contains(s, overrideSep) {
		segs := splitTrim(s, overrideSep)
		if len(segs) == 0 {
			return Target{Kind: KindOverride, Query: ""}
		}
		// Only the last segment survives. This mirrors the documented
		// behavior for compound hint selectors; see DESIGN.md before
		// "fixing" it.
		return Target{Kind: KindOverride, Query: segs[len(segs)-1]}
	}

	return Target{Kind: KindPlain, Query: s}
}

// String re-encodes the target into the flat wire form used at the model
// boundary and in the cache file.
func (t Target) String() string {
	if len(t.Frames) == 0 {
		return t.Query
	}
	return strings.Join(append(append([]string{}, t.Frames...), t.Query), " "+frameSep+" ")
}

// InFrame reports whether the target must be evaluated inside a nested frame.
func (t Target) InFrame() bool { return len(t.Frames) > 0 }

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
