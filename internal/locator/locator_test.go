package locator

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Target
	}{
		{
			name: "plain query",
			in:   "#submit",
			want: Target{Kind: KindPlain, Query: "#submit"},
		},
		{
			name: "plain query with surrounding whitespace",
			in:   "  button[type=submit] ",
			want: Target{Kind: KindPlain, Query: "button[type=submit]"},
		},
		{
			name: "override chain keeps only last segment",
			in:   "div.hint > #submit",
			want: Target{Kind: KindOverride, Query: "#submit"},
		},
		{
			name: "override chain with several hints",
			in:   "body > div.form > form > input[name=user]",
			want: Target{Kind: KindOverride, Query: "input[name=user]"},
		},
		{
			name: "frame chain",
			in:   "iframe#a >> iframe#b >> #submit",
			want: Target{
				Kind:   KindFrameChain,
				Frames: []string{"iframe#a", "iframe#b"},
				Query:  "#submit",
			},
		},
		{
			name: "single frame boundary",
			in:   "iframe[name=payment] >> button.pay",
			want: Target{
				Kind:   KindFrameChain,
				Frames: []string{"iframe[name=payment]"},
				Query:  "button.pay",
			},
		},
		{
			name: "frame chain segments are trimmed",
			in:   "  iframe#a>>   #ok  ",
			want: Target{Kind: KindFrameChain, Frames: []string{"iframe#a"}, Query: "#ok"},
		},
		{
			name: "child combinator inside frame chain does not override",
			in:   "iframe#outer >> div.row > input",
			want: Target{
				Kind:   KindFrameChain,
				Frames: []string{"iframe#outer"},
				Query:  "div.row > input",
			},
		},
		{
			name: "empty input",
			in:   "",
			want: Target{Kind: KindPlain, Query: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

// Decoding must be a pure function of the input string.
func TestParseIdempotent(t *testing.T) {
	inputs := []string{
		"#a",
		"div.hint > #submit",
		"iframe#a >> iframe#b >> #submit",
	}
	for _, in := range inputs {
		first := Parse(in)
		second := Parse(in)
		assert.Equal(t, first, second, "two decodes of %q disagree", in)
	}
}

func TestTargetString(t *testing.T) {
	tgt := Target{Kind: KindFrameChain, Frames: []string{"iframe#a", "iframe#b"}, Query: "#submit"}
	assert.Equal(t, "iframe#a >> iframe#b >> #submit", tgt.String())

	// Re-parsing the re-encoded form is stable.
	assert.Equal(t, tgt, Parse(tgt.String()))

	plain := Target{Kind: KindPlain, Query: "#submit"}
	assert.Equal(t, "#submit", plain.String())
}

func TestTargetInFrame(t *testing.T) {
	assert.False(t, Parse("#a").InFrame())
	assert.False(t, Parse("div > #a").InFrame())
	assert.True(t, Parse("iframe >> #a").InFrame())
}

// FuzzParse asserts the parser never panics and that a decoded frame chain
// re-encodes to something that decodes back to itself.
func FuzzParse(f *testing.F) {
	f.Add([]byte("iframe#a >> iframe#b >> #submit"))
	f.Add([]byte("div.hint > #submit"))
	f.Add([]byte(">>>>"))
	f.Fuzz(func(t *testing.T, data []byte) {
		fc := fuzz.NewConsumer(data)
		raw, err := fc.GetString()
		if err != nil {
			return
		}
		tgt := Parse(raw)
		again := Parse(tgt.String())
		if tgt.Kind == KindFrameChain && again.Query != tgt.Query {
			t.Fatalf("frame-chain re-encode unstable: %q -> %+v -> %+v", raw, tgt, again)
		}
	})
}
