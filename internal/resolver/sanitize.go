// File: internal/resolver/sanitize.go
package resolver

import (
	"strings"

	"golang.org/x/net/html"
)

// droppedElements carry no locator-relevant information and dominate page
// weight, so they never reach the model.
var droppedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"link":     true,
	"meta":     true,
	"template": true,
}

const maxAttrLen = 120

// Sanitize reduces a raw page snapshot to the markup that matters for
// locator resolution: scripts, styles and metadata are dropped, oversized
// attribute values are truncated, and the result is capped at maxBytes.
// Unparseable input falls back to a raw byte cap rather than failing, since
// a degraded snapshot still lets the model try.
func Sanitize(rawHTML string, maxBytes int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return capBytes(rawHTML, maxBytes)
	}

	prune(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return capBytes(rawHTML, maxBytes)
	}
	return capBytes(sb.String(), maxBytes)
}

func prune(n *html.Node) {
	var next *html.Node
	for child := n.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type == html.ElementNode && droppedElements[child.Data] {
			n.RemoveChild(child)
			continue
		}
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
			continue
		}
		prune(child)
	}

	if n.Type != html.ElementNode {
		return
	}
	for i := range n.Attr {
		if len(n.Attr[i].Val) > maxAttrLen {
			n.Attr[i].Val = n.Attr[i].Val[:maxAttrLen]
		}
	}
}

func capBytes(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes]
}
