// File: internal/browser/element.go
package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// element is a handle to one DOM node in the tab.
type element struct {
	sess *session
	node *cdp.Node
}

func (e *element) ids() []cdp.NodeID { return []cdp.NodeID{e.node.NodeID} }

// call invokes a zero-argument function expression with `this` bound to the
// element and unmarshals the by-value result into res. Arguments are baked
// into the expression by the callers via jsArg.
func (e *element) call(ctx context.Context, fn string, res interface{}) error {
	return e.sess.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(c)
		if err != nil {
			return err
		}
		v, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res != nil && v != nil && v.Value != nil {
			return json.Unmarshal([]byte(v.Value), res)
		}
		return nil
	}))
}

// jsArg quotes a Go string as a javascript string literal.
func jsArg(s string) string { return strconv.Quote(s) }

// -- state reads --

func (e *element) TagName(ctx context.Context) (string, error) {
	if e.node.NodeName != "" {
		return strings.ToLower(e.node.NodeName), nil
	}
	var name string
	err := e.sess.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		n, err := dom.DescribeNode().WithNodeID(e.node.NodeID).Do(c)
		if err != nil {
			return err
		}
		name = strings.ToLower(n.NodeName)
		return nil
	}))
	return name, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var value string
	var ok bool
	err := e.sess.run(ctx, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID))
	return value, ok, err
}

func (e *element) InputValue(ctx context.Context) (string, error) {
	var value string
	err := e.sess.run(ctx, chromedp.Value(e.ids(), &value, chromedp.ByNodeID))
	return value, err
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, `function() { return (this.innerText || this.textContent || "").trim(); }`, &text)
	return text, err
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := e.call(ctx, `function() {
		const r = this.getBoundingClientRect();
		const s = window.getComputedStyle(this);
		return r.width > 0 && r.height > 0 && s.visibility !== "hidden" && s.display !== "none";
	}`, &visible)
	return visible, err
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.call(ctx, `function() { return !this.disabled; }`, &enabled)
	return enabled, err
}

func (e *element) Editable(ctx context.Context) (bool, error) {
	var editable bool
	err := e.call(ctx, `function() {
		if (this.isContentEditable) return true;
		const tag = this.tagName;
		if (tag !== "INPUT" && tag !== "TEXTAREA" && tag !== "SELECT") return false;
		return !this.disabled && !this.readOnly;
	}`, &editable)
	return editable, err
}

func (e *element) Box(ctx context.Context) (Rect, error) {
	var rect Rect
	err := e.sess.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		model, err := dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(c)
		if err != nil {
			return err
		}
		// Border quad is eight coordinates: x1,y1 ... x4,y4.
		b := model.Border
		if len(b) < 8 {
			return fmt.Errorf("box model for node %d is degenerate", e.node.NodeID)
		}
		minX, minY, maxX, maxY := b[0], b[1], b[0], b[1]
		for i := 0; i+1 < len(b); i += 2 {
			minX, maxX = min(minX, b[i]), max(maxX, b[i])
			minY, maxY = min(minY, b[i+1]), max(maxY, b[i+1])
		}
		rect = Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
		return nil
	}))
	return rect, err
}

// -- actions --

func (e *element) Click(ctx context.Context) error {
	return e.sess.run(ctx, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (e *element) DoubleClick(ctx context.Context) error {
	return e.sess.run(ctx, chromedp.DoubleClick(e.ids(), chromedp.ByNodeID))
}

// Fill writes the value and fires the input/change events frameworks listen
// for, so the read-back the executor performs sees what the app saw.
func (e *element) Fill(ctx context.Context, value string) error {
	return e.call(ctx, `function() {
		this.focus();
		this.value = `+jsArg(value)+`;
		this.dispatchEvent(new Event("input", {bubbles: true}));
		this.dispatchEvent(new Event("change", {bubbles: true}));
	}`, nil)
}

func (e *element) Clear(ctx context.Context) error {
	return e.sess.run(ctx, chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

func (e *element) Check(ctx context.Context, checked bool) error {
	return e.call(ctx, `function() {
		if (this.checked !== `+strconv.FormatBool(checked)+`) {
			this.click();
		}
	}`, nil)
}

func (e *element) Hover(ctx context.Context) error {
	if err := e.ScrollIntoView(ctx); err != nil {
		return err
	}
	return e.call(ctx, `function() {
		for (const type of ["mouseover", "mouseenter", "mousemove"]) {
			this.dispatchEvent(new MouseEvent(type, {bubbles: type !== "mouseenter"}));
		}
	}`, nil)
}

func (e *element) Blur(ctx context.Context) error {
	return e.sess.run(ctx, chromedp.Blur(e.ids(), chromedp.ByNodeID))
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.sess.run(ctx, chromedp.ScrollIntoView(e.ids(), chromedp.ByNodeID))
}

func (e *element) SelectOption(ctx context.Context, labelOrValue string) (bool, error) {
	var matched bool
	err := e.call(ctx, `function() {
		if (this.tagName !== "SELECT") return false;
		const wanted = `+jsArg(labelOrValue)+`.trim();
		for (const opt of this.options) {
			if (opt.label.trim() === wanted || opt.text.trim() === wanted || opt.value === wanted) {
				this.value = opt.value;
				this.dispatchEvent(new Event("input", {bubbles: true}));
				this.dispatchEvent(new Event("change", {bubbles: true}));
				return true;
			}
		}
		return false;
	}`, &matched)
	return matched, err
}

// -- traversal --

func (e *element) Parent(ctx context.Context) (Element, bool, error) {
	var parentID cdp.NodeID
	err := e.sess.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(c)
		if err != nil {
			return err
		}
		parentObj, exc, err := runtime.CallFunctionOn(`function() { return this.parentElement; }`).
			WithObjectID(obj.ObjectID).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if parentObj == nil || parentObj.ObjectID == "" {
			return nil // reached the document root
		}
		id, err := dom.RequestNode(parentObj.ObjectID).Do(c)
		if err != nil {
			return err
		}
		parentID = id
		return nil
	}))
	if err != nil {
		return nil, false, err
	}
	if parentID == 0 {
		return nil, false, nil
	}
	return &element{sess: e.sess, node: &cdp.Node{NodeID: parentID}}, true, nil
}

func (e *element) Descendants(ctx context.Context, query string) ([]Element, error) {
	var ids []cdp.NodeID
	err := e.sess.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		found, err := dom.QuerySelectorAll(e.node.NodeID, query).Do(c)
		if err != nil {
			return err
		}
		ids = found
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("descendant query %q failed: %w", query, err)
	}
	out := make([]Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, &element{sess: e.sess, node: &cdp.Node{NodeID: id}})
	}
	return out, nil
}

var _ Element = (*element)(nil)
