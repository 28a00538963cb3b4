// File: internal/executor/fakes_test.go
// Test doubles for the browser driver interfaces.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/kestrelqa/kestrel/internal/browser"
)

type fakeElement struct {
	mu sync.Mutex

	tag     string
	attrs   map[string]string
	value   string
	text    string
	parent  *fakeElement
	kids    map[string][]browser.Element
	visible bool

	clicks    int
	onClick   func()
	hovered   bool
	fills     []string
	selectOK  bool
	selectErr error
	selected  []string

	// valueOverride, when set, is what read-back reports regardless of
	// what was written. Simulates a driver/page disagreeing with us.
	valueOverride *string
}

func newFakeElement(tag string) *fakeElement {
	return &fakeElement{
		tag:     tag,
		attrs:   map[string]string{},
		kids:    map[string][]browser.Element{},
		visible: true,
	}
}

func (f *fakeElement) TagName(context.Context) (string, error) { return f.tag, nil }

func (f *fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := f.attrs[name]
	return v, ok, nil
}

func (f *fakeElement) InputValue(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.valueOverride != nil {
		return *f.valueOverride, nil
	}
	return f.value, nil
}

func (f *fakeElement) Text(context.Context) (string, error)    { return f.text, nil }
func (f *fakeElement) Visible(context.Context) (bool, error)   { return f.visible, nil }
func (f *fakeElement) Enabled(context.Context) (bool, error)   { return true, nil }
func (f *fakeElement) Editable(context.Context) (bool, error)  { return true, nil }
func (f *fakeElement) Box(context.Context) (browser.Rect, error) {
	return browser.Rect{Width: 10, Height: 10}, nil
}

func (f *fakeElement) Click(context.Context) error {
	f.mu.Lock()
	f.clicks++
	hook := f.onClick
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeElement) DoubleClick(context.Context) error { return nil }

func (f *fakeElement) Fill(_ context.Context, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills = append(f.fills, value)
	f.value = value
	return nil
}

func (f *fakeElement) Clear(context.Context) error {
	f.value = ""
	return nil
}

func (f *fakeElement) Check(context.Context, bool) error { return nil }

func (f *fakeElement) Hover(context.Context) error {
	f.hovered = true
	return nil
}

func (f *fakeElement) Blur(context.Context) error           { return nil }
func (f *fakeElement) ScrollIntoView(context.Context) error { return nil }

func (f *fakeElement) SelectOption(_ context.Context, labelOrValue string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, labelOrValue)
	return f.selectOK, f.selectErr
}

func (f *fakeElement) Parent(context.Context) (browser.Element, bool, error) {
	if f.parent == nil {
		return nil, false, nil
	}
	return f.parent, true, nil
}

func (f *fakeElement) Descendants(_ context.Context, query string) ([]browser.Element, error) {
	return f.kids[query], nil
}

type fakeFrame struct {
	elements map[string]*fakeElement
	// hidden queries make WaitVisible block until the context expires.
	hidden map[string]bool
}

func newFakeFrame() *fakeFrame {
	return &fakeFrame{elements: map[string]*fakeElement{}, hidden: map[string]bool{}}
}

func (f *fakeFrame) Count(_ context.Context, query string) (int, error) {
	if _, ok := f.elements[query]; ok {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeFrame) Element(_ context.Context, query string) (browser.Element, error) {
	el, ok := f.elements[query]
	if !ok {
		return nil, fmt.Errorf("query %q matched no element", query)
	}
	return el, nil
}

func (f *fakeFrame) WaitVisible(ctx context.Context, query string) error {
	if f.hidden[query] {
		<-ctx.Done()
		return ctx.Err()
	}
	if _, ok := f.elements[query]; !ok {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

type fakePage struct {
	mu         sync.Mutex
	top        *fakeFrame
	frames     map[string]*fakeFrame // keyed by joined chain
	navigated  []string
	dialogFn   func(browser.Dialog)
	frameCalls [][]string
}

func newFakePage() *fakePage {
	return &fakePage{top: newFakeFrame(), frames: map[string]*fakeFrame{}}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) Snapshot(context.Context) (string, error) { return "<html></html>", nil }

func (p *fakePage) Frame(_ context.Context, chain []string) (browser.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frameCalls = append(p.frameCalls, chain)
	if len(chain) == 0 {
		return p.top, nil
	}
	key := fmt.Sprint(chain)
	if f, ok := p.frames[key]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("frame chain %v matched nothing", chain)
}

func (p *fakePage) ExpectDialog(_ context.Context, handler func(browser.Dialog)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialogFn = handler
	return nil
}

func (p *fakePage) Close(context.Context) error { return nil }

// openDialog simulates the page opening a dialog after a triggering action.
func (p *fakePage) openDialog(d *fakeDialog) {
	p.mu.Lock()
	fn := p.dialogFn
	p.mu.Unlock()
	if fn != nil {
		fn(d)
	}
}

type fakeDialog struct {
	kind      string
	message   string
	accepted  bool
	dismissed bool
	prompted  string
}

func (d *fakeDialog) Kind() string    { return d.kind }
func (d *fakeDialog) Message() string { return d.message }

func (d *fakeDialog) Accept(_ context.Context, promptText string) error {
	d.accepted = true
	d.prompted = promptText
	return nil
}

func (d *fakeDialog) Dismiss(context.Context) error {
	d.dismissed = true
	return nil
}
