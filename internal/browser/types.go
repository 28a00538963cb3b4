// File: internal/browser/types.go
// Description: The driver surface the pipeline depends on. The executor and
// selector cache only ever see these interfaces; the chromedp implementation
// lives alongside, and tests substitute fakes.
package browser

import "context"

// Page is one live browser tab.
type Page interface {
	// Navigate loads the given URL and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// Snapshot returns the rendered markup of the current document.
	Snapshot(ctx context.Context) (string, error)

	// Frame descends through the given chain of frame-selecting queries,
	// outer to inner, and returns a query scope inside the innermost frame.
	// An empty chain returns the top-level document scope.
	Frame(ctx context.Context, chain []string) (Frame, error)

	// ExpectDialog registers a one-shot handler invoked for the next native
	// dialog the page opens. The handler must accept or dismiss the dialog.
	ExpectDialog(ctx context.Context, handler func(Dialog)) error

	// Close releases the tab.
	Close(ctx context.Context) error
}

// Frame is a query scope: the top document or a nested frame's document.
type Frame interface {
	// Count reports how many elements match the query inside this scope.
	Count(ctx context.Context, query string) (int, error)

	// Element returns the first match, or an error when there is none.
	Element(ctx context.Context, query string) (Element, error)

	// WaitVisible blocks until a match is visible or ctx expires.
	WaitVisible(ctx context.Context, query string) error
}

// Element is a handle to one concrete DOM element.
type Element interface {
	// -- state reads --
	TagName(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
	InputValue(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Editable(ctx context.Context) (bool, error)
	Box(ctx context.Context) (Rect, error)

	// -- actions --
	Click(ctx context.Context) error
	DoubleClick(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Clear(ctx context.Context) error
	Check(ctx context.Context, checked bool) error
	Hover(ctx context.Context) error
	Blur(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error

	// SelectOption selects the option of a native select control whose
	// visible label or value equals the given text. The bool reports
	// whether any option matched.
	SelectOption(ctx context.Context, labelOrValue string) (bool, error)

	// -- traversal --
	Parent(ctx context.Context) (Element, bool, error)
	Descendants(ctx context.Context, query string) ([]Element, error)
}

// Rect is an element's border box in page coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// Dialog is a native javascript dialog (alert, confirm, prompt).
type Dialog interface {
	Kind() string
	Message() string
	Accept(ctx context.Context, promptText string) error
	Dismiss(ctx context.Context) error
}
