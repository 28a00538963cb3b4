// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kestrelqa/kestrel/internal/config"
)

// session implements Page on one chromedp tab.
type session struct {
	tabCtx context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	done      func()
	closeOnce sync.Once
}

// run executes chromedp actions on the tab while honoring the caller's
// context: cancelling ctx aborts the in-flight action.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *session) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page snapshot: %w", err)
	}
	return html, nil
}

// Frame walks the chain of frame-selecting queries outer to inner. chromedp
// scopes queries into an iframe's document when given the iframe node.
func (s *session) Frame(ctx context.Context, chain []string) (Frame, error) {
	var scope *cdp.Node
	for _, q := range chain {
		var nodes []*cdp.Node
		opts := []chromedp.QueryOption{chromedp.ByQuery}
		if scope != nil {
			opts = append(opts, chromedp.FromNode(scope))
		}
		if err := s.run(ctx, chromedp.Nodes(q, &nodes, opts...)); err != nil {
			return nil, fmt.Errorf("frame query %q failed: %w", q, err)
		}
		if len(nodes) == 0 {
			return nil, fmt.Errorf("frame query %q matched no element", q)
		}
		scope = nodes[0]
	}
	return &frameScope{sess: s, scope: scope}, nil
}

// ExpectDialog arms a one-shot listener for the next javascript dialog. The
// handler runs on its own goroutine because the action that triggers the
// dialog blocks until the dialog is answered.
func (s *session) ExpectDialog(ctx context.Context, handler func(Dialog)) error {
	var fired atomic.Bool
	chromedp.ListenTarget(s.tabCtx, func(ev interface{}) {
		opening, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok || !fired.CompareAndSwap(false, true) {
			return
		}
		d := &dialog{
			sess:    s,
			kind:    string(opening.Type),
			message: opening.Message,
		}
		go handler(d)
	})
	return nil
}

func (s *session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.done != nil {
			s.done()
		}
	})
	return nil
}

// -- frameScope --

type frameScope struct {
	sess  *session
	scope *cdp.Node // nil means the top-level document
}

func (f *frameScope) queryOpts(extra ...chromedp.QueryOption) []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if f.scope != nil {
		opts = append(opts, chromedp.FromNode(f.scope))
	}
	return append(opts, extra...)
}

func (f *frameScope) Count(ctx context.Context, query string) (int, error) {
	var nodes []*cdp.Node
	if err := f.sess.run(ctx, chromedp.Nodes(query, &nodes, f.queryOpts()...)); err != nil {
		return 0, fmt.Errorf("query %q failed: %w", query, err)
	}
	return len(nodes), nil
}

func (f *frameScope) Element(ctx context.Context, query string) (Element, error) {
	var nodes []*cdp.Node
	if err := f.sess.run(ctx, chromedp.Nodes(query, &nodes, f.queryOpts()...)); err != nil {
		return nil, fmt.Errorf("query %q failed: %w", query, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("query %q matched no element", query)
	}
	return &element{sess: f.sess, node: nodes[0]}, nil
}

func (f *frameScope) WaitVisible(ctx context.Context, query string) error {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if f.scope != nil {
		opts = append(opts, chromedp.FromNode(f.scope))
	}
	if err := f.sess.run(ctx, chromedp.WaitVisible(query, opts...)); err != nil {
		return fmt.Errorf("element %q did not become visible: %w", query, err)
	}
	return nil
}

// -- dialog --

type dialog struct {
	sess    *session
	kind    string
	message string
}

func (d *dialog) Kind() string    { return d.kind }
func (d *dialog) Message() string { return d.message }

func (d *dialog) Accept(ctx context.Context, promptText string) error {
	return d.sess.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		p := page.HandleJavaScriptDialog(true)
		if promptText != "" {
			p = p.WithPromptText(promptText)
		}
		return p.Do(c)
	}))
}

func (d *dialog) Dismiss(ctx context.Context) error {
	return d.sess.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return page.HandleJavaScriptDialog(false).Do(c)
	}))
}

var (
	_ Page   = (*session)(nil)
	_ Frame  = (*frameScope)(nil)
	_ Dialog = (*dialog)(nil)
)
