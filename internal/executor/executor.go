// File: internal/executor/executor.go
// Description: Performs one classified action against one resolved target and
// verifies the outcome. The executor owns all the messy page-side behavior:
// bounded waits, append-on-type semantics with read-back verification, date
// input reformatting, dropdown control discovery, and one-shot dialog
// handling armed before the triggering click.
package executor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelqa/kestrel/internal/browser"
	"github.com/kestrelqa/kestrel/internal/config"
	"github.com/kestrelqa/kestrel/internal/locator"
	"github.com/kestrelqa/kestrel/internal/steps"
)

// TimeoutError reports an element that never reached the required state
// within the wait budget.
type TimeoutError struct {
	Query string
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting on %q: %v", e.Query, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// VerificationError reports a post-action read-back that does not match the
// intended value.
type VerificationError struct {
	Query string
	Want  string
	Got   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed on %q: wrote %q but field reads %q", e.Query, e.Want, e.Got)
}

// MismatchError reports a dialog of a different kind than the step expected.
type MismatchError struct {
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected a %s dialog but the page opened a %s dialog", e.Want, e.Got)
}

// loginLandmarks is the query for an element that only exists after a
// successful login; clicks flagged as logins wait for one to appear.
const loginLandmarks = `[data-testid=logout], a[href*="logout"], button[name=logout], #logout, .logout`

// dateRe matches DD/MM/YYYY literals destined for date-typed inputs.
var dateRe = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)

// Executor drives one page.
type Executor struct {
	page   browser.Page
	cfg    config.BrowserConfig
	logger *zap.Logger
}

func New(page browser.Page, cfg config.BrowserConfig, logger *zap.Logger) *Executor {
	return &Executor{
		page:   page,
		cfg:    cfg,
		logger: logger.Named("executor"),
	}
}

// Execute performs the action on the target and verifies it. Navigation needs
// no target; every other kind resolves the frame chain, waits for the
// terminal element within the action timeout, and dispatches on kind.
func (e *Executor) Execute(ctx context.Context, target locator.Target, action steps.Action) error {
	if action.Kind == steps.KindNavigate {
		return e.page.Navigate(ctx, action.Literal)
	}

	frame, err := e.page.Frame(ctx, target.Frames)
	if err != nil {
		return err
	}

	el, err := e.awaitElement(ctx, frame, target.Query)
	if err != nil {
		return err
	}

	switch action.Kind {
	case steps.KindClick:
		return e.performClick(ctx, el, action)
	case steps.KindType:
		return e.performType(ctx, el, target.Query, action.Literal)
	case steps.KindSelect:
		return e.performSelect(ctx, el, action.Literal)
	case steps.KindHover:
		return e.performHover(ctx, el)
	case steps.KindAlert:
		return e.performAlert(ctx, el, action)
	default:
		return fmt.Errorf("executor cannot handle action kind %s", action.Kind)
	}
}

// awaitElement blocks until the query is visible, then returns its element.
func (e *Executor) awaitElement(ctx context.Context, frame browser.Frame, query string) (browser.Element, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()

	if err := frame.WaitVisible(waitCtx, query); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || waitCtx.Err() != nil {
			return nil, &TimeoutError{Query: query, Err: err}
		}
		return nil, err
	}
	return frame.Element(ctx, query)
}

func (e *Executor) performClick(ctx context.Context, el browser.Element, action steps.Action) error {
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	if !action.Login {
		return nil
	}

	// A login click is only done once the page shows a logged-in landmark.
	top, err := e.page.Frame(ctx, nil)
	if err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()
	if err := top.WaitVisible(waitCtx, loginLandmarks); err != nil {
		return &TimeoutError{Query: loginLandmarks, Err: fmt.Errorf("no post-login landmark appeared: %w", err)}
	}
	return nil
}

func (e *Executor) performType(ctx context.Context, el browser.Element, query, literal string) error {
	write := literal
	if isDate, err := e.isDateInput(ctx, el); err != nil {
		return err
	} else if isDate {
		write = ReformatDate(write)
	}

	current, err := el.InputValue(ctx)
	if err != nil {
		return fmt.Errorf("failed to read current value: %w", err)
	}
	want := write
	if current != "" {
		want = current + write
	}

	if err := el.Fill(ctx, want); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}

	got, err := el.InputValue(ctx)
	if err != nil {
		return fmt.Errorf("failed to read value back: %w", err)
	}
	if got != want {
		return &VerificationError{Query: query, Want: want, Got: got}
	}
	return nil
}

func (e *Executor) isDateInput(ctx context.Context, el browser.Element) (bool, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return false, err
	}
	if tag != "input" {
		return false, nil
	}
	typ, ok, err := el.Attribute(ctx, "type")
	if err != nil {
		return false, err
	}
	return ok && typ == "date", nil
}

// ReformatDate converts a DD/MM/YYYY literal to the YYYY-MM-DD form date
// inputs store. Literals in any other shape pass through untouched.
func ReformatDate(literal string) string {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(literal))
	if m == nil {
		return literal
	}
	return fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1])
}

func (e *Executor) performHover(ctx context.Context, el browser.Element) error {
	if err := el.Hover(ctx); err != nil {
		return fmt.Errorf("hover failed: %w", err)
	}
	// Give hover-triggered UI a moment to render.
	return sleep(ctx, e.cfg.SettleDelay)
}

func (e *Executor) performAlert(ctx context.Context, el browser.Element, action steps.Action) error {
	result := make(chan error, 1)

	handler := func(d browser.Dialog) {
		if want := string(action.Alert.Expect); want != "" && d.Kind() != want {
			// Answer the dialog anyway so the page does not hang, then
			// report the mismatch.
			_ = d.Dismiss(ctx)
			result <- &MismatchError{Want: want, Got: d.Kind()}
			return
		}
		if action.Alert.Dismiss {
			result <- d.Dismiss(ctx)
			return
		}
		promptText := ""
		if action.Alert.TypeText {
			promptText = action.Literal
		}
		result <- d.Accept(ctx, promptText)
	}

	// The handler must be armed before the click that triggers the dialog.
	if err := e.page.ExpectDialog(ctx, handler); err != nil {
		return fmt.Errorf("failed to arm dialog handler: %w", err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("dialog-triggering click failed: %w", err)
	}

	select {
	case err := <-result:
		return err
	case <-time.After(e.cfg.ActionTimeout):
		return &TimeoutError{Query: "dialog", Err: fmt.Errorf("no dialog opened")}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
