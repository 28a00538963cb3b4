// File: internal/executor/executor_test.go
package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrelqa/kestrel/internal/browser"
	"github.com/kestrelqa/kestrel/internal/config"
	"github.com/kestrelqa/kestrel/internal/locator"
	"github.com/kestrelqa/kestrel/internal/steps"
)

func testConfig() config.BrowserConfig {
	return config.BrowserConfig{
		ActionTimeout:   200 * time.Millisecond,
		DropdownTimeout: 100 * time.Millisecond,
		SettleDelay:     time.Millisecond,
	}
}

func newTestExecutor(page *fakePage) *Executor {
	return New(page, testConfig(), zap.NewNop())
}

func TestExecuteNavigate(t *testing.T) {
	page := newFakePage()
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Target{}, steps.Action{
		Kind:    steps.KindNavigate,
		Literal: "https://example.test/login",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.test/login"}, page.navigated)
}

func TestExecuteClick(t *testing.T) {
	page := newFakePage()
	btn := newFakeElement("button")
	page.top.elements["#save"] = btn
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#save"), steps.Action{Kind: steps.KindClick})
	require.NoError(t, err)
	assert.Equal(t, 1, btn.clicks)
}

func TestExecuteClickInNestedFrames(t *testing.T) {
	page := newFakePage()
	inner := newFakeFrame()
	btn := newFakeElement("button")
	inner.elements["#submit"] = btn
	page.frames["[iframe#a iframe#b]"] = inner
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("iframe#a >> iframe#b >> #submit"), steps.Action{Kind: steps.KindClick})
	require.NoError(t, err)
	assert.Equal(t, 1, btn.clicks)
	assert.Equal(t, [][]string{{"iframe#a", "iframe#b"}}, page.frameCalls)
}

func TestExecuteLoginClickWaitsForLandmark(t *testing.T) {
	page := newFakePage()
	btn := newFakeElement("button")
	page.top.elements["#login"] = btn
	page.top.elements[loginLandmarks] = newFakeElement("a")
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#login"), steps.Action{Kind: steps.KindClick, Login: true})
	require.NoError(t, err)
	assert.Equal(t, 1, btn.clicks)
}

func TestExecuteLoginClickTimesOutWithoutLandmark(t *testing.T) {
	page := newFakePage()
	page.top.elements["#login"] = newFakeElement("button")
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#login"), steps.Action{Kind: steps.KindClick, Login: true})
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
}

func TestExecuteTypeIntoEmptyField(t *testing.T) {
	page := newFakePage()
	field := newFakeElement("input")
	page.top.elements["#user"] = field
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#user"), steps.Action{
		Kind: steps.KindType, Literal: "admin", HasLiteral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, field.fills)
}

func TestExecuteTypeAppendsToExistingValue(t *testing.T) {
	page := newFakePage()
	field := newFakeElement("input")
	field.value = "foo"
	page.top.elements["#user"] = field
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#user"), steps.Action{
		Kind: steps.KindType, Literal: "bar", HasLiteral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"foobar"}, field.fills)
	assert.Equal(t, "foobar", field.value)
}

func TestExecuteTypeVerificationFailure(t *testing.T) {
	page := newFakePage()
	field := newFakeElement("input")
	field.value = "foo"
	stale := "something else"
	field.valueOverride = &stale
	page.top.elements["#user"] = field
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#user"), steps.Action{
		Kind: steps.KindType, Literal: "bar", HasLiteral: true,
	})
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "something elsebar", verr.Want)
	assert.Equal(t, "something else", verr.Got)
}

func TestExecuteTypeConvertsDateLiterals(t *testing.T) {
	page := newFakePage()
	field := newFakeElement("input")
	field.attrs["type"] = "date"
	page.top.elements["#due"] = field
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#due"), steps.Action{
		Kind: steps.KindType, Literal: "08/04/2025", HasLiteral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-04-08", field.value)
}

func TestReformatDate(t *testing.T) {
	assert.Equal(t, "2025-04-08", ReformatDate("08/04/2025"))
	assert.Equal(t, "not a date", ReformatDate("not a date"))
	assert.Equal(t, "8/4/2025", ReformatDate("8/4/2025"), "single-digit forms pass through")
}

func TestExecuteHover(t *testing.T) {
	page := newFakePage()
	el := newFakeElement("div")
	page.top.elements[".menu"] = el
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse(".menu"), steps.Action{Kind: steps.KindHover})
	require.NoError(t, err)
	assert.True(t, el.hovered)
}

func TestExecuteTimesOutOnInvisibleElement(t *testing.T) {
	page := newFakePage()
	ex := newTestExecutor(page)

	start := time.Now()
	err := ex.Execute(context.Background(), locator.Parse("#missing"), steps.Action{Kind: steps.KindClick})
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Less(t, time.Since(start), 2*time.Second, "wait must be bounded")
}

// -- dropdowns --

func TestSelectOnNativeControl(t *testing.T) {
	page := newFakePage()
	sel := newFakeElement("select")
	sel.selectOK = true
	page.top.elements["#country"] = sel
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#country"), steps.Action{
		Kind: steps.KindSelect, Literal: "Germany", HasLiteral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Germany"}, sel.selected)
}

func TestSelectClimbsToNativeAncestor(t *testing.T) {
	page := newFakePage()
	sel := newFakeElement("select")
	sel.selectOK = true
	span := newFakeElement("span")
	span.parent = sel
	page.top.elements["#country span"] = span
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#country span"), steps.Action{
		Kind: steps.KindSelect, Literal: "Germany", HasLiteral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Germany"}, sel.selected)
}

func TestSelectOnComboboxClicksMatchingOption(t *testing.T) {
	page := newFakePage()
	combo := newFakeElement("div")
	combo.attrs["role"] = "combobox"

	optA := newFakeElement("li")
	optA.text = "Austria"
	optB := newFakeElement("li")
	optB.text = "Germany"
	combo.kids[optionQuery] = []browser.Element{optA, optB}

	page.top.elements["#country"] = combo
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#country"), steps.Action{
		Kind: steps.KindSelect, Literal: "Germany", HasLiteral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, combo.clicks, "combobox must be opened first")
	assert.Equal(t, 1, optB.clicks)
	assert.Zero(t, optA.clicks)
}

func TestSelectMatchesByValueAttribute(t *testing.T) {
	page := newFakePage()
	combo := newFakeElement("div")
	combo.attrs["role"] = "listbox"

	opt := newFakeElement("option")
	opt.text = "Deutschland"
	opt.attrs["value"] = "DE"
	combo.kids[optionQuery] = []browser.Element{opt}

	page.top.elements["#country"] = combo
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#country"), steps.Action{
		Kind: steps.KindSelect, Literal: "DE", HasLiteral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, opt.clicks)
}

func TestSelectFallsBackToDirectSelect(t *testing.T) {
	page := newFakePage()
	// A bare div: no native control, no role, no options anywhere. The
	// targeted path finds nothing to click a match in, then the direct
	// fallback select succeeds.
	el := newFakeElement("div")
	el.selectOK = true
	page.top.elements["#custom"] = el
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#custom"), steps.Action{
		Kind: steps.KindSelect, Literal: "Germany", HasLiteral: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Germany"}, el.selected)
}

func TestIsSelectable(t *testing.T) {
	ctx := context.Background()

	sel := newFakeElement("select")
	ok, err := IsSelectable(ctx, sel)
	require.NoError(t, err)
	assert.True(t, ok)

	combo := newFakeElement("div")
	combo.attrs["role"] = "combobox"
	ok, err = IsSelectable(ctx, combo)
	require.NoError(t, err)
	assert.True(t, ok)

	wrapper := newFakeElement("div")
	wrapper.kids[`select, [role=listbox], [role=combobox]`] = []browser.Element{newFakeElement("select")}
	ok, err = IsSelectable(ctx, wrapper)
	require.NoError(t, err)
	assert.True(t, ok)

	input := newFakeElement("input")
	input.attrs["type"] = "text"
	ok, err = IsSelectable(ctx, input)
	require.NoError(t, err)
	assert.False(t, ok, "a plain text input is not a dropdown")
}

// -- dialogs --

func TestAlertAccept(t *testing.T) {
	page := newFakePage()
	d := &fakeDialog{kind: "alert", message: "are you sure?"}
	btn := newFakeElement("button")
	btn.onClick = func() { page.openDialog(d) }
	page.top.elements["#delete"] = btn
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#delete"), steps.Action{
		Kind:  steps.KindAlert,
		Alert: steps.AlertSpec{Expect: steps.DialogAlert},
	})
	require.NoError(t, err)
	assert.True(t, d.accepted)
	assert.False(t, d.dismissed)
}

func TestAlertDismiss(t *testing.T) {
	page := newFakePage()
	d := &fakeDialog{kind: "confirm"}
	btn := newFakeElement("button")
	btn.onClick = func() { page.openDialog(d) }
	page.top.elements["#remove"] = btn
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#remove"), steps.Action{
		Kind:  steps.KindAlert,
		Alert: steps.AlertSpec{Expect: steps.DialogConfirm, Dismiss: true},
	})
	require.NoError(t, err)
	assert.True(t, d.dismissed)
}

func TestAlertWithoutExpectedKindAcceptsAnyDialog(t *testing.T) {
	page := newFakePage()
	d := &fakeDialog{kind: "confirm"}
	btn := newFakeElement("button")
	btn.onClick = func() { page.openDialog(d) }
	page.top.elements["#delete"] = btn
	ex := newTestExecutor(page)

	// A step that says "alert" without naming a kind takes whatever opens.
	err := ex.Execute(context.Background(), locator.Parse("#delete"), steps.Action{
		Kind: steps.KindAlert,
	})
	require.NoError(t, err)
	assert.True(t, d.accepted)
	assert.False(t, d.dismissed)
}

func TestAlertKindMismatch(t *testing.T) {
	page := newFakePage()
	d := &fakeDialog{kind: "confirm"}
	btn := newFakeElement("button")
	btn.onClick = func() { page.openDialog(d) }
	page.top.elements["#delete"] = btn
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#delete"), steps.Action{
		Kind:  steps.KindAlert,
		Alert: steps.AlertSpec{Expect: steps.DialogAlert},
	})
	var mismatch *MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "alert", mismatch.Want)
	assert.Equal(t, "confirm", mismatch.Got)
	assert.True(t, d.dismissed, "a mismatched dialog must still be answered")
}

func TestAlertPromptTypesText(t *testing.T) {
	page := newFakePage()
	d := &fakeDialog{kind: "prompt"}
	btn := newFakeElement("button")
	btn.onClick = func() { page.openDialog(d) }
	page.top.elements["#rename"] = btn
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#rename"), steps.Action{
		Kind:       steps.KindAlert,
		Literal:    "new-name",
		HasLiteral: true,
		Alert:      steps.AlertSpec{Expect: steps.DialogPrompt, TypeText: true},
	})
	require.NoError(t, err)
	assert.True(t, d.accepted)
	assert.Equal(t, "new-name", d.prompted)
}

func TestAlertTimesOutWhenNoDialogOpens(t *testing.T) {
	page := newFakePage()
	btn := newFakeElement("button")
	page.top.elements["#delete"] = btn
	ex := newTestExecutor(page)

	err := ex.Execute(context.Background(), locator.Parse("#delete"), steps.Action{
		Kind:  steps.KindAlert,
		Alert: steps.AlertSpec{Expect: steps.DialogAlert},
	})
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
}
