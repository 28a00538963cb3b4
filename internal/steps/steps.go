// File: internal/steps/steps.go
// Description: Classifies a free-text test step into a closed set of action
// kinds plus an optional quoted literal. Classification is keyword-based and
// order-sensitive: dialog steps must win over the click that triggers them,
// and "select ... dropdown" must win over a plain click on the same words.
package steps

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the closed set of actions a step can classify to.
type Kind int

const (
	KindNavigate Kind = iota
	KindAlert
	KindSelect
	KindType
	KindHover
	KindClick
)

func (k Kind) String() string {
	switch k {
	case KindNavigate:
		return "navigate"
	case KindAlert:
		return "alert"
	case KindSelect:
		return "select"
	case KindType:
		return "type"
	case KindHover:
		return "hover"
	case KindClick:
		return "click"
	default:
		return "unknown"
	}
}

// DialogKind is the expected native dialog flavor for alert steps.
type DialogKind string

const (
	DialogAlert   DialogKind = "alert"
	DialogConfirm DialogKind = "confirm"
	DialogPrompt  DialogKind = "prompt"
)

// AlertSpec carries the dialog-handling parameters of an alert step.
type AlertSpec struct {
	// Expect is the dialog kind the step names. Empty means any kind.
	Expect DialogKind
	// Dismiss cancels the dialog instead of accepting it.
	Dismiss bool
	// TypeText accepts a prompt with the step literal as input.
	TypeText bool
}

// Action is the classified form of one step.
type Action struct {
	Kind       Kind
	Literal    string
	HasLiteral bool
	// Login marks a click step whose text signals a login, which gets an
	// implicit post-login landmark wait after the click.
	Login bool
	Alert AlertSpec
}

// UnsupportedActionError reports step text that matched no known action.
type UnsupportedActionError struct {
	Step string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported step: no known action matches %q", e.Step)
}

// MissingLiteralError reports a value-bearing action with no quoted value.
type MissingLiteralError struct {
	Step string
	Kind Kind
}

func (e *MissingLiteralError) Error() string {
	return fmt.Sprintf("step %q classified as %s but contains no quoted value", e.Step, e.Kind)
}

var (
	quoteRe = regexp.MustCompile(`"([^"]*)"|'([^']*)'`)
	urlRe   = regexp.MustCompile(`^https?://`)
)

var (
	selectVerbs = []string{"select", "choose", "pick"}
	typeVerbs   = []string{"type", "enter", "fill", "input", "write"}
	clickVerbs  = []string{"click", "press", "tap", "push"}
	loginWords  = []string{"login", "log in", "sign in"}
)

// Literal returns the first double- or single-quoted substring of text.
func Literal(text string) (string, bool) {
	m := quoteRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if strings.HasPrefix(m[0], `"`) {
		return m[1], true
	}
	return m[2], true
}

// Classify maps raw step text onto an Action. Order matters:
//
//  1. a quoted URL is a navigation regardless of surrounding words;
//  2. "alert" wins over everything else so the dialog handler is in place
//     before the triggering click or keystroke fires;
//  3. a selection verb needs the "dropdown" keyword, otherwise it falls
//     through to a plain click;
//  4. input verbs, then hover, then click verbs;
//  5. anything else is unsupported.
func Classify(text string) (Action, error) {
	lower := strings.ToLower(text)
	lit, hasLit := Literal(text)

	if hasLit && urlRe.MatchString(strings.TrimSpace(lit)) {
		return Action{Kind: KindNavigate, Literal: strings.TrimSpace(lit), HasLiteral: true}, nil
	}

	if strings.Contains(lower, "alert") {
		a := Action{Kind: KindAlert, Literal: lit, HasLiteral: hasLit, Alert: alertSpec(lower, hasLit)}
		if a.Alert.TypeText && !hasLit {
			return Action{}, &MissingLiteralError{Step: text, Kind: KindAlert}
		}
		return a, nil
	}

	if containsAny(lower, selectVerbs) && strings.Contains(lower, "dropdown") {
		if !hasLit {
			return Action{}, &MissingLiteralError{Step: text, Kind: KindSelect}
		}
		return Action{Kind: KindSelect, Literal: lit, HasLiteral: true}, nil
	}

	if containsAny(lower, typeVerbs) {
		if !hasLit {
			return Action{}, &MissingLiteralError{Step: text, Kind: KindType}
		}
		return Action{Kind: KindType, Literal: lit, HasLiteral: true}, nil
	}

	if strings.Contains(lower, "hover") {
		return Action{Kind: KindHover, Literal: lit, HasLiteral: hasLit}, nil
	}

	if containsAny(lower, clickVerbs) || containsAny(lower, selectVerbs) {
		return Action{
			Kind:       KindClick,
			Literal:    lit,
			HasLiteral: hasLit,
			Login:      containsAny(lower, loginWords),
		}, nil
	}

	return Action{}, &UnsupportedActionError{Step: text}
}

// alertSpec derives the dialog expectation from the step wording. A step that
// names "prompt" or "confirm" pins the dialog kind; plain "alert" accepts any
// alert-family dialog. "dismiss"/"cancel" flips the dispatch; an input verb
// plus literal types into a prompt before accepting.
func alertSpec(lower string, hasLit bool) AlertSpec {
	spec := AlertSpec{}
	if strings.Contains(lower, "prompt") {
		spec.Expect = DialogPrompt
	} else if strings.Contains(lower, "confirm") {
		spec.Expect = DialogConfirm
	}
	if strings.Contains(lower, "dismiss") || strings.Contains(lower, "cancel") {
		spec.Dismiss = true
	}
	if hasLit && containsAny(lower, typeVerbs) {
		spec.TypeText = true
		spec.Expect = DialogPrompt
	}
	return spec
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
