// File: internal/executor/dropdown.go
package executor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kestrelqa/kestrel/internal/browser"
)

// controlKind is what the dropdown discovery walk found.
type controlKind int

const (
	controlNative controlKind = iota // a <select>
	controlListish                   // listbox/combobox role or option-bearing container
	controlUnknown
)

const optionQuery = `option, [role=option], li`

// ancestorWalkLimit bounds the climb from the resolved element towards the
// control that actually owns the dropdown behavior.
const ancestorWalkLimit = 8

// performSelect drives a dropdown. The resolved element is often an inner
// span or the visible "trigger", so the interactive control is discovered by
// walking up from it. A failure in the targeted path falls back once to a
// direct select on the originally resolved element.
func (e *Executor) performSelect(ctx context.Context, el browser.Element, literal string) error {
	err := e.selectTargeted(ctx, el, literal)
	if err == nil {
		return nil
	}

	e.logger.Info("Targeted dropdown selection failed, falling back to direct select",
		zap.String("option", literal),
		zap.Error(err),
	)
	ok, fbErr := el.SelectOption(ctx, literal)
	if fbErr == nil && ok {
		return nil
	}
	return fmt.Errorf("dropdown selection of %q failed: %w", literal, err)
}

func (e *Executor) selectTargeted(ctx context.Context, el browser.Element, literal string) error {
	ctrl, kind, err := e.findSelectControl(ctx, el)
	if err != nil {
		return err
	}

	switch kind {
	case controlNative:
		ok, err := ctrl.SelectOption(ctx, literal)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no option labelled %q in the select control", literal)
		}
		return nil

	case controlListish, controlUnknown:
		// Open the control, give the options a moment to render, then click
		// the matching option.
		if err := ctrl.Click(ctx); err != nil {
			return fmt.Errorf("failed to open dropdown: %w", err)
		}
		if err := sleep(ctx, e.cfg.SettleDelay); err != nil {
			return err
		}
		waitCtx, cancel := context.WithTimeout(ctx, e.cfg.DropdownTimeout)
		defer cancel()
		option, err := e.findOption(waitCtx, ctrl, literal)
		if err != nil {
			return err
		}
		return option.Click(ctx)

	default:
		return fmt.Errorf("unhandled dropdown control kind %d", kind)
	}
}

// findSelectControl locates the interactive control governing the element:
// the element itself when it already is one, otherwise the nearest ancestor
// that is a native select, carries a listbox/combobox role, or contains
// option-like descendants.
func (e *Executor) findSelectControl(ctx context.Context, el browser.Element) (browser.Element, controlKind, error) {
	if kind, ok, err := classifyControl(ctx, el); err != nil {
		return nil, controlUnknown, err
	} else if ok {
		return el, kind, nil
	}

	current := el
	for i := 0; i < ancestorWalkLimit; i++ {
		parent, ok, err := current.Parent(ctx)
		if err != nil {
			return nil, controlUnknown, err
		}
		if !ok {
			break
		}
		if kind, matched, err := classifyControl(ctx, parent); err != nil {
			return nil, controlUnknown, err
		} else if matched {
			return parent, kind, nil
		}
		current = parent
	}

	// Nothing recognizable in the chain; treat the original element as an
	// unknown control and let the click-then-match path try its best.
	return el, controlUnknown, nil
}

func classifyControl(ctx context.Context, el browser.Element) (controlKind, bool, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return controlUnknown, false, err
	}
	if tag == "select" {
		return controlNative, true, nil
	}

	role, hasRole, err := el.Attribute(ctx, "role")
	if err != nil {
		return controlUnknown, false, err
	}
	if hasRole {
		switch strings.ToLower(role) {
		case "listbox", "combobox":
			return controlListish, true, nil
		}
	}

	options, err := el.Descendants(ctx, optionQuery)
	if err != nil {
		return controlUnknown, false, err
	}
	if len(options) > 0 {
		return controlListish, true, nil
	}
	return controlUnknown, false, nil
}

// findOption returns the first rendered option whose text equals the wanted
// label, else the first whose text contains it, else the first whose value
// attribute equals it.
func (e *Executor) findOption(ctx context.Context, ctrl browser.Element, wanted string) (browser.Element, error) {
	options, err := ctrl.Descendants(ctx, optionQuery)
	if err != nil {
		return nil, err
	}

	target := strings.TrimSpace(wanted)
	var contains browser.Element
	var byValue browser.Element
	for _, opt := range options {
		text, err := opt.Text(ctx)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == target {
			return opt, nil
		}
		if contains == nil && text != "" && strings.Contains(text, target) {
			contains = opt
		}
		if byValue == nil {
			if val, ok, err := opt.Attribute(ctx, "value"); err == nil && ok && val == target {
				byValue = opt
			}
		}
	}
	if contains != nil {
		return contains, nil
	}
	if byValue != nil {
		return byValue, nil
	}
	return nil, fmt.Errorf("no rendered option matches %q", wanted)
}

// IsSelectable is the dropdown validity predicate: the element, or one of
// its descendants, must be a native selection control or carry a
// listbox/combobox role. A plain text input fails it.
func IsSelectable(ctx context.Context, el browser.Element) (bool, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return false, err
	}
	if tag == "select" {
		return true, nil
	}

	role, ok, err := el.Attribute(ctx, "role")
	if err != nil {
		return false, err
	}
	if ok {
		switch strings.ToLower(role) {
		case "listbox", "combobox":
			return true, nil
		}
	}

	nested, err := el.Descendants(ctx, `select, [role=listbox], [role=combobox]`)
	if err != nil {
		return false, err
	}
	return len(nested) > 0, nil
}
