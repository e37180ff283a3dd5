// File: internal/engine/driver.go
package engine

import (
	"context"
	"time"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
)

// WaitState is the awaited condition of a selector.
type WaitState string

const (
	WaitVisible WaitState = "visible"
	WaitExists  WaitState = "exists"
	WaitHidden  WaitState = "hidden"
)

// ParseWaitState maps a step's state string onto a WaitState, defaulting to visible.
func ParseWaitState(s string) WaitState {
	switch WaitState(s) {
	case WaitExists:
		return WaitExists
	case WaitHidden:
		return WaitHidden
	default:
		return WaitVisible
	}
}

// PageDriver is the capability surface the interpreter needs from a live page.
// The production implementation drives a tab over CDP; tests substitute a fake.
type PageDriver interface {
	// Navigate points the document at url. Not awaited further: navigation tears
	// down the page-side execution context.
	Navigate(ctx context.Context, url string) error

	// Click waits up to readyTimeout for the target to be visible and enabled,
	// then issues a trusted activation.
	Click(ctx context.Context, selector string, readyTimeout time.Duration) error

	// Fill writes value into the element behind selector, dispatching on the
	// resolved element's kind (select, checkbox, radio, contenteditable, input).
	Fill(ctx context.Context, selector, value string) error

	// SetChecked toggles a checkbox or radio input.
	SetChecked(ctx context.Context, selector string, checked bool) error

	// WaitFor polls selector for state on an animation-frame cadence until timeout.
	// Returns whether the state was reached; expiry is not an error.
	WaitFor(ctx context.Context, selector string, state WaitState, timeout time.Duration) (bool, error)

	// CheckState reports whether selector currently satisfies state.
	CheckState(ctx context.Context, selector string, state WaitState) (bool, error)

	// Extract reads content from the element(s) behind spec.
	Extract(ctx context.Context, spec schemas.ExtractSpec) (string, error)

	// Scroll brings the target smoothly into view.
	Scroll(ctx context.Context, selector string) error

	// Evaluate runs an inline script body on the page.
	Evaluate(ctx context.Context, script string) error

	// SubmitEnter dispatches a full Enter key sequence on the element, or submits
	// its enclosing form natively when it has one.
	SubmitEnter(ctx context.Context, selector string) error

	// SubmitClick activates a submit control: selector when non-empty, otherwise a
	// [type=submit] descendant of container, otherwise container itself.
	SubmitClick(ctx context.Context, selector, container string) error

	// Sleep pauses for d without holding the page.
	Sleep(ctx context.Context, d time.Duration) error
}

// ConfirmationGate asks the user to approve a destructive tool before it runs.
type ConfirmationGate interface {
	Confirm(ctx context.Context, toolName, message string) (bool, error)
}
