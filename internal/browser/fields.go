package browser

import (
	"context"
	"fmt"
	"time"
)

// FieldKind names a logical input on the tax calculator form.
type FieldKind string

const (
	FieldSalary     FieldKind = "salary"
	FieldAllowances FieldKind = "allowances"
	FieldRelief     FieldKind = "relief"
)

// Candidate is one way of locating a field. Selector is a CSS selector;
// LabelText locates the input associated with a visible label instead.
type Candidate struct {
	Selector  string
	LabelText string
}

// fieldCandidates lists locators per field, most reliable first. The page is
// a React app whose markup shifts between deploys, so every field gets a
// placeholder, aria-label, name, test-id, and label-association fallback.
var fieldCandidates = map[FieldKind][]Candidate{
	FieldSalary: {
		{Selector: `input[placeholder*="Monthly basic income" i]`},
		{Selector: `input[aria-label*="Monthly basic income" i]`},
		{Selector: `input[name="basicIncome"]`},
		{Selector: `[data-testid="basic-income"]`},
		{LabelText: "Monthly basic income"},
	},
	FieldAllowances: {
		{Selector: `input[placeholder*="Monthly allowances" i]`},
		{Selector: `input[aria-label*="Monthly allowances" i]`},
		{Selector: `input[name="allowances"]`},
		{Selector: `[data-testid="monthly-allowances"]`},
		{LabelText: "Monthly allowances"},
	},
	FieldRelief: {
		{Selector: `input[placeholder*="Tax relief" i]`},
		{Selector: `input[aria-label*="Tax relief" i]`},
		{Selector: `input[name="taxRelief"]`},
		{Selector: `[data-testid="tax-relief"]`},
		{LabelText: "Tax relief"},
	},
}

// notifyEvents are fired after a successful fill. React-style forms recompute
// derived state on these signals, not on direct value assignment.
var notifyEvents = []string{"input", "change", "blur"}

// Sink is the write side of the page collaborator.
type Sink interface {
	// SetValue fills the field located by c. ok == false means the candidate
	// matched no element; err reports a candidate that exists but failed.
	SetValue(ctx context.Context, c Candidate, value string) (ok bool, err error)
	Notify(ctx context.Context, c Candidate, event string) error
}

// DeliveryError reports that no candidate could fill a required field. An
// unfilled field corrupts the whole scenario, so this is never ignored.
type DeliveryError struct {
	Field   FieldKind
	LastErr error
}

func (e *DeliveryError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("could not set field %q: %v", e.Field, e.LastErr)
	}
	return fmt.Sprintf("could not set field %q: no candidate selector matched", e.Field)
}

func (e *DeliveryError) Unwrap() error { return e.LastErr }

// The form fields render after hydration, so a full candidate miss is not
// final until the wait window closes. The window matches the per-candidate
// visibility wait the page needs on a cold load.
var (
	deliverWait = 4 * time.Second
	deliverPoll = 250 * time.Millisecond
)

// Deliver writes value into the named field, trying candidates in order and
// stopping at the first that exists and accepts the value. When no candidate
// matches, the whole list is re-scanned until deliverWait elapses.
func Deliver(ctx context.Context, sink Sink, kind FieldKind, value string) error {
	candidates, ok := fieldCandidates[kind]
	if !ok {
		return &DeliveryError{Field: kind}
	}

	deadline := time.Now().Add(deliverWait)
	var lastErr error
	for {
		for _, c := range candidates {
			ok, err := sink.SetValue(ctx, c, value)
			if err != nil {
				lastErr = err
				continue
			}
			if !ok {
				continue
			}
			for _, ev := range notifyEvents {
				if err := sink.Notify(ctx, c, ev); err != nil {
					// Event dispatch is best-effort; the value is already set.
					lastErr = err
				}
			}
			return nil
		}

		if !time.Now().Before(deadline) {
			return &DeliveryError{Field: kind, LastErr: lastErr}
		}
		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return &DeliveryError{Field: kind, LastErr: lastErr}
		case <-time.After(deliverPoll):
		}
	}
}
