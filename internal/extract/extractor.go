// Package extract resolves a net-income figure from the rendered text of the
// tax calculator page. The page recomputes asynchronously after input changes,
// so extraction runs as a bounded settling-retry loop over two recognition
// passes: label-anchored patterns first, a whole-page currency scan last.
package extract

import (
	"context"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cediplan/internal/currency"
)

// PageTextProvider is the read side of the page collaborator.
type PageTextProvider interface {
	VisibleText(ctx context.Context) (string, error)
	Markup(ctx context.Context) (string, error)
}

// DumpFunc receives the raw page text and markup when extraction exhausts all
// attempts. It is an observability hook, never a retry trigger.
type DumpFunc func(label, text, markup string)

// Result is the outcome of one extraction. Resolved == false implies Value is
// zero; callers must not treat that zero as a confirmed income.
type Result struct {
	Value    decimal.Decimal
	Resolved bool
	Attempts int
}

const (
	maxAttempts  = 4
	settlePause  = 350 * time.Millisecond
	settleWindow = 20 * time.Second
	currencyPart = `(?:GH\s*[SCc]|GH\s*[₵¢])?\s*([\d,]+(?:\.\d{1,2})?)`
)

// labelPatterns anchor the amount on a net-income label, most specific first.
// Pages show several money-like numbers (gross, taxable, net); precedence is
// the tie-break that keeps gross income from winning over net.
var labelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Net\s*Income\s*\(take\s*home\)[^\d]*` + currencyPart),
	regexp.MustCompile(`(?i)Net\s*Income[^\d]*` + currencyPart),
	regexp.MustCompile(`(?i)Net\s*Salary[^\d]*` + currencyPart),
	regexp.MustCompile(`(?i)Take\s*home[^\d]*` + currencyPart),
}

// pagePattern is the last-resort whole-page scan for anything currency-shaped.
var pagePattern = regexp.MustCompile(`(?i)` + currencyPart)

// settlePattern detects that the results section has rendered at all. The
// calculator recomputes asynchronously and a cold load can take seconds
// before any net-income label appears.
var settlePattern = regexp.MustCompile(`(?i)net\s*income|net\s*salary|take\s*home`)

// Engine runs the extraction policy against a PageTextProvider.
type Engine struct {
	provider PageTextProvider
	log      *zap.Logger
	dump     DumpFunc
	pause    time.Duration
	settle   time.Duration
}

// NewEngine builds an extraction engine. dump may be nil.
func NewEngine(provider PageTextProvider, log *zap.Logger, dump DumpFunc) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{provider: provider, log: log, dump: dump, pause: settlePause, settle: settleWindow}
}

// SetTiming overrides the inter-attempt pause and the render-gate window.
// Non-positive values keep the defaults.
func (e *Engine) SetTiming(pause, settle time.Duration) {
	if pause > 0 {
		e.pause = pause
	}
	if settle > 0 {
		e.settle = settle
	}
}

// NetIncome extracts a strictly positive net income. It first waits, bounded,
// for the results section to render at all, then retries the recognition
// passes up to four times while the numbers settle. label names the scenario
// for the diagnostic dump.
func (e *Engine) NetIncome(ctx context.Context, label string) Result {
	text, err := e.awaitLabels(ctx)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			text, err = e.visibleText(ctx)
		}
		if err != nil {
			e.log.Debug("page text unavailable",
				zap.Int("attempt", attempt), zap.Error(err))
		} else if amt, ok := ScanText(text); ok {
			e.log.Debug("net income resolved",
				zap.String("scenario", label),
				zap.Int("attempt", attempt),
				zap.String("amount", amt.String()))
			return Result{Value: amt, Resolved: true, Attempts: attempt}
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return Result{Attempts: attempt}
			case <-time.After(e.pause):
			}
		}
	}

	e.log.Warn("net income unresolved after all attempts",
		zap.String("scenario", label), zap.Int("attempts", maxAttempts))
	e.dumpPage(ctx, label)
	return Result{Attempts: maxAttempts}
}

// ScanText runs the recognition passes over one text snapshot and reports the
// first strictly positive amount, if any.
func ScanText(text string) (decimal.Decimal, bool) {
	for _, pat := range labelPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			if amt, ok := currency.ParseAmount(m[1]); ok && amt.IsPositive() {
				return amt, true
			}
		}
	}
	if m := pagePattern.FindStringSubmatch(text); m != nil {
		if amt, ok := currency.ParseAmount(m[1]); ok && amt.IsPositive() {
			return amt, true
		}
	}
	return decimal.Zero, false
}

// awaitLabels polls the page until a net-income label is present or the
// settle window closes, returning the last text read so the first retry
// attempt reuses it instead of re-reading.
func (e *Engine) awaitLabels(ctx context.Context) (string, error) {
	deadline := time.Now().Add(e.settle)
	for {
		text, err := e.visibleText(ctx)
		if err == nil && settlePattern.MatchString(text) {
			return text, nil
		}
		if !time.Now().Before(deadline) {
			return text, err
		}
		select {
		case <-ctx.Done():
			return text, ctx.Err()
		case <-time.After(e.pause):
		}
	}
}

func (e *Engine) visibleText(ctx context.Context) (string, error) {
	text, err := e.provider.VisibleText(ctx)
	if err != nil || text == "" {
		// Some pages block innerText reads mid-animation; raw markup still
		// carries the rendered numbers.
		markup, merr := e.provider.Markup(ctx)
		if merr == nil && markup != "" {
			return markup, nil
		}
		return "", err
	}
	return text, nil
}

func (e *Engine) dumpPage(ctx context.Context, label string) {
	if e.dump == nil {
		return
	}
	text, _ := e.provider.VisibleText(ctx)
	markup, _ := e.provider.Markup(ctx)
	e.dump(label, text, markup)
}
