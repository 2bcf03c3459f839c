// Package browser owns the single Chrome session used for a run and adapts
// the tax calculator page into the narrow collaborator interfaces the core
// works against: a field sink and a page text provider.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	Headless            bool
	NavigationTimeoutMs int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		NavigationTimeoutMs: 60000,
	}
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 60 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Session is the sole owner of the browser for the lifetime of a run.
type Session struct {
	cfg     Config
	log     *zap.Logger
	browser *rod.Browser
	page    *rod.Page
}

// NewSession creates an unstarted session.
func NewSession(cfg Config, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{cfg: cfg, log: log}
}

// Open launches Chrome, connects, and navigates to url. Navigation happens
// once per run; scenarios reuse the same page.
func (s *Session) Open(ctx context.Context, url string) error {
	controlURL, err := launcher.New().Headless(s.cfg.Headless).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		s.browser = nil
		return fmt.Errorf("create page: %w", err)
	}
	s.page = page

	if err := page.Timeout(s.cfg.NavigationTimeout()).Navigate(url); err != nil {
		// The launched Chrome must not outlive a failed open.
		_ = s.Close()
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.Timeout(s.cfg.NavigationTimeout()).WaitLoad(); err != nil {
		s.log.Debug("wait load", zap.Error(err))
	}
	// Let the SPA hydrate before the first scenario touches the form.
	time.Sleep(600 * time.Millisecond)

	s.dismissBanners(ctx)
	s.log.Info("calculator page ready", zap.String("url", url), zap.Bool("headless", s.cfg.Headless))
	return nil
}

// Close shuts the page and browser down. Safe to call more than once.
func (s *Session) Close() error {
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		err := s.browser.Close()
		s.browser = nil
		return err
	}
	return nil
}

// SetField delivers a value into the named form field.
func (s *Session) SetField(ctx context.Context, kind FieldKind, value string) error {
	return Deliver(ctx, &rodSink{page: s.page}, kind, value)
}

// Recalculate clicks the Calculate/Recalculate button if the page has one.
// Some deploys recompute on input events alone, so a missing button is fine.
func (s *Session) Recalculate(ctx context.Context) error {
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const buttons = Array.from(document.querySelectorAll('button, input[type="submit"]'));
			const btn = buttons.find(b => /calculate/i.test(b.textContent || b.value || ''));
			if (!btn) return false;
			btn.click();
			return true;
		}
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return err
	}
	if res == nil || !res.Value.Bool() {
		s.log.Debug("no calculate button found; relying on input events")
	}
	return nil
}

// VisibleText returns the rendered text of the page body.
func (s *Session) VisibleText(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           `() => document.body ? document.body.innerText : ""`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", err
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

// Markup returns the full page HTML.
func (s *Session) Markup(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// dismissBanners clicks through common consent buttons, best effort.
func (s *Session) dismissBanners(ctx context.Context) {
	_, _ = s.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const wanted = [/accept/i, /i agree/i, /got it/i, /^ok$/i];
			for (const b of document.querySelectorAll('button')) {
				const text = (b.textContent || '').trim();
				if (wanted.some(re => re.test(text))) {
					b.click();
				}
			}
		}
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
}

// rodSink writes values into the live page.
type rodSink struct {
	page *rod.Page
}

// findLabelInputJS resolves the input associated with a visible label text,
// via htmlFor, nesting, or a sibling within the label's parent.
const findLabelInputJS = `
(text) => {
	const needle = text.toLowerCase();
	for (const lab of document.querySelectorAll('label')) {
		if (!(lab.textContent || '').toLowerCase().includes(needle)) continue;
		if (lab.htmlFor) {
			const el = document.getElementById(lab.htmlFor);
			if (el) return el;
		}
		const nested = lab.querySelector('input');
		if (nested) return nested;
		if (lab.parentElement) {
			const sibling = lab.parentElement.querySelector('input');
			if (sibling) return sibling;
		}
	}
	return null;
}
`

func (r *rodSink) locate(ctx context.Context, c Candidate) (*rod.Element, bool, error) {
	page := r.page.Context(ctx)
	if c.Selector != "" {
		has, el, err := page.Has(c.Selector)
		if err != nil || !has {
			return nil, false, err
		}
		return el, true, nil
	}

	el, err := page.Sleeper(rod.NotFoundSleeper).ElementByJS(&rod.EvalOptions{
		JS:     findLabelInputJS,
		JSArgs: []interface{}{c.LabelText},
	})
	if err != nil {
		// Not found is a candidate miss, not a failure.
		return nil, false, nil
	}
	return el, true, nil
}

func (r *rodSink) SetValue(ctx context.Context, c Candidate, value string) (bool, error) {
	el, ok, err := r.locate(ctx, c)
	if err != nil || !ok {
		return false, err
	}

	if err := el.SelectAllText(); err != nil {
		return false, fmt.Errorf("select field text: %w", err)
	}
	if err := el.Input(value); err != nil {
		return false, fmt.Errorf("type into field: %w", err)
	}
	if err := el.Type(input.Enter); err != nil {
		return false, fmt.Errorf("confirm field: %w", err)
	}
	return true, nil
}

func (r *rodSink) Notify(ctx context.Context, c Candidate, event string) error {
	_, err := r.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `
		(sel, labelText, kind) => {
			let el = null;
			if (sel) {
				el = document.querySelector(sel);
			} else {
				el = (` + findLabelInputJS + `)(labelText);
			}
			if (!el) return false;
			el.dispatchEvent(new Event(kind, { bubbles: true }));
			return true;
		}
		`,
		JSArgs:       []interface{}{c.Selector, c.LabelText, event},
		ByValue:      true,
		AwaitPromise: true,
	})
	return err
}
