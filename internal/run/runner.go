// Package run orchestrates a full batch: scrape each scenario's net income
// from the tax calculator, produce a budget for it, render the report, and
// record the outcome.
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cediplan/internal/browser"
	"cediplan/internal/budget"
	"cediplan/internal/config"
	"cediplan/internal/extract"
	"cediplan/internal/report"
	"cediplan/internal/store"
)

const netIncomeLabel = "Net Income (take home)"

// TaxPage is the browser surface the runner drives. *browser.Session
// implements it; tests substitute a scripted page.
type TaxPage interface {
	Open(ctx context.Context, url string) error
	Close() error
	SetField(ctx context.Context, kind browser.FieldKind, value string) error
	Recalculate(ctx context.Context) error
	VisibleText(ctx context.Context) (string, error)
	Markup(ctx context.Context) (string, error)
}

// Renderer writes one budget report to disk.
type Renderer interface {
	Render(b report.Budget, path string) error
}

// Recorder persists run outcomes. May be nil; recording failures are logged
// and never abort a run.
type Recorder interface {
	BeginRun() (string, error)
	SaveResult(runID string, r store.ResultRecord) error
	FinishRun(runID string) error
}

// scenarioNet is the scrape outcome for one scenario.
type scenarioNet struct {
	scenario config.Scenario
	net      decimal.Decimal
	resolved bool
}

// Runner executes the scrape-budget-report pipeline.
type Runner struct {
	cfg      *config.Config
	page     TaxPage
	producer *budget.Producer
	renderer Renderer
	recorder Recorder
	log      *zap.Logger

	// extraction timing overrides; zero keeps the engine defaults
	scrapePause  time.Duration
	scrapeSettle time.Duration
}

func New(cfg *config.Config, page TaxPage, producer *budget.Producer, renderer Renderer, recorder Recorder, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		page:     page,
		producer: producer,
		renderer: renderer,
		recorder: recorder,
		log:      log,
	}
}

// Run processes every configured scenario. Scrape problems degrade the
// affected scenario to a zero-income placeholder; a report that cannot be
// written aborts the run.
func (r *Runner) Run(ctx context.Context) error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o750); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	var runID string
	if r.recorder != nil {
		id, err := r.recorder.BeginRun()
		if err != nil {
			r.log.Warn("history unavailable, continuing without it", zap.Error(err))
		} else {
			runID = id
		}
	}

	nets, err := r.scrapeAll(ctx)
	if err != nil {
		return err
	}

	for _, sn := range nets {
		if err := r.reportScenario(ctx, runID, sn); err != nil {
			return err
		}
	}

	if r.recorder != nil && runID != "" {
		if err := r.recorder.FinishRun(runID); err != nil {
			r.log.Warn("finishing run record", zap.Error(err))
		}
	}
	return nil
}

// scrapeAll opens the calculator once and walks every scenario through it.
// The browser session is released before any budget or report work starts.
func (r *Runner) scrapeAll(ctx context.Context) ([]scenarioNet, error) {
	// Close is registered before Open: a partially opened session must still
	// be released when navigation fails.
	defer func() {
		if err := r.page.Close(); err != nil {
			r.log.Warn("closing browser session", zap.Error(err))
		}
	}()
	if err := r.page.Open(ctx, r.cfg.CalculatorURL); err != nil {
		return nil, fmt.Errorf("opening calculator: %w", err)
	}

	engine := extract.NewEngine(r.page, r.log, r.dumpDiagnostics)
	engine.SetTiming(r.scrapePause, r.scrapeSettle)

	nets := make([]scenarioNet, 0, len(r.cfg.Scenarios))
	for _, sc := range r.cfg.Scenarios {
		nets = append(nets, r.scrapeScenario(ctx, engine, sc))
	}
	return nets, nil
}

func (r *Runner) scrapeScenario(ctx context.Context, engine *extract.Engine, sc config.Scenario) scenarioNet {
	log := r.log.With(zap.String("scenario", sc.Name))

	fields := []struct {
		kind  browser.FieldKind
		value float64
	}{
		{browser.FieldSalary, sc.Salary},
		{browser.FieldAllowances, sc.Allowances},
		{browser.FieldRelief, sc.Relief},
	}
	for _, f := range fields {
		if err := r.page.SetField(ctx, f.kind, formatInput(f.value)); err != nil {
			log.Warn("field delivery failed, using zero-income placeholder",
				zap.String("field", string(f.kind)), zap.Error(err))
			r.dumpCurrentPage(ctx, sc.Name)
			return scenarioNet{scenario: sc}
		}
	}

	if err := r.page.Recalculate(ctx); err != nil {
		log.Debug("recalculate trigger failed, relying on input events", zap.Error(err))
	}

	res := engine.NetIncome(ctx, sc.Name)
	if !res.Resolved {
		log.Warn("net income not resolved, using zero-income placeholder",
			zap.Int("attempts", res.Attempts))
		return scenarioNet{scenario: sc}
	}

	log.Info("net income resolved",
		zap.String("net", res.Value.StringFixed(2)),
		zap.Int("attempts", res.Attempts))
	return scenarioNet{scenario: sc, net: res.Value, resolved: true}
}

func (r *Runner) reportScenario(ctx context.Context, runID string, sn scenarioNet) error {
	items, note := r.producer.Produce(ctx, sn.net)

	b := report.Budget{
		ScenarioName: sn.scenario.Name,
		Salary:       decimal.NewFromFloat(sn.scenario.Salary),
		Allowances:   decimal.NewFromFloat(sn.scenario.Allowances),
		Relief:       decimal.NewFromFloat(sn.scenario.Relief),
		NetIncome:    sn.net,
		Resolved:     sn.resolved,
		Items:        items,
		Note:         note,
	}

	path := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("budget_%s.pdf", sn.scenario.Name))
	if err := r.renderer.Render(b, path); err != nil {
		return fmt.Errorf("rendering report for %s: %w", sn.scenario.Name, err)
	}
	r.log.Info("report written", zap.String("scenario", sn.scenario.Name), zap.String("path", path))

	if r.recorder != nil && runID != "" {
		rec := store.ResultRecord{
			Scenario:   sn.scenario.Name,
			Salary:     b.Salary,
			Allowances: b.Allowances,
			Relief:     b.Relief,
			NetIncome:  sn.net,
			Resolved:   sn.resolved,
			Note:       note,
			ReportPath: path,
		}
		if err := r.recorder.SaveResult(runID, rec); err != nil {
			r.log.Warn("recording scenario result", zap.String("scenario", sn.scenario.Name), zap.Error(err))
		}
	}
	return nil
}

// dumpDiagnostics writes the page snapshot captured by the extraction engine
// after its final failed attempt.
func (r *Runner) dumpDiagnostics(label, text, markup string) {
	path := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("debug_%s.txt", label))
	body := fmt.Sprintf("scenario: %s\n\n--- visible text ---\n%s\n\n--- markup ---\n%s\n", label, text, markup)
	if err := os.WriteFile(path, []byte(body), 0o640); err != nil {
		r.log.Warn("writing diagnostic dump", zap.String("path", path), zap.Error(err))
		return
	}
	r.log.Info("diagnostic dump written", zap.String("path", path))
}

// dumpCurrentPage captures a best-effort snapshot when a failure happens
// outside the extraction engine.
func (r *Runner) dumpCurrentPage(ctx context.Context, label string) {
	text, err := r.page.VisibleText(ctx)
	if err != nil {
		text = fmt.Sprintf("<unavailable: %v>", err)
	}
	markup, err := r.page.Markup(ctx)
	if err != nil {
		markup = fmt.Sprintf("<unavailable: %v>", err)
	}
	r.dumpDiagnostics(label, text, markup)
}

// formatInput renders a scenario amount the way a person would type it.
func formatInput(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
