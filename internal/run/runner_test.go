package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cediplan/internal/browser"
	"cediplan/internal/budget"
	"cediplan/internal/config"
	"cediplan/internal/report"
	"cediplan/internal/store"
)

// fakePage scripts the calculator: the visible text is selected by the most
// recent salary value typed into it.
type fakePage struct {
	openErr    error
	texts      map[string]string
	failSalary map[string]bool

	current string
	opened  bool
	closed  bool
}

func (p *fakePage) Open(_ context.Context, _ string) error {
	if p.openErr != nil {
		return p.openErr
	}
	p.opened = true
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func (p *fakePage) SetField(_ context.Context, kind browser.FieldKind, value string) error {
	if kind == browser.FieldSalary {
		p.current = value
		if p.failSalary[value] {
			return errors.New("no input matched any candidate")
		}
	}
	return nil
}

func (p *fakePage) Recalculate(context.Context) error { return nil }

func (p *fakePage) VisibleText(context.Context) (string, error) {
	return p.texts[p.current], nil
}

func (p *fakePage) Markup(context.Context) (string, error) {
	return "<html>" + p.texts[p.current] + "</html>", nil
}

type fakeRenderer struct {
	budgets []report.Budget
	paths   []string
	err     error
}

func (r *fakeRenderer) Render(b report.Budget, path string) error {
	if r.err != nil {
		return r.err
	}
	r.budgets = append(r.budgets, b)
	r.paths = append(r.paths, path)
	return nil
}

type fakeRecorder struct {
	beginErr error
	saveErr  error
	records  []store.ResultRecord
	finished bool
}

func (r *fakeRecorder) BeginRun() (string, error) {
	if r.beginErr != nil {
		return "", r.beginErr
	}
	return "run-1", nil
}

func (r *fakeRecorder) SaveResult(_ string, rec store.ResultRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeRecorder) FinishRun(string) error {
	r.finished = true
	return nil
}

func testConfig(t *testing.T, scenarios ...config.Scenario) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Scenarios = scenarios
	return cfg
}

func newRunner(cfg *config.Config, page TaxPage, renderer Renderer, recorder Recorder) *Runner {
	producer := budget.NewProducer(nil, zap.NewNop())
	r := New(cfg, page, producer, renderer, recorder, zap.NewNop())
	// The fake page answers instantly; real-page waits would only slow tests.
	r.scrapePause = time.Millisecond
	r.scrapeSettle = time.Millisecond
	return r
}

func TestRunResolvesAndReports(t *testing.T) {
	cfg := testConfig(t, config.Scenario{Name: "case2", Salary: 8000, Allowances: 1000, Relief: 200})
	page := &fakePage{texts: map[string]string{
		"8000": "Gross Income GHS 9,000.00\nNet Income (take home) GHS 7,300.00",
	}}
	renderer := &fakeRenderer{}
	recorder := &fakeRecorder{}

	err := newRunner(cfg, page, renderer, recorder).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, page.closed)

	require.Len(t, renderer.budgets, 1)
	b := renderer.budgets[0]
	assert.Equal(t, "case2", b.ScenarioName)
	assert.True(t, b.Resolved)
	assert.Equal(t, "7300", b.NetIncome.String())
	assert.Equal(t, budget.RuleBasedNote, b.Note)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "budget_case2.pdf"), renderer.paths[0])

	require.Len(t, b.Items, 8)
	assert.Equal(t, "Housing", b.Items[0].Category)
	assert.Equal(t, "2190", b.Items[0].Amount.String())
	assert.Equal(t, "Food", b.Items[1].Category)
	assert.Equal(t, "1460", b.Items[1].Amount.String())
	assert.Equal(t, "Discretionary", b.Items[7].Category)
	assert.Equal(t, "365", b.Items[7].Amount.String())

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, "case2", rec.Scenario)
	assert.True(t, rec.Resolved)
	assert.Equal(t, "7300.00", rec.NetIncome.StringFixed(2))
	assert.True(t, recorder.finished)
}

func TestRunIsolatesUnresolvedScenario(t *testing.T) {
	cfg := testConfig(t,
		config.Scenario{Name: "case1", Salary: 4000},
		config.Scenario{Name: "case2", Salary: 8000, Allowances: 1000, Relief: 200},
	)
	page := &fakePage{texts: map[string]string{
		"4000": "Loading calculator, please wait",
		"8000": "Net Income (take home) GHS 7,300.00",
	}}
	renderer := &fakeRenderer{}

	err := newRunner(cfg, page, renderer, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, renderer.budgets, 2)
	assert.False(t, renderer.budgets[0].Resolved)
	assert.True(t, renderer.budgets[0].NetIncome.IsZero())
	for _, item := range renderer.budgets[0].Items {
		assert.True(t, item.Amount.IsZero())
	}
	assert.True(t, renderer.budgets[1].Resolved)

	// unresolved scenarios leave a page snapshot behind
	dump, err := os.ReadFile(filepath.Join(cfg.OutputDir, "debug_case1.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(dump), "Loading calculator")
	assert.Contains(t, string(dump), "<html>")
}

func TestRunIsolatesDeliveryFailure(t *testing.T) {
	cfg := testConfig(t,
		config.Scenario{Name: "case1", Salary: 4000},
		config.Scenario{Name: "case3", Salary: 15000, Allowances: 2500, Relief: 500},
	)
	page := &fakePage{
		texts: map[string]string{
			"15000": "Net Income (take home) GHS 11,000.00",
		},
		failSalary: map[string]bool{"4000": true},
	}
	renderer := &fakeRenderer{}

	err := newRunner(cfg, page, renderer, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, renderer.budgets, 2)
	assert.False(t, renderer.budgets[0].Resolved)
	assert.True(t, renderer.budgets[1].Resolved)
	assert.Equal(t, "11000", renderer.budgets[1].NetIncome.String())

	_, statErr := os.Stat(filepath.Join(cfg.OutputDir, "debug_case1.txt"))
	assert.NoError(t, statErr)
}

func TestRunOpenFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, config.Scenario{Name: "case1", Salary: 4000})
	page := &fakePage{openErr: errors.New("browser did not start")}
	renderer := &fakeRenderer{}

	err := newRunner(cfg, page, renderer, nil).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, renderer.budgets)
	// A partially opened session is still released.
	assert.True(t, page.closed)
}

func TestRunRenderFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, config.Scenario{Name: "case1", Salary: 4000})
	page := &fakePage{texts: map[string]string{
		"4000": "Net Income (take home) GHS 3,500.00",
	}}
	renderer := &fakeRenderer{err: errors.New("disk full")}

	err := newRunner(cfg, page, renderer, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case1")
	assert.True(t, page.closed)
}

func TestRunSurvivesRecorderFailures(t *testing.T) {
	cfg := testConfig(t, config.Scenario{Name: "case1", Salary: 4000})
	page := &fakePage{texts: map[string]string{
		"4000": "Net Income (take home) GHS 3,500.00",
	}}
	renderer := &fakeRenderer{}
	recorder := &fakeRecorder{beginErr: errors.New("locked")}

	err := newRunner(cfg, page, renderer, recorder).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, renderer.budgets, 1)
	assert.Empty(t, recorder.records)
	assert.False(t, recorder.finished)
}
