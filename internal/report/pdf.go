// Package report renders a finalized budget into a PDF document. This is the
// system's sole externally visible output, so a failed render is fatal to the
// whole run rather than to one scenario.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cediplan/internal/budget"
	"cediplan/internal/currency"
)

// Budget is the terminal report entity: scenario metadata, the resolved net
// income, and the final ordered allocation.
type Budget struct {
	ScenarioName string
	Salary       decimal.Decimal
	Allowances   decimal.Decimal
	Relief       decimal.Decimal
	NetIncome    decimal.Decimal
	Resolved     bool
	Items        []budget.Item
	Note         string
}

// PDFRenderer writes budget reports with pdfcpu's create-from-JSON API.
type PDFRenderer struct {
	conf *model.Configuration
	log  *zap.Logger
}

// NewPDFRenderer builds a renderer with default pdfcpu configuration.
func NewPDFRenderer(log *zap.Logger) *PDFRenderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &PDFRenderer{conf: model.NewDefaultConfiguration(), log: log}
}

// Render writes the report to path, creating parent directories as needed.
func (r *PDFRenderer) Render(b Budget, path string) error {
	desc, err := json.Marshal(buildForm(b))
	if err != nil {
		return fmt.Errorf("marshal report form: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := api.Create(nil, bytes.NewReader(desc), f, r.conf); err != nil {
		return fmt.Errorf("render report %s: %w", path, err)
	}

	r.log.Info("report written",
		zap.String("scenario", b.ScenarioName),
		zap.String("path", path))
	return nil
}

// pdfcpu create-from-JSON description types; only the fields this layout uses.

type form struct {
	Paper  string          `json:"paper"`
	Origin string          `json:"origin"`
	Pages  map[string]page `json:"pages"`
}

type page struct {
	Content content `json:"content"`
}

type content struct {
	Text  []textBox `json:"text,omitempty"`
	Table []table   `json:"table,omitempty"`
}

type font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type textBox struct {
	Value  string  `json:"value"`
	Anchor string  `json:"anchor,omitempty"`
	Dx     float64 `json:"dx,omitempty"`
	Dy     float64 `json:"dy,omitempty"`
	Font   *font   `json:"font,omitempty"`
}

type tableHeader struct {
	Values          []string `json:"values"`
	Font            *font    `json:"font,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
}

type table struct {
	Anchor     string       `json:"anchor,omitempty"`
	Dy         float64      `json:"dy,omitempty"`
	Width      float64      `json:"width,omitempty"`
	Rows       int          `json:"rows"`
	Cols       int          `json:"cols"`
	ColWidths  []int        `json:"colWidths,omitempty"`
	LineHeight int          `json:"lheight,omitempty"`
	Font       *font        `json:"font,omitempty"`
	Header     *tableHeader `json:"header,omitempty"`
	Values     [][]string   `json:"values"`
	Grid       bool         `json:"grid,omitempty"`
}

func buildForm(b Budget) form {
	rows := make([][]string, 0, len(b.Items)+1)
	totalAmt := decimal.Zero
	totalPct := 0.0
	for _, it := range b.Items {
		rows = append(rows, []string{
			it.Category,
			it.Amount.StringFixed(2),
			fmt.Sprintf("%.1f%%", it.Pct*100),
		})
		totalAmt = totalAmt.Add(it.Amount)
		totalPct += it.Pct
	}
	rows = append(rows, []string{
		"Total",
		totalAmt.StringFixed(2),
		fmt.Sprintf("%.1f%%", totalPct*100),
	})

	netLine := fmt.Sprintf("Net Income (take home): %s", currency.FormatGHS(b.NetIncome))
	if !b.Resolved {
		netLine += " (unresolved; zero-income placeholder)"
	}

	body := &font{Name: "Helvetica", Size: 10}
	text := []textBox{
		{
			Value:  fmt.Sprintf("Monthly Budget Report - %s", b.ScenarioName),
			Anchor: "tc",
			Dy:     -30,
			Font:   &font{Name: "Helvetica-Bold", Size: 16},
		},
		{
			Value: fmt.Sprintf("Inputs: Salary = %s, Allowances = %s, Tax relief = %s",
				currency.FormatGHS(b.Salary),
				currency.FormatGHS(b.Allowances),
				currency.FormatGHS(b.Relief)),
			Anchor: "tc",
			Dy:     -60,
			Font:   body,
		},
		{
			Value:  netLine,
			Anchor: "tc",
			Dy:     -76,
			Font:   body,
		},
		{
			Value:  fmt.Sprintf("Notes: %s", b.Note),
			Anchor: "bc",
			Dy:     60,
			Font:   body,
		},
	}

	budgetTable := table{
		Anchor:     "c",
		Width:      480,
		Rows:       len(rows),
		Cols:       3,
		ColWidths:  []int{50, 25, 25},
		LineHeight: 20,
		Font:       body,
		Header: &tableHeader{
			Values:          []string{"Category", "Amount (GHS)", "% of Net Income"},
			Font:            &font{Name: "Helvetica-Bold", Size: 10},
			BackgroundColor: "#F0F0F0",
		},
		Values: rows,
		Grid:   true,
	}

	return form{
		Paper:  "A4",
		Origin: "upperLeft",
		Pages: map[string]page{
			"1": {Content: content{Text: text, Table: []table{budgetTable}}},
		},
	}
}
