// Package budget turns a resolved net income into a categorized monthly
// allocation. Two interchangeable strategies exist: an external LLM generator
// (primary) and a deterministic rule-based split (fallback). Both feed the
// same invariant enforcement, so callers never see an allocation that is
// negative or exceeds the income it came from.
package budget

import "github.com/shopspring/decimal"

// Categories is the fixed allocation vocabulary, in canonical order. That
// order doubles as the stable tie-break when items are sorted by amount.
var Categories = []string{
	"Housing",
	"Food",
	"Transport",
	"Utilities",
	"Healthcare",
	"Education/Skills",
	"Savings/Emergency",
	"Discretionary",
}

// ruleWeights backs the deterministic strategy; the weights sum to 1.0.
var ruleWeights = map[string]decimal.Decimal{
	"Housing":           decimal.RequireFromString("0.30"),
	"Food":              decimal.RequireFromString("0.20"),
	"Transport":         decimal.RequireFromString("0.10"),
	"Utilities":         decimal.RequireFromString("0.10"),
	"Healthcare":        decimal.RequireFromString("0.10"),
	"Education/Skills":  decimal.RequireFromString("0.05"),
	"Savings/Emergency": decimal.RequireFromString("0.10"),
	"Discretionary":     decimal.RequireFromString("0.05"),
}

// trimCategory absorbs any rounding excess the per-category 2dp rounding
// introduces. Always the same category, so behavior stays reproducible.
const trimCategory = "Discretionary"

// Item is one budget line. Pct is Amount/net income, 0 when net income is 0.
type Item struct {
	Category string
	Amount   decimal.Decimal
	Pct      float64
}

func knownCategory(name string) bool {
	_, ok := ruleWeights[name]
	return ok
}
