package budget

import "github.com/shopspring/decimal"

// RuleBasedNote is the note attached to deterministic allocations.
const RuleBasedNote = "Rule-based allocation (fallback)."

// GenerateRuleBased splits net income by the fixed weight table, rounding
// each category to 2 decimals. Independent rounding can push the total a cent
// or two above the income, so the excess is trimmed from the Discretionary
// category, floored at zero.
func GenerateRuleBased(netIncome decimal.Decimal) (map[string]decimal.Decimal, string) {
	items := make(map[string]decimal.Decimal, len(Categories))
	for _, cat := range Categories {
		items[cat] = netIncome.Mul(ruleWeights[cat]).Round(2)
	}

	total := decimal.Zero
	for _, amt := range items {
		total = total.Add(amt)
	}
	if total.GreaterThan(netIncome) {
		excess := total.Sub(netIncome).Round(2)
		trimmed := items[trimCategory].Sub(excess)
		if trimmed.IsNegative() {
			trimmed = decimal.Zero
		}
		items[trimCategory] = trimmed.Round(2)
	}

	return items, RuleBasedNote
}
