package budget

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Producer composes the two generation strategies: one authoritative external
// generator, one always-available deterministic fallback, both behind the
// same invariant contract. Callers only learn which one ran from the note.
type Producer struct {
	llm *LLMStrategy
	log *zap.Logger
}

// NewProducer builds a producer. llmStrategy may be nil, in which case every
// allocation is rule-based.
func NewProducer(llmStrategy *LLMStrategy, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{llm: llmStrategy, log: log}
}

// Produce returns the final ordered budget for netIncome. The LLM strategy is
// tried once; Unavailable or Malformed falls back unconditionally to the
// rule-based split. There is nothing to retry and no error to surface.
func (p *Producer) Produce(ctx context.Context, netIncome decimal.Decimal) ([]Item, string) {
	var (
		amounts map[string]decimal.Decimal
		note    string
	)

	if p.llm != nil {
		m, n, err := p.llm.Generate(ctx, netIncome)
		switch {
		case err == nil:
			amounts, note = m, n
		case errors.Is(err, ErrUnavailable):
			p.log.Debug("generator unavailable, using rule-based allocation", zap.Error(err))
		case errors.Is(err, ErrMalformed):
			p.log.Debug("generator response unusable, using rule-based allocation", zap.Error(err))
		default:
			p.log.Debug("generator failed, using rule-based allocation", zap.Error(err))
		}
	}
	if amounts == nil {
		amounts, note = GenerateRuleBased(netIncome)
	}

	items := make([]Item, 0, len(Categories))
	for _, cat := range Categories {
		amt := amounts[cat]
		pct := 0.0
		if netIncome.IsPositive() {
			pct = amt.Div(netIncome).InexactFloat64()
		}
		items = append(items, Item{Category: cat, Amount: amt, Pct: pct})
	}

	// Descending by amount; insertion (canonical category) order on ties.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Amount.GreaterThan(items[j].Amount)
	})
	return items, note
}

// Total sums the amounts of an item list.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}
