package budget

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduceUsesLLMWhenItSucceeds(t *testing.T) {
	c := &fakeCompleter{response: `{"items": {"Housing": 1200, "Food": 800}, "note": "from the generator"}`}
	p := NewProducer(NewLLMStrategy(c, nil), nil)

	items, note := p.Produce(context.Background(), net("4000"))
	assert.Equal(t, "from the generator", note)
	require.Len(t, items, 8)
	assert.Equal(t, "Housing", items[0].Category)
	assert.True(t, items[0].Amount.Equal(net("1200")))
}

func TestProduceFallsBackWhenGeneratorUnavailable(t *testing.T) {
	c := &fakeCompleter{err: errors.New("dial tcp: timeout")}
	p := NewProducer(NewLLMStrategy(c, nil), nil)

	items, note := p.Produce(context.Background(), net("4000"))
	assert.Equal(t, RuleBasedNote, note)
	assert.True(t, Total(items).Equal(net("4000")))
}

func TestProduceFallsBackWhenResponseMalformed(t *testing.T) {
	c := &fakeCompleter{response: "sorry, no JSON today"}
	p := NewProducer(NewLLMStrategy(c, nil), nil)

	_, note := p.Produce(context.Background(), net("4000"))
	assert.Equal(t, RuleBasedNote, note)
}

func TestProduceWithoutStrategyIsRuleBased(t *testing.T) {
	p := NewProducer(nil, nil)

	items, note := p.Produce(context.Background(), net("7300"))
	assert.Equal(t, RuleBasedNote, note)
	require.Len(t, items, 8)
	assert.True(t, Total(items).Equal(net("7300")))
}

func TestProduceOrdersDescendingWithStableTies(t *testing.T) {
	p := NewProducer(nil, nil)
	items, _ := p.Produce(context.Background(), net("7300"))

	// 2190, 1460, then the 730 tie keeps canonical category order,
	// then the 365 tie does too.
	got := make([]string, len(items))
	for i, it := range items {
		got[i] = it.Category
	}
	assert.Equal(t, []string{
		"Housing",
		"Food",
		"Transport",
		"Utilities",
		"Healthcare",
		"Savings/Emergency",
		"Education/Skills",
		"Discretionary",
	}, got)

	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].Amount.GreaterThan(items[i-1].Amount))
	}
}

func TestProducePercentages(t *testing.T) {
	p := NewProducer(nil, nil)

	items, _ := p.Produce(context.Background(), net("4000"))
	for _, it := range items {
		want := it.Amount.Div(net("4000")).InexactFloat64()
		assert.InDelta(t, want, it.Pct, 1e-9, it.Category)
	}

	items, _ = p.Produce(context.Background(), decimal.Zero)
	for _, it := range items {
		assert.Zero(t, it.Pct, it.Category)
		assert.True(t, it.Amount.IsZero())
	}
}
