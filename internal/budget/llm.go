package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cediplan/internal/currency"
	"cediplan/internal/llm"
)

// Strategy failure variants. The allocation orchestrator branches on these
// explicitly; neither ever reaches the end user as an error.
var (
	// ErrUnavailable means the generator could not be reached at all
	// (no client configured, transport failure, timeout).
	ErrUnavailable = errors.New("budget: generator unavailable")

	// ErrMalformed means the generator answered but the response could not
	// be repaired into a usable allocation.
	ErrMalformed = errors.New("budget: generator response malformed")
)

// LLMNote is the fallback note when the generator omits one.
const LLMNote = "LLM-generated budget."

// LLMStrategy asks an external generator for an allocation and sanitizes
// whatever comes back against the allocation invariants.
type LLMStrategy struct {
	client llm.Completer
	log    *zap.Logger
}

// NewLLMStrategy wraps a completer. client must not be nil.
func NewLLMStrategy(client llm.Completer, log *zap.Logger) *LLMStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	return &LLMStrategy{client: client, log: log}
}

// Generate requests a budget for netIncome. The returned map always contains
// exactly the eight fixed categories, every amount is non-negative, and the
// sum never exceeds netIncome.
func (s *LLMStrategy) Generate(ctx context.Context, netIncome decimal.Decimal) (map[string]decimal.Decimal, string, error) {
	if s.client == nil {
		return nil, "", ErrUnavailable
	}

	raw, err := s.client.Complete(ctx, buildPrompt(netIncome))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rawItems, note, err := parseGeneratorResponse(raw)
	if err != nil {
		s.log.Debug("unusable generator response", zap.Error(err))
		return nil, "", err
	}

	items := sanitize(rawItems, netIncome)
	if note == "" {
		note = LLMNote
	}
	return items, note, nil
}

func buildPrompt(netIncome decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a Ghana-appropriate monthly budget for a net income of %s.\n", currency.FormatGHS(netIncome))
	fmt.Fprintf(&b, "Use only these categories: %s.\n", strings.Join(Categories, ", "))
	b.WriteString("Return a STRICT JSON object with two keys:\n")
	fmt.Fprintf(&b, "- \"items\": a map of category -> amount (GHS), amounts must be non-negative and sum to <= %s\n", netIncome.StringFixed(2))
	b.WriteString("- \"note\": one concise sentence with a Ghana context budgeting tip.\n")
	b.WriteString("Do not add any extra text.")
	return b.String()
}

type generatorResponse struct {
	Items map[string]interface{} `json:"items"`
	Note  string                 `json:"note"`
}

// parseGeneratorResponse handles the response permissively: code fences are
// stripped, and when direct parsing fails the first balanced {...} span is
// tried before giving up.
func parseGeneratorResponse(raw string) (map[string]interface{}, string, error) {
	c := strings.TrimSpace(raw)
	if strings.HasPrefix(c, "```") {
		c = strings.Trim(c, "`")
		if span := extractJSON(c); span != "" {
			c = span
		}
	}

	var resp generatorResponse
	if err := json.Unmarshal([]byte(c), &resp); err != nil {
		span := extractJSON(c)
		if span == "" {
			return nil, "", fmt.Errorf("%w: no JSON object in response", ErrMalformed)
		}
		if err := json.Unmarshal([]byte(span), &resp); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if len(resp.Items) == 0 {
		return nil, "", fmt.Errorf("%w: response has no items", ErrMalformed)
	}
	return resp.Items, strings.TrimSpace(resp.Note), nil
}

// extractJSON finds the first balanced JSON object in a response.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

// sanitize enforces the allocation invariants regardless of how badly the
// generator misbehaved: coerce every value through the amount parser, clamp
// to non-negative, shrink everything proportionally when the sum exceeds the
// income (uniform scaling preserves the generator's relative priorities),
// round to 2 decimals after scaling, and zero-fill absent categories.
// Categories outside the fixed vocabulary are discarded.
func sanitize(raw map[string]interface{}, netIncome decimal.Decimal) map[string]decimal.Decimal {
	coerced := make(map[string]decimal.Decimal, len(Categories))
	total := decimal.Zero
	for cat, v := range raw {
		if !knownCategory(cat) {
			continue
		}
		amt := currency.Coerce(fmt.Sprintf("%v", v))
		if amt.IsNegative() {
			amt = decimal.Zero
		}
		coerced[cat] = amt
		total = total.Add(amt)
	}

	scale := decimal.NewFromInt(1)
	if total.GreaterThan(netIncome) && total.IsPositive() {
		scale = netIncome.Div(total)
	}

	items := make(map[string]decimal.Decimal, len(Categories))
	scaled := decimal.Zero
	for _, cat := range Categories {
		amt := coerced[cat].Mul(scale).Round(2)
		items[cat] = amt
		scaled = scaled.Add(amt)
	}

	// Per-category rounding after scaling can still leave the sum a few
	// cents over the income; absorb the residual from the largest item.
	if excess := scaled.Sub(netIncome); excess.IsPositive() {
		largest := Categories[0]
		for _, cat := range Categories[1:] {
			if items[cat].GreaterThan(items[largest]) {
				largest = cat
			}
		}
		trimmed := items[largest].Sub(excess)
		if trimmed.IsNegative() {
			trimmed = decimal.Zero
		}
		items[largest] = trimmed
	}
	return items
}
