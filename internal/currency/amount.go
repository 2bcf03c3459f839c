// Package currency parses and formats Ghana cedi amounts found in free text.
package currency

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// markers are the currency prefixes the tax calculator and typical Ghanaian
// sources use interchangeably. Both Unicode cedi variants occur in the wild.
var markers = []string{"GHS", "GH₵", "GH¢"}

var numberRe = regexp.MustCompile(`\d+(?:\.\d{1,2})?`)

// ParseAmount extracts a currency amount from text that may contain thousands
// separators, currency markers, and surrounding non-numeric characters.
// The bool reports whether a numeric token was found at all, so a source
// showing a genuine zero stays distinguishable from one showing nothing.
func ParseAmount(text string) (decimal.Decimal, bool) {
	s := text
	for _, m := range markers {
		s = strings.ReplaceAll(s, m, "")
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero, false
	}

	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}

	if tok := numberRe.FindString(s); tok != "" {
		if d, err := decimal.NewFromString(tok); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

// Coerce is the permissive form of ParseAmount: anything unparsable is 0.
// Used when sanitizing untrusted generator output, where zero is the value a
// bad entry should clamp to anyway.
func Coerce(text string) decimal.Decimal {
	d, _ := ParseAmount(text)
	return d
}

// FormatGHS renders an amount as "GHS 1,234.56".
func FormatGHS(d decimal.Decimal) string {
	fixed := d.StringFixed(2)

	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, fracPart, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := "GHS " + b.String() + "." + fracPart
	if neg {
		out = "GHS -" + b.String() + "." + fracPart
	}
	return out
}
