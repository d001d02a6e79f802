package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Currency is an independently configured currency definition. StartBalance is
// the balance synthesized for a player's first-ever read; Payable controls
// whether players may send this currency to each other.
type Currency struct {
	ID            string   `yaml:"-"`
	Name          string   `yaml:"name"`
	Symbol        string   `yaml:"symbol"`
	SymbolBefore  bool     `yaml:"symbol-before"`
	StartBalance  float64  `yaml:"start-balance"`
	DecimalPlaces int      `yaml:"decimal-places"`
	Aliases       []string `yaml:"aliases"`
	Payable       bool     `yaml:"payable"`
}

// Format renders an amount with thousands grouping, the configured number of
// decimal places and the currency symbol.
func (c *Currency) Format(amount float64) string {
	formatted := groupDigits(strconv.FormatFloat(amount, 'f', c.DecimalPlaces, 64))
	if c.SymbolBefore {
		return c.Symbol + formatted
	}
	return formatted + c.Symbol
}

// FormatCompact renders an amount with K/M/B suffixes for display in
// space-constrained contexts.
func (c *Currency) FormatCompact(amount float64) string {
	abs := amount
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.2fB%s", amount/1_000_000_000, c.Symbol)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.2fM%s", amount/1_000_000, c.Symbol)
	case abs >= 1_000:
		return fmt.Sprintf("%.2fK%s", amount/1_000, c.Symbol)
	}
	return c.Format(amount)
}

// groupDigits inserts comma separators into the integer part of a formatted
// decimal string
func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}
