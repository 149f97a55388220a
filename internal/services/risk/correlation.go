package risk

import (
	"sort"
	"strings"
)

// QuoteFamily groups symbols by quote asset, e.g. every *USDT pair is one family.
// It is a coarse proxy for correlation, not a statistical measure.
type QuoteFamily struct {
	quotes []string
}

// NewQuoteFamily matches the longest configured suffix first so FDUSD wins over USD.
func NewQuoteFamily(quotes []string) *QuoteFamily {
	qs := make([]string, 0, len(quotes))
	for _, q := range quotes {
		if q = strings.ToUpper(strings.TrimSpace(q)); q != "" {
			qs = append(qs, q)
		}
	}
	sort.SliceStable(qs, func(i, j int) bool { return len(qs[i]) > len(qs[j]) })
	return &QuoteFamily{quotes: qs}
}

// Of returns the quote asset of symbol, or "" when none matches.
func (q *QuoteFamily) Of(symbol string) string {
	if q == nil {
		return ""
	}
	symbol = strings.ToUpper(symbol)
	for _, quote := range q.quotes {
		if len(symbol) > len(quote) && strings.HasSuffix(symbol, quote) {
			return quote
		}
	}
	return ""
}

// Correlated reports whether a and b share a family.
func (q *QuoteFamily) Correlated(a, b string) bool {
	fa := q.Of(a)
	return fa != "" && fa == q.Of(b)
}
