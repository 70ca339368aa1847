package rates

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultBase is used when a query names no base currency.
const DefaultBase = "USD"

// DateLayout is the day format of RateSet.Date.
const DateLayout = "2006-01-02"

// Query selects a base currency and, optionally, the target symbols.
type Query struct {
	Base    string
	Symbols []string
}

// NewQuery upper-cases the codes, defaults the base and drops blank symbols.
// An empty symbol list means all known currencies and is stored as nil.
func NewQuery(base string, symbols []string) Query {
	upper := cases.Upper(language.Und)
	q := Query{Base: upper.String(strings.TrimSpace(base))}
	if q.Base == "" {
		q.Base = DefaultBase
	}
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		q.Symbols = append(q.Symbols, upper.String(s))
	}
	return q
}

// SymbolList joins the symbols with commas, or returns "" when none were given.
func (q Query) SymbolList() string {
	return strings.Join(q.Symbols, ",")
}

// RateSet is a normalized rate table.
type RateSet struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`

	// Fallback marks sets built from the static table.
	Fallback bool `json:"-"`
}

func filterSymbols(rates map[string]float64, symbols []string) map[string]float64 {
	if len(symbols) == 0 {
		return rates
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if v, ok := rates[s]; ok {
			out[s] = v
		}
	}
	return out
}
