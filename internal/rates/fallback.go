package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// fallbackRates are approximate USD based rates served when the upstream
// cannot be reached.
var fallbackRates = map[string]float64{
	"USD": 1.0,
	"EUR": 0.92,
	"GBP": 0.78,
	"JPY": 150.0,
	"CAD": 1.35,
	"AUD": 1.48,
	"CHF": 0.90,
	"CNY": 7.2,
	"HKD": 7.8,
	"NZD": 1.6,
}

// Fallback builds a rate set from the static table. A known non-USD base
// rescales every entry by that base's rate; an unknown base keeps USD values.
func Fallback(q Query, now time.Time) RateSet {
	baseRate, known := fallbackRates[q.Base]
	rescale := known && q.Base != DefaultBase

	all := make(map[string]float64, len(fallbackRates))
	for code, rate := range fallbackRates {
		if rescale {
			rate = decimal.NewFromFloat(rate).Div(decimal.NewFromFloat(baseRate)).InexactFloat64()
		}
		all[code] = rate
	}

	return RateSet{
		Base:     q.Base,
		Date:     now.Format(DateLayout),
		Rates:    filterSymbols(all, q.Symbols),
		Fallback: true,
	}
}
