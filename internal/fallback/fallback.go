package fallback

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"marketsnap/internal/quote"
)

// Symbols is the fixed list a degraded run publishes. One synthetic
// quote per entry, always in this order.
var Symbols = []string{
	"BHARTIARTL",
	"HDFCBANK",
	"HINDUNILVR",
	"ICICIBANK",
	"INFY",
	"ITC",
	"KOTAKBANK",
	"RELIANCE",
	"SBIN",
	"TCS",
}

// Price and percent-change bounds for synthetic quotes.
const (
	minPrice = 100.0
	maxPrice = 5000.0
	maxSwing = 5.0 // percent, symmetric
)

// Generator produces schema-valid synthetic quotes when every real
// source has failed and policy permits degraded output. The quotes are
// tagged with quote.SegmentSimulated so their origin is never hidden
// from downstream consumers.
type Generator struct {
	rng *rand.Rand
}

// New accepts the run's random source; tests pass a seeded one.
func New(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

func (g *Generator) Snapshot() quote.Snapshot {
	out := make(quote.Snapshot, 0, len(Symbols))
	for _, sym := range Symbols {
		price := minPrice + g.rng.Float64()*(maxPrice-minPrice)
		pct := (g.rng.Float64()*2 - 1) * maxSwing

		priceDec := decimal.NewFromFloat(price).Round(2)
		pctDec := decimal.NewFromFloat(pct).Round(2)
		// absoluteChange consistent with the generated percent change:
		// pct = change / prevClose * 100 and prevClose = price - change.
		change := priceDec.Mul(pctDec).Div(decimal.NewFromInt(100).Add(pctDec))

		out = append(out, quote.Quote{
			Symbol:         sym,
			DisplayName:    sym,
			MarketSegment:  quote.SegmentSimulated,
			LastPrice:      quote.NewMoney(priceDec),
			AbsoluteChange: quote.NewMoney(change),
			PercentChange:  quote.NewMoney(pctDec),
		})
	}
	return out
}
