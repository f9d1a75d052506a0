package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"marketsnap/internal/quote"
	"marketsnap/internal/source"
)

var hundred = decimal.NewFromInt(100)

// Snapshot maps raw adapter records into the canonical quote set:
// defaults filled, derived fields computed, symbols uppercased and
// deduplicated (first record wins), output sorted by symbol. Pure and
// deterministic: identical input yields byte-identical output.
func Snapshot(records []source.Record) quote.Snapshot {
	out := make(quote.Snapshot, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		q, ok := Record(r)
		if !ok {
			continue
		}
		if _, dup := seen[q.Symbol]; dup {
			continue
		}
		seen[q.Symbol] = struct{}{}
		out = append(out, q)
	}
	out.Sort()
	return out
}

// Record maps one raw record to a canonical quote. Records without a
// symbol are unusable and reported as !ok.
func Record(r source.Record) (quote.Quote, bool) {
	sym := strings.ToUpper(strings.TrimSpace(r.Symbol))
	if sym == "" {
		return quote.Quote{}, false
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = sym
	}
	segment := strings.TrimSpace(r.Segment)
	if segment == "" {
		segment = quote.SegmentDefault
	}

	change, pct := derive(r)
	return quote.Quote{
		Symbol:         sym,
		DisplayName:    name,
		MarketSegment:  segment,
		LastPrice:      quote.NewMoney(r.LastPrice),
		AbsoluteChange: quote.NewMoney(change),
		PercentChange:  quote.NewMoney(pct),
	}, true
}

// derive computes the change pair. A genuine previous close is always
// preferred over reconstructing one from (last - change), which
// amplifies rounding error near zero.
func derive(r source.Record) (change, pct decimal.Decimal) {
	switch {
	case r.PrevClose.Valid && !r.PrevClose.Decimal.IsZero():
		prev := r.PrevClose.Decimal
		if r.Change.Valid {
			change = r.Change.Decimal
		} else {
			change = r.LastPrice.Sub(prev)
		}
		if r.PctChange.Valid {
			pct = r.PctChange.Decimal
		} else {
			pct = change.Div(prev).Mul(hundred)
		}
	case r.Change.Valid:
		change = r.Change.Decimal
		if r.PctChange.Valid {
			pct = r.PctChange.Decimal
		} else if prev := r.LastPrice.Sub(change); !prev.IsZero() {
			pct = change.Div(prev).Mul(hundred)
		}
	case r.PctChange.Valid:
		pct = r.PctChange.Decimal
	}
	return change, pct
}
