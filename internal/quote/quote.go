package quote

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Market segment labels. SegmentSimulated marks synthetic quotes so they
// are never mistaken for real market data downstream.
const (
	SegmentDefault   = "EQUITY"
	SegmentSimulated = "SIMULATED"
)

// Money is a decimal amount persisted with exactly two fractional digits,
// regardless of the precision the source delivered.
type Money struct {
	d decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

// MoneyFromFloat is a convenience constructor for tests and the fallback
// generator.
func MoneyFromFloat(v float64) Money {
	return NewMoney(decimal.NewFromFloat(v))
}

// Decimal returns the underlying rounded value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders with exactly two fractional digits, e.g. "2850.00".
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON renders the amount as a JSON string such as "2850.00".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.d.StringFixed(2) + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare JSON numbers.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		m.d = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money: parse %q: %w", s, err)
	}
	m.d = d.Round(2)
	return nil
}

// Quote is the canonical normalized record every source adapter converges
// to before persistence.
type Quote struct {
	Symbol         string `json:"symbol"`
	DisplayName    string `json:"displayName"`
	MarketSegment  string `json:"marketSegment"`
	LastPrice      Money  `json:"lastPrice"`
	AbsoluteChange Money  `json:"absoluteChange"`
	PercentChange  Money  `json:"percentChange"`
	HeldUnits      int    `json:"heldUnits"`
}

// Snapshot is the complete, self-consistent quote set written in one run.
// It fully replaces the prior snapshot; it is never merged with one.
type Snapshot []Quote

// Sort orders the snapshot by symbol for deterministic output.
func (s Snapshot) Sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Symbol < s[j].Symbol })
}

// Symbols returns the symbols in snapshot order.
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s))
	for _, q := range s {
		out = append(out, q.Symbol)
	}
	return out
}
