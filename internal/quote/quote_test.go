package quote

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMoney_AlwaysTwoFractionalDigits(t *testing.T) {
	cases := map[string]string{
		"2850":     `"2850.00"`,
		"2850.5":   `"2850.50"`,
		"2850.456": `"2850.46"`,
		"0":        `"0.00"`,
		"-3.1":     `"-3.10"`,
		"99.999":   `"100.00"`,
		"0.004":    `"0.00"`,
	}
	for in, want := range cases {
		d, err := decimal.NewFromString(in)
		require.NoError(t, err)
		b, err := json.Marshal(NewMoney(d))
		require.NoError(t, err)
		require.Equal(t, want, string(b), "input %s", in)
	}
}

func TestMoney_UnmarshalQuotedAndBare(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"12.30"`), &m))
	require.Equal(t, "12.30", m.String())

	require.NoError(t, json.Unmarshal([]byte(`12.3`), &m))
	require.Equal(t, "12.30", m.String())

	require.Error(t, json.Unmarshal([]byte(`"12x"`), &m))
}

func TestQuote_RoundTrip(t *testing.T) {
	in := Quote{
		Symbol:         "RELIANCE",
		DisplayName:    "Reliance Industries",
		MarketSegment:  "EQ",
		LastPrice:      MoneyFromFloat(2850),
		AbsoluteChange: MoneyFromFloat(-12.5),
		PercentChange:  MoneyFromFloat(-0.44),
		HeldUnits:      12,
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Quote
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, in.Symbol, out.Symbol)
	require.Equal(t, in.DisplayName, out.DisplayName)
	require.Equal(t, "2850.00", out.LastPrice.String())
	require.Equal(t, "-12.50", out.AbsoluteChange.String())
	require.Equal(t, "-0.44", out.PercentChange.String())
	require.Equal(t, 12, out.HeldUnits)
}

func TestSnapshot_SortBySymbol(t *testing.T) {
	s := Snapshot{
		{Symbol: "TCS"},
		{Symbol: "INFY"},
		{Symbol: "RELIANCE"},
	}
	s.Sort()
	require.Equal(t, []string{"INFY", "RELIANCE", "TCS"}, s.Symbols())
}
