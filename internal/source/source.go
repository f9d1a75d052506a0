package source

import (
	"context"

	"github.com/shopspring/decimal"
)

// Record is the raw shape all adapters converge to before normalization.
// Optional fields use NullDecimal so the normalizer can tell "absent"
// from "zero".
type Record struct {
	Symbol    string
	Name      string
	Segment   string
	LastPrice decimal.Decimal
	PrevClose decimal.NullDecimal
	Change    decimal.NullDecimal
	PctChange decimal.NullDecimal
}

// Source fetches raw records from one upstream, or fails. Exactly one
// source runs per pipeline execution; the config selects which.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Record, error)
}
