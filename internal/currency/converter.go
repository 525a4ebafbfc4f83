package currency

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
)

// Converter converts an amount between currencies. Rate acquisition is an
// external collaborator; implementations that cannot produce a rate fail
// with ConversionUnavailable and the submission path applies its configured
// policy.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// StaticConverter converts using a fixed in-memory rate table keyed by
// "FROM/TO" pairs. Used by tests and by the seed CLI; identity conversions
// always succeed.
type StaticConverter struct {
	rates map[string]decimal.Decimal
}

// NewStaticConverter creates a converter over the given rate table.
func NewStaticConverter(rates map[string]decimal.Decimal) *StaticConverter {
	table := make(map[string]decimal.Decimal, len(rates))
	for pair, rate := range rates {
		table[pair] = rate
	}
	return &StaticConverter{rates: table}
}

// Convert applies the configured rate, rounding to 2 decimal places.
func (c *StaticConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, ok := c.rates[from+"/"+to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no rate for %s/%s", approval.ErrConversionUnavailable, from, to)
	}
	return amount.Mul(rate).Round(2), nil
}

// Unavailable is a converter that always fails; it stands in for a broken
// external rate source in tests and policy drills.
type Unavailable struct{}

func (Unavailable) Convert(_ context.Context, _ decimal.Decimal, from, to string) (decimal.Decimal, error) {
	return decimal.Zero, fmt.Errorf("%w: %s/%s", approval.ErrConversionUnavailable, from, to)
}
