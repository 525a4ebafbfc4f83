package currency

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/expenseflow/approval-engine/internal/domain/approval"
)

func TestStaticConverter_Convert(t *testing.T) {
	converter := NewStaticConverter(map[string]decimal.Decimal{
		"EUR/USD": decimal.RequireFromString("1.08"),
		"JPY/USD": decimal.RequireFromString("0.0067"),
	})

	tests := []struct {
		name     string
		amount   string
		from, to string
		expected string
	}{
		{"configured pair", "100", "EUR", "USD", "108"},
		{"rounds to cents", "1000", "JPY", "USD", "6.70"},
		{"identity", "42.42", "USD", "USD", "42.42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := converter.Convert(context.Background(),
				decimal.RequireFromString(tt.amount), tt.from, tt.to)
			if err != nil {
				t.Fatalf("Convert() failed: %v", err)
			}
			want := decimal.RequireFromString(tt.expected)
			if !got.Equal(want) {
				t.Errorf("Convert() = %s, want %s", got, want)
			}
		})
	}
}

func TestStaticConverter_MissingRate(t *testing.T) {
	converter := NewStaticConverter(nil)

	_, err := converter.Convert(context.Background(), decimal.NewFromInt(10), "GBP", "USD")
	if !errors.Is(err, approval.ErrConversionUnavailable) {
		t.Errorf("Convert() error = %v, want ErrConversionUnavailable", err)
	}
}

func TestStaticConverter_DirectionalRates(t *testing.T) {
	converter := NewStaticConverter(map[string]decimal.Decimal{
		"EUR/USD": decimal.RequireFromString("1.08"),
	})

	// The inverse pair is not implied
	_, err := converter.Convert(context.Background(), decimal.NewFromInt(10), "USD", "EUR")
	if !errors.Is(err, approval.ErrConversionUnavailable) {
		t.Errorf("Convert() error = %v, want ErrConversionUnavailable", err)
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Convert(context.Background(), decimal.NewFromInt(10), "EUR", "USD")
	if !errors.Is(err, approval.ErrConversionUnavailable) {
		t.Errorf("Convert() error = %v, want ErrConversionUnavailable", err)
	}
}
