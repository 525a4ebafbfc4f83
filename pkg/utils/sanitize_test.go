package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSanitizeComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "looks good", "looks good"},
		{"strips nul and escape", "ok\x00\x1bfine", "okfine"},
		{"strips tabs and newlines", "line1\nline2\tend", "line1line2end"},
		{"strips delete", "a\x7fb", "ab"},
		{"empty", "", ""},
		{"unicode preserved", "金額確認済み ✓", "金額確認済み ✓"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeComment(tt.input); got != tt.expected {
				t.Errorf("SanitizeComment(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"positive", "10.50", false},
		{"tiny positive", "0.01", false},
		{"zero", "0", true},
		{"negative", "-3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAmount(%s) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCurrency(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"valid", "USD", false},
		{"valid euro", "EUR", false},
		{"lower case", "usd", true},
		{"too short", "US", true},
		{"too long", "USDT", true},
		{"symbols", "U$D", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCurrency(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCurrency(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
		})
	}
}
