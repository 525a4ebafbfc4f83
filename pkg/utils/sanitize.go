package utils

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// SanitizeComment strips control characters from free-text approver comments
// before they are stored in the ledger.
func SanitizeComment(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// ValidateAmount validates a submitted expense amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive: %s", amount)
	}
	return nil
}

// ValidateCurrency validates an ISO 4217 style currency code
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("currency code must be 3 letters: %s", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("currency code must be upper-case letters: %s", code)
		}
	}
	return nil
}
