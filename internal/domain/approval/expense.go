package approval

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense statuses persisted alongside the workflow instance status.
const (
	ExpenseStatusPending  = "PENDING"
	ExpenseStatusApproved = "APPROVED"
	ExpenseStatusRejected = "REJECTED"
)

// Expense is one reimbursement request. Amounts are carried both in the
// submitter's original currency and, when conversion succeeded, in the
// organization currency.
type Expense struct {
	ID               string
	OrgID            string
	SubmitterID      string
	Category         string
	Description      string
	ExpenseDate      time.Time
	OriginalAmount   decimal.Decimal
	OriginalCurrency string
	ConvertedAmount  *decimal.Decimal
	OrgCurrency      string
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AmountInOrgCurrency returns the converted amount when available, otherwise
// the original amount. Rules scoped by amount evaluate against this value.
func (e *Expense) AmountInOrgCurrency() decimal.Decimal {
	if e.ConvertedAmount != nil {
		return *e.ConvertedAmount
	}
	return e.OriginalAmount
}
