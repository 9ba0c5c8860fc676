package balance

import (
	"time"

	"github.com/shopspring/decimal"
)

// OwnerBalance is one owner's aggregate position within a period. Charges
// combine direct service charges with allocated expense shares; Balance is
// contributions minus charges (positive = credit, negative = debt).
// ExpensesPaid tracks what the owner personally paid out, for reimbursement
// visibility; it does not enter the balance.
type OwnerBalance struct {
	OwnerID       int64           `json:"owner_id"`
	Contributions decimal.Decimal `json:"contributions"`
	ExpensesPaid  decimal.Decimal `json:"expenses_paid"`
	Charges       decimal.Decimal `json:"charges"`
	Balance       decimal.Decimal `json:"balance"`
}

// Sheet is the full balance sheet of a period. Always recomputed from
// ledger rows; cached copies are a convenience, never the source of truth.
type Sheet struct {
	PeriodID           int64           `json:"period_id"`
	Rows               []OwnerBalance  `json:"rows"`
	TotalContributions decimal.Decimal `json:"total_contributions"`
	TotalCharges       decimal.Decimal `json:"total_charges"`
	TotalBalance       decimal.Decimal `json:"total_balance"`
	ComputedAt         time.Time       `json:"computed_at"`
}

// OwnerAmount is a per-owner aggregate returned by the repository.
type OwnerAmount struct {
	OwnerID int64
	Amount  decimal.Decimal
}
