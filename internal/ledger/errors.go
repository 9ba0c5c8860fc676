package ledger

import "github.com/kassa-fin/kassa/internal/shared"

var (
	// ErrContributionNotFound indicates a missing contribution id.
	ErrContributionNotFound = shared.NotFoundf("contribution not found")
	// ErrExpenseNotFound indicates a missing expense id.
	ErrExpenseNotFound = shared.NotFoundf("expense not found")
	// ErrChargeNotFound indicates a missing service charge id.
	ErrChargeNotFound = shared.NotFoundf("service charge not found")
	// ErrBudgetItemNotFound indicates a missing budget item id.
	ErrBudgetItemNotFound = shared.NotFoundf("budget item not found")
	// ErrBudgetItemPeriodMismatch rejects expenses referencing a budget item
	// from a different period.
	ErrBudgetItemPeriodMismatch = shared.Validationf("budget item belongs to a different period")
	// ErrDuplicateBudgetItem rejects a second item for the same payment type.
	ErrDuplicateBudgetItem = shared.Conflictf("budget item already defined for that payment type")
)
