package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/allocation"
)

// Contribution is money paid in by an owner. Rows written by the
// carry-forward processor carry the run id that produced them.
type Contribution struct {
	ID                int64
	PeriodID          int64
	OwnerID           int64
	Amount            decimal.Decimal
	Date              time.Time
	Comment           string
	CarryForwardRunID *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Expense is community spending attributable to the owner who paid it and
// optionally to a budget item for automatic allocation.
type Expense struct {
	ID            int64
	PeriodID      int64
	PaidByOwnerID int64
	BudgetItemID  *int64
	Amount        decimal.Decimal
	PaymentType   string
	Date          time.Time
	Vendor        string
	Description   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExpenseShare is one owner's allocated portion of an expense. Shares are
// materialized in the same transaction as the expense so that allocation is
// inspectable and the balance calculator stays a pure aggregation.
type ExpenseShare struct {
	ID        int64
	ExpenseID int64
	OwnerID   int64
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// ServiceCharge is a direct charge against one owner, bypassing allocation.
type ServiceCharge struct {
	ID                int64
	PeriodID          int64
	OwnerID           int64
	Amount            decimal.Decimal
	Description       string
	CarryForwardRunID *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BudgetItem defines the allocation policy for one payment type within a
// period. MeterType is set only for usage-based items.
type BudgetItem struct {
	ID             int64
	PeriodID       int64
	PaymentType    string
	BudgetedAmount decimal.Decimal
	Strategy       allocation.Strategy
	MeterType      *string
	CreatedAt      time.Time
}

// BudgetItemUtilization pairs a budget item with the actual spend recorded
// against its payment type.
type BudgetItemUtilization struct {
	BudgetItem
	ActualAmount decimal.Decimal
}

// UtilityReading is one owner's meter reading window within a period.
type UtilityReading struct {
	ID           int64
	PeriodID     int64
	OwnerID      int64
	MeterType    string
	StartReading decimal.Decimal
	EndReading   decimal.Decimal
	CreatedAt    time.Time
}

// Consumption returns the metered usage for the reading window.
func (r UtilityReading) Consumption() decimal.Decimal {
	return r.EndReading.Sub(r.StartReading)
}

// OwnerConsumption aggregates consumption per owner for one meter type.
type OwnerConsumption struct {
	OwnerID     int64
	Consumption decimal.Decimal
}
