package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/allocation"
	"github.com/kassa-fin/kassa/internal/money"
	"github.com/kassa-fin/kassa/internal/shared"
)

// CreateContributionInput groups fields for recording a contribution.
type CreateContributionInput struct {
	PeriodID int64
	OwnerID  int64
	Amount   decimal.Decimal
	Date     time.Time
	Comment  string
}

func (in CreateContributionInput) Validate() error {
	if in.PeriodID == 0 || in.OwnerID == 0 {
		return shared.Validationf("period and owner required")
	}
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	return validateAmount(in.Amount)
}

// UpdateContributionInput carries editable contribution fields.
type UpdateContributionInput struct {
	Amount  decimal.Decimal
	Date    time.Time
	Comment string
}

func (in UpdateContributionInput) Validate() error {
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	return validateAmount(in.Amount)
}

// CreateExpenseInput groups fields for recording an expense.
type CreateExpenseInput struct {
	PeriodID      int64
	PaidByOwnerID int64
	BudgetItemID  *int64
	Amount        decimal.Decimal
	PaymentType   string
	Date          time.Time
	Vendor        string
	Description   string
}

func (in CreateExpenseInput) Validate() error {
	if in.PeriodID == 0 || in.PaidByOwnerID == 0 {
		return shared.Validationf("period and paying owner required")
	}
	if strings.TrimSpace(in.PaymentType) == "" {
		return shared.Validationf("payment type required")
	}
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	return validateAmount(in.Amount)
}

// UpdateExpenseInput carries editable expense fields. Changing the amount or
// budget item recomputes the allocated shares.
type UpdateExpenseInput struct {
	BudgetItemID *int64
	Amount       decimal.Decimal
	PaymentType  string
	Date         time.Time
	Vendor       string
	Description  string
}

func (in UpdateExpenseInput) Validate() error {
	if strings.TrimSpace(in.PaymentType) == "" {
		return shared.Validationf("payment type required")
	}
	if in.Date.IsZero() {
		return shared.Validationf("date required")
	}
	return validateAmount(in.Amount)
}

// CreateChargeInput groups fields for a direct service charge.
type CreateChargeInput struct {
	PeriodID    int64
	OwnerID     int64
	Amount      decimal.Decimal
	Description string
}

func (in CreateChargeInput) Validate() error {
	if in.PeriodID == 0 || in.OwnerID == 0 {
		return shared.Validationf("period and owner required")
	}
	return validateAmount(in.Amount)
}

// UpdateChargeInput carries editable service charge fields.
type UpdateChargeInput struct {
	Amount      decimal.Decimal
	Description string
}

func (in UpdateChargeInput) Validate() error {
	return validateAmount(in.Amount)
}

// CreateBudgetItemInput defines the allocation policy for a payment type.
type CreateBudgetItemInput struct {
	PeriodID       int64
	PaymentType    string
	BudgetedAmount decimal.Decimal
	Strategy       allocation.Strategy
	MeterType      *string
}

func (in CreateBudgetItemInput) Validate() error {
	if in.PeriodID == 0 {
		return shared.Validationf("period required")
	}
	if strings.TrimSpace(in.PaymentType) == "" {
		return shared.Validationf("payment type required")
	}
	if !in.Strategy.Valid() {
		return shared.Validationf("unknown allocation strategy %q", in.Strategy)
	}
	if in.Strategy == allocation.StrategyUsageBased {
		if in.MeterType == nil || strings.TrimSpace(*in.MeterType) == "" {
			return shared.Validationf("usage-based budget item requires a meter type")
		}
	} else if in.MeterType != nil {
		return shared.Validationf("meter type is only valid for usage-based items")
	}
	return validateAmount(in.BudgetedAmount)
}

// CreateReadingInput records one owner's meter window.
type CreateReadingInput struct {
	PeriodID     int64
	OwnerID      int64
	MeterType    string
	StartReading decimal.Decimal
	EndReading   decimal.Decimal
}

func (in CreateReadingInput) Validate() error {
	if in.PeriodID == 0 || in.OwnerID == 0 {
		return shared.Validationf("period and owner required")
	}
	if strings.TrimSpace(in.MeterType) == "" {
		return shared.Validationf("meter type required")
	}
	if in.StartReading.IsNegative() {
		return shared.Validationf("start reading must not be negative")
	}
	if !in.EndReading.GreaterThan(in.StartReading) {
		return shared.Validationf("end reading must be greater than start reading")
	}
	return nil
}

func validateAmount(d decimal.Decimal) error {
	if err := money.RequirePositive(d, "amount"); err != nil {
		return err
	}
	return money.RequireScale(d, "amount")
}
