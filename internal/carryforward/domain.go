package carryforward

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/ledger"
	"github.com/kassa-fin/kassa/internal/shared"
)

// Comments stamped on opening rows.
const (
	OpeningBalanceComment = "Opening balance from previous period"
	OpeningDebtComment    = "Opening debt from previous period"
)

// RowType distinguishes the ledger row an opening balance became.
type RowType string

const (
	RowTypeContribution  RowType = "CONTRIBUTION"
	RowTypeServiceCharge RowType = "SERVICE_CHARGE"
)

// Run records one carry-forward execution. Runs are distinct financial
// events: executing twice between the same periods produces two row sets.
type Run struct {
	ID              uuid.UUID
	FromPeriodID    int64
	ToPeriodID      int64
	OwnersProcessed int
	TotalCredits    decimal.Decimal
	TotalDebts      decimal.Decimal
	CreatedAt       time.Time
}

// Item is one owner's carried amount within a run.
type Item struct {
	OwnerID int64
	Amount  decimal.Decimal
	RowType RowType
}

// Summary reports what a run wrote.
type Summary struct {
	Run   Run
	Items []Item
}

// OpeningRows groups the ledger rows written by carry-forward into a period.
type OpeningRows struct {
	Contributions []ledger.Contribution
	Charges       []ledger.ServiceCharge
}

var (
	// ErrSourceNotClosed rejects carrying forward from an open period.
	ErrSourceNotClosed = shared.Conflictf("source period must be closed")
	// ErrSourceChanged rejects a run whose source period was reopened and
	// closed again after its balances were snapshotted.
	ErrSourceChanged = shared.Conflictf("source period changed during carry-forward")
	// ErrSamePeriod rejects carrying a period into itself.
	ErrSamePeriod = shared.Validationf("source and target period must differ")
)
