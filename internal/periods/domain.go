package periods

import (
	"strings"
	"time"

	"github.com/kassa-fin/kassa/internal/shared"
)

// Status enumerates service period states. A period cycles between OPEN and
// CLOSED indefinitely to support correction workflows.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Period is a bounded accounting interval scoping a closed set of ledger rows.
type Period struct {
	ID          int64
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Status      Status
	ClosedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Year returns the calendar year the period starts in. Period names must be
// unique within it.
func (p Period) Year() int {
	return p.StartDate.Year()
}

// CreateInput captures fields for opening a new period.
type CreateInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// Validate ensures the create input is coherent.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validationf("period name required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return shared.Validationf("start and end date required")
	}
	if !in.StartDate.Before(in.EndDate) {
		return shared.Validationf("start date must be before end date")
	}
	return nil
}

var (
	// ErrPeriodNotFound indicates an unknown period id.
	ErrPeriodNotFound = shared.NotFoundf("period not found")
	// ErrDuplicateName indicates a name collision within the same year.
	ErrDuplicateName = shared.Conflictf("period name already used for that year")
	// ErrAlreadyClosed indicates a close of an already closed period.
	ErrAlreadyClosed = shared.Conflictf("period already closed")
	// ErrAlreadyOpen indicates a reopen of an already open period.
	ErrAlreadyOpen = shared.Conflictf("period already open")
	// ErrNotOpen gates every ledger mutation.
	ErrNotOpen = shared.Conflictf("period is not open")
)
