package owners

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/money"
	"github.com/kassa-fin/kassa/internal/shared"
)

// Owner is a co-owner of the shared property. ShareWeight is the ownership
// proportion used by proportional allocation; IsActive feeds the fixed-fee
// denominator.
type Owner struct {
	ID          int64
	Name        string
	Unit        string
	ShareWeight decimal.Decimal
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateInput carries fields for registering an owner.
type CreateInput struct {
	Name        string
	Unit        string
	ShareWeight decimal.Decimal
	IsActive    bool
}

// Validate checks the create input.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return shared.Validationf("owner name required")
	}
	if err := money.RequirePositive(in.ShareWeight, "share weight"); err != nil {
		return err
	}
	return nil
}

// UpdateInput carries fields for updating an owner.
type UpdateInput struct {
	Name        string
	Unit        string
	ShareWeight decimal.Decimal
	IsActive    bool
}

// Validate checks the update input.
func (in UpdateInput) Validate() error {
	return CreateInput{Name: in.Name, ShareWeight: in.ShareWeight}.Validate()
}

// ErrOwnerNotFound indicates an unknown owner id.
var ErrOwnerNotFound = shared.NotFoundf("owner not found")
