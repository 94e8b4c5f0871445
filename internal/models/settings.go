package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxSettings is the single-row tax exemption configuration. It is always
// passed into computations explicitly; nothing reads it as ambient state.
type TaxSettings struct {
	ID                   string          `db:"id" json:"id"`
	MinimumTaxableIncome decimal.Decimal `db:"minimum_taxable_income" json:"minimum_taxable_income"`
	TaxExemptionEnabled  bool            `db:"tax_exemption_enabled" json:"tax_exemption_enabled"`
	AutoApplyExemption   bool            `db:"auto_apply_exemption" json:"auto_apply_exemption"`
	UpdatedBy            *string         `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// TaxBracket is one row of the withholding schedule, applied to annualized
// income above the exemption threshold.
type TaxBracket struct {
	ID         string          `db:"id" json:"id"`
	LowerBound decimal.Decimal `db:"lower_bound" json:"lower_bound"`
	BaseTax    decimal.Decimal `db:"base_tax" json:"base_tax"`
	Rate       decimal.Decimal `db:"rate" json:"rate"`
}

// ContributionKind identifies a statutory contribution scheme.
type ContributionKind string

const (
	ContributionSSS        ContributionKind = "sss"
	ContributionPhilHealth ContributionKind = "philhealth"
	ContributionPagIBIG    ContributionKind = "pagibig"
)

// ContributionBracket maps a gross pay range to an employee share amount.
// The bracket table is external configuration; lookup is a pure function.
type ContributionBracket struct {
	ID         string           `db:"id" json:"id"`
	Kind       ContributionKind `db:"kind" json:"kind"`
	GrossFloor decimal.Decimal  `db:"gross_floor" json:"gross_floor"`
	GrossCeil  decimal.Decimal  `db:"gross_ceil" json:"gross_ceil"`
	Amount     decimal.Decimal  `db:"amount" json:"amount"`
}

// Contributions is the looked-up statutory deduction set for one gross pay.
type Contributions struct {
	SSS        decimal.Decimal `json:"sss"`
	PhilHealth decimal.Decimal `json:"philhealth"`
	PagIBIG    decimal.Decimal `json:"pagibig"`
}

// Holiday flags a calendar date for holiday pay computation.
type Holiday struct {
	ID   string    `db:"id" json:"id"`
	Date time.Time `db:"date" json:"date"`
	Name string    `db:"name" json:"name"`
}
