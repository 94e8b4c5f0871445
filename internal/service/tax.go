package service

import (
	"github.com/shopspring/decimal"

	"github.com/bayani-hr/payroll-api/internal/models"
)

// Withholding computes the statutory withholding tax for one period's gross
// pay. Settings and the schedule are passed in explicitly so the function
// stays pure; nothing reads process-wide state.
//
// When the exemption applies (enabled and annualized gross below the
// threshold) the tax is zero. Otherwise the schedule is applied to the
// annualized excess over the threshold and the annual tax is spread back
// across the cycle's periods.
func Withholding(gross decimal.Decimal, cycle models.PayrollCycle, settings models.TaxSettings, schedule []models.TaxBracket) decimal.Decimal {
	periods := decimal.NewFromInt(cycle.PeriodsPerYear())
	annualized := gross.Mul(periods)

	if settings.TaxExemptionEnabled && annualized.LessThan(settings.MinimumTaxableIncome) {
		return decimal.Zero
	}

	excess := annualized.Sub(settings.MinimumTaxableIncome)
	if excess.IsNegative() {
		excess = decimal.Zero
	}

	annualTax := applySchedule(excess, schedule)
	return annualTax.Div(periods).Round(2)
}

// applySchedule walks the withholding brackets, highest lower bound first,
// and returns baseTax + rate × amount-above-that-bound.
func applySchedule(excess decimal.Decimal, schedule []models.TaxBracket) decimal.Decimal {
	var chosen *models.TaxBracket
	for i := range schedule {
		bracket := &schedule[i]
		if excess.GreaterThanOrEqual(bracket.LowerBound) {
			if chosen == nil || bracket.LowerBound.GreaterThan(chosen.LowerBound) {
				chosen = bracket
			}
		}
	}
	if chosen == nil {
		return decimal.Zero
	}
	return chosen.BaseTax.Add(excess.Sub(chosen.LowerBound).Mul(chosen.Rate))
}

// Contributions looks up the statutory employee shares for one gross pay.
// The bracket table is external configuration; this is a pure function of
// its rows.
func Contributions(gross decimal.Decimal, brackets []models.ContributionBracket) models.Contributions {
	result := models.Contributions{
		SSS:        decimal.Zero,
		PhilHealth: decimal.Zero,
		PagIBIG:    decimal.Zero,
	}
	for _, bracket := range brackets {
		if gross.LessThan(bracket.GrossFloor) || gross.GreaterThan(bracket.GrossCeil) {
			continue
		}
		switch bracket.Kind {
		case models.ContributionSSS:
			result.SSS = bracket.Amount
		case models.ContributionPhilHealth:
			result.PhilHealth = bracket.Amount
		case models.ContributionPagIBIG:
			result.PagIBIG = bracket.Amount
		}
	}
	return result
}
