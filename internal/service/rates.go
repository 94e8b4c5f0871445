package service

import (
	"github.com/shopspring/decimal"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/pkg/config"
)

// Rates is the resolved per-day and per-hour compensation for one employee.
type Rates struct {
	Daily  decimal.Decimal
	Hourly decimal.Decimal

	// ScheduledHours is the employee's daily schedule used for caps,
	// shortfalls and overtime boundaries.
	ScheduledHours decimal.Decimal
}

// ResolveRates derives daily/hourly rates from the employee's pay basis.
// Salaried employees divide their monthly rate by the configured working
// days per month (a fixed simplification, not a calendar-aware count);
// daily-paid employees use their configured rates directly.
func ResolveRates(employee *models.Employee, cfg config.PayrollConfig) Rates {
	workHours := employee.WorkHoursPerDay
	if workHours <= 0 {
		workHours = cfg.DefaultWorkHoursPerDay
	}
	scheduled := decimal.NewFromInt(int64(workHours))

	if employee.PayBasis == models.PayBasisSalaried {
		daily := employee.MonthlyRate.Div(decimal.NewFromInt(int64(cfg.WorkingDaysPerMonth)))
		return Rates{
			Daily:          daily,
			Hourly:         daily.Div(scheduled),
			ScheduledHours: scheduled,
		}
	}

	hourly := employee.HourlyRate
	if hourly.IsZero() && !employee.DailyRate.IsZero() {
		hourly = employee.DailyRate.Div(scheduled)
	}
	return Rates{
		Daily:          employee.DailyRate,
		Hourly:         hourly,
		ScheduledHours: scheduled,
	}
}
