package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/pkg/config"
)

func testPayrollConfig() config.PayrollConfig {
	return config.PayrollConfig{
		WorkingDaysPerMonth:    22,
		DefaultWorkHoursPerDay: 8,
		OnTimeCutoff:           "09:00",
		AbsenceCutoff:          "13:30",
		NightStart:             "22:00",
		NightEnd:               "06:00",
		OvertimeMultiplier:     1.25,
		NightDiffFactor:        0.10,
		HolidayMultiplier:      1.0,
		LeaveWorkweekDays:      6,
	}
}

func TestResolveRatesSalaried(t *testing.T) {
	employee := &models.Employee{
		PayBasis:        models.PayBasisSalaried,
		MonthlyRate:     decimal.NewFromInt(22000),
		WorkHoursPerDay: 8,
	}
	rates := ResolveRates(employee, testPayrollConfig())
	require.True(t, rates.Daily.Equal(decimal.NewFromInt(1000)), "daily = %s", rates.Daily)
	require.True(t, rates.Hourly.Equal(decimal.NewFromInt(125)), "hourly = %s", rates.Hourly)
	require.True(t, rates.ScheduledHours.Equal(decimal.NewFromInt(8)))
}

func TestResolveRatesDailyPaid(t *testing.T) {
	employee := &models.Employee{
		PayBasis:   models.PayBasisDaily,
		DailyRate:  decimal.NewFromInt(800),
		HourlyRate: decimal.NewFromInt(100),
	}
	rates := ResolveRates(employee, testPayrollConfig())
	require.True(t, rates.Daily.Equal(decimal.NewFromInt(800)))
	require.True(t, rates.Hourly.Equal(decimal.NewFromInt(100)))
}

func TestResolveRatesDailyPaidDerivesHourly(t *testing.T) {
	employee := &models.Employee{
		PayBasis:  models.PayBasisDaily,
		DailyRate: decimal.NewFromInt(960),
	}
	rates := ResolveRates(employee, testPayrollConfig())
	require.True(t, rates.Hourly.Equal(decimal.NewFromInt(120)), "hourly = %s", rates.Hourly)
}

func TestResolveRatesFallsBackToDefaultHours(t *testing.T) {
	employee := &models.Employee{
		PayBasis:    models.PayBasisSalaried,
		MonthlyRate: decimal.NewFromInt(22000),
	}
	rates := ResolveRates(employee, testPayrollConfig())
	require.True(t, rates.ScheduledHours.Equal(decimal.NewFromInt(8)))
}
