package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/pkg/config"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
)

type recordRepo interface {
	FindByID(ctx context.Context, id string) (*models.PayrollRecord, error)
	FindByPeriodAndEmployee(ctx context.Context, periodID, employeeID string) (*models.PayrollRecord, error)
	SaveComputed(ctx context.Context, record *models.PayrollRecord) error
	ListComputableByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) ([]models.PayrollRecord, error)
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.PayrollPeriod, error)
}

type attendanceReader interface {
	ListByEmployeeRange(ctx context.Context, employeeID string, from, to time.Time) ([]models.AttendanceDay, error)
}

type approvedLeaveReader interface {
	ListApprovedLeaveOverlapping(ctx context.Context, employeeID string, from, to time.Time) ([]models.ApprovalRequest, error)
}

type settingsReader interface {
	GetTaxSettings(ctx context.Context) (*models.TaxSettings, error)
	ListTaxBrackets(ctx context.Context) ([]models.TaxBracket, error)
	ListContributionBrackets(ctx context.Context) ([]models.ContributionBracket, error)
	ListHolidays(ctx context.Context, from, to time.Time) ([]models.Holiday, error)
}

// PayrollService computes one employee's payroll record for one period from
// attendance, rates, approved leave and the statutory tables.
type PayrollService struct {
	records    recordRepo
	periods    periodReader
	employees  employeeReader
	attendance attendanceReader
	approvals  approvedLeaveReader
	settings   settingsReader
	cfg        config.PayrollConfig
	locks      *KeyedLocks
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewPayrollService constructs PayrollService. The keyed lock set is shared
// with the period lifecycle so compute, approve and freeze serialize on the
// same record keys.
func NewPayrollService(records recordRepo, periods periodReader, employees employeeReader,
	attendance attendanceReader, approvals approvedLeaveReader, settings settingsReader,
	cfg config.PayrollConfig, locks *KeyedLocks, metrics *MetricsService, logger *zap.Logger) *PayrollService {
	if locks == nil {
		locks = NewKeyedLocks()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayrollService{
		records:    records,
		periods:    periods,
		employees:  employees,
		attendance: attendance,
		approvals:  approvals,
		settings:   settings,
		cfg:        cfg,
		locks:      locks,
		metrics:    metrics,
		logger:     logger,
	}
}

// ComputeRecord recomputes the payroll record for one employee in one period
// and transitions it draft→computed. Approved, locked and paid records are
// never recomputed.
func (s *PayrollService) ComputeRecord(ctx context.Context, periodID, employeeID string) (*models.PayrollRecord, error) {
	unlock := s.locks.Lock("record:" + periodID + ":" + employeeID)
	defer unlock()

	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payroll period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payroll period")
	}
	if period.Status == models.PeriodLocked || period.Status == models.PeriodPayrollRun {
		return nil, appErrors.WithState(appErrors.ErrPeriodLocked, string(period.Status))
	}

	record, err := s.records.FindByPeriodAndEmployee(ctx, periodID, employeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payroll record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payroll record")
	}
	if !record.Status.Computable() {
		return nil, appErrors.WithState(appErrors.ErrRecordNotComputable, string(record.Status))
	}

	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	start := time.Now()
	if err := s.fillAmounts(ctx, record, employee, period); err != nil {
		s.metrics.ObserveComputation(false, time.Since(start))
		return nil, err
	}

	now := time.Now().UTC()
	record.ComputedAt = &now
	record.Status = models.RecordComputed
	if err := s.records.SaveComputed(ctx, record); err != nil {
		s.metrics.ObserveComputation(false, time.Since(start))
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrRecordNotComputable, "payroll record changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save computed record")
	}
	s.metrics.ObserveComputation(true, time.Since(start))

	if record.NetPay.IsNegative() {
		s.logger.Sugar().Warnw("negative net pay",
			"period_id", periodID, "employee_id", employeeID, "net_pay", record.NetPay.String())
	}
	return record, nil
}

// RecomputeForDate recomputes every draft/computed record whose attendance
// cutoff window covers the given date. The recompute queue calls this after
// an approved time correction rewrites an attendance day.
func (s *PayrollService) RecomputeForDate(ctx context.Context, employeeID string, date time.Time) error {
	records, err := s.records.ListComputableByEmployeeAndDate(ctx, employeeID, date)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list affected records")
	}
	for _, record := range records {
		if _, err := s.ComputeRecord(ctx, record.PeriodID, employeeID); err != nil {
			return err
		}
	}
	return nil
}

// GetRecord returns a single payroll record.
func (s *PayrollService) GetRecord(ctx context.Context, id string) (*models.PayrollRecord, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payroll record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payroll record")
	}
	return record, nil
}

// fillAmounts writes every earnings and deduction field onto the record.
// Amounts are exact decimals; rounding happens once, per stored field.
func (s *PayrollService) fillAmounts(ctx context.Context, record *models.PayrollRecord, employee *models.Employee, period *models.PayrollPeriod) error {
	from, to := period.AttendanceCutoffStart, period.AttendanceCutoffEnd

	days, err := s.attendance.ListByEmployeeRange(ctx, employee.ID, from, to)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	holidays, err := s.settings.ListHolidays(ctx, from, to)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}
	leaves, err := s.approvals.ListApprovedLeaveOverlapping(ctx, employee.ID, from, to)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved leave")
	}
	taxSettings, err := s.settings.GetTaxSettings(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tax settings")
	}
	schedule, err := s.settings.ListTaxBrackets(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tax brackets")
	}
	contributionTable, err := s.settings.ListContributionBrackets(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contribution brackets")
	}

	rates := ResolveRates(employee, s.cfg)
	holidaySet := dateSet(holidays)
	leaveSet := s.leaveDates(leaves, from, to)
	attended := make(map[string]*models.AttendanceDay, len(days))
	for i := range days {
		attended[dayKey(days[i].Date)] = &days[i]
	}

	var (
		workedPay    = decimal.Zero
		latePay      = decimal.Zero
		undertimePay = decimal.Zero
		absentDays   int
		overtimePay  = decimal.Zero
		nightPay     = decimal.Zero
		holidayPay   = decimal.Zero
	)

	onTime := parseClock(s.cfg.OnTimeCutoff, 9*60)
	otMultiplier := decimal.NewFromFloat(s.cfg.OvertimeMultiplier)
	nightFactor := decimal.NewFromFloat(s.cfg.NightDiffFactor)
	holidayMultiplier := decimal.NewFromFloat(s.cfg.HolidayMultiplier)

	for cursor := dateOnly(from); !cursor.After(dateOnly(to)); cursor = cursor.AddDate(0, 0, 1) {
		key := dayKey(cursor)
		onLeave := leaveSet[key]
		isHoliday := holidaySet[key]
		workday := s.isWorkday(cursor)

		day, ok := attended[key]
		if !ok || day.Status == models.AttendanceAbsent {
			if workday && !onLeave && !isHoliday {
				absentDays++
			}
			continue
		}

		worked := day.TotalHours
		capped := decimal.Min(worked, rates.ScheduledHours)
		workedPay = workedPay.Add(capped.Mul(rates.Hourly))

		shortfall := rates.ScheduledHours.Sub(worked)
		if shortfall.IsPositive() {
			late := lateHours(day.CheckIn, onTime)
			if late.GreaterThan(shortfall) {
				late = shortfall
			}
			latePay = latePay.Add(late.Mul(rates.Hourly))
			undertimePay = undertimePay.Add(shortfall.Sub(late).Mul(rates.Hourly))
		}

		excess := worked.Sub(rates.ScheduledHours)
		if excess.IsPositive() {
			overtimePay = overtimePay.Add(excess.Mul(rates.Hourly).Mul(otMultiplier))
		}

		if day.CheckIn != nil && day.CheckOut != nil {
			night := s.nightHours(*day.CheckIn, *day.CheckOut)
			nightPay = nightPay.Add(night.Mul(rates.Hourly).Mul(nightFactor))
		}

		if isHoliday && worked.IsPositive() {
			holidayPay = holidayPay.Add(capped.Mul(rates.Hourly).Mul(holidayMultiplier))
		}
	}

	factor := cycleFactor(period.Cycle)
	record.AbsenceDeduction = rates.Daily.Mul(decimal.NewFromInt(int64(absentDays))).Round(2)
	if employee.PayBasis == models.PayBasisSalaried {
		prorated := employee.MonthlyRate.Mul(factor)
		record.BasicSalary = prorated.Sub(record.AbsenceDeduction).Round(2)
	} else {
		record.BasicSalary = workedPay.Round(2)
	}
	record.OvertimePay = overtimePay.Round(2)
	record.NightDifferential = nightPay.Round(2)
	record.HolidayPay = holidayPay.Round(2)
	record.PaidLeavePay = rates.Daily.Mul(decimal.NewFromInt(int64(len(leaveSet)))).Round(2)
	record.Allowances = employee.MealAllowance.
		Add(employee.TransportAllowance).
		Add(employee.OtherAllowance).
		Mul(factor).Round(2)
	record.GrossPay = record.EarningsTotal()

	contributions := Contributions(record.GrossPay, contributionTable)
	record.LateDeduction = latePay.Round(2)
	record.UndertimeDeduction = undertimePay.Round(2)
	record.SSS = contributions.SSS
	record.PhilHealth = contributions.PhilHealth
	record.PagIBIG = contributions.PagIBIG
	record.WithholdingTax = Withholding(record.GrossPay, period.Cycle, *taxSettings, schedule)
	record.TotalDeductions = record.DeductionsTotal()
	record.NetPay = record.GrossPay.Sub(record.TotalDeductions)
	return nil
}

// leaveDates expands overlapping approved leave requests into the set of
// countable dates inside the cutoff window, on the leave workweek calendar.
func (s *PayrollService) leaveDates(leaves []models.ApprovalRequest, from, to time.Time) map[string]bool {
	out := make(map[string]bool)
	for _, leave := range leaves {
		if leave.LeaveStart == nil || leave.LeaveEnd == nil {
			continue
		}
		start := maxDate(dateOnly(*leave.LeaveStart), dateOnly(from))
		end := minDate(dateOnly(*leave.LeaveEnd), dateOnly(to))
		for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, 1) {
			if s.isWorkday(cursor) {
				out[dayKey(cursor)] = true
			}
		}
	}
	return out
}

// isWorkday applies the leave workweek calendar: 6 days excludes Sunday,
// 5 days excludes the whole weekend.
func (s *PayrollService) isWorkday(date time.Time) bool {
	switch date.Weekday() {
	case time.Sunday:
		return false
	case time.Saturday:
		return s.cfg.LeaveWorkweekDays > 5
	default:
		return true
	}
}

// nightHours returns the worked hours falling inside the configured night
// window, which wraps midnight.
func (s *PayrollService) nightHours(checkIn, checkOut time.Time) decimal.Decimal {
	nightStart := parseClock(s.cfg.NightStart, 22*60)
	nightEnd := parseClock(s.cfg.NightEnd, 6*60)

	total := decimal.Zero
	// The shift may touch the night window anchored on its own date and the
	// windows on the adjacent dates.
	for offset := -1; offset <= 1; offset++ {
		anchor := dateOnly(checkIn).AddDate(0, 0, offset)
		windowStart := anchor.Add(time.Duration(nightStart) * time.Minute)
		windowEnd := anchor.AddDate(0, 0, 1).Add(time.Duration(nightEnd) * time.Minute)
		total = total.Add(overlapHours(checkIn, checkOut, windowStart, windowEnd))
	}
	return total
}

func overlapHours(aStart, aEnd, bStart, bEnd time.Time) decimal.Decimal {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	return hoursBetween(start, end)
}

// lateHours measures how far past the on-time cutoff the check-in landed.
func lateHours(checkIn *time.Time, onTimeCutoff int) decimal.Decimal {
	if checkIn == nil {
		return decimal.Zero
	}
	minutes := checkIn.Hour()*60 + checkIn.Minute()
	if minutes <= onTimeCutoff {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(minutes - onTimeCutoff)).Div(decimal.NewFromInt(60)).Round(2)
}

// cycleFactor pro-rates monthly amounts onto the period's cadence.
func cycleFactor(cycle models.PayrollCycle) decimal.Decimal {
	switch cycle {
	case models.CycleSemiMonthly:
		return decimal.NewFromFloat(0.5)
	case models.CycleBiWeekly:
		return decimal.NewFromInt(12).Div(decimal.NewFromInt(26))
	default:
		return decimal.NewFromInt(1)
	}
}

func dateSet(holidays []models.Holiday) map[string]bool {
	out := make(map[string]bool, len(holidays))
	for _, holiday := range holidays {
		out[dayKey(holiday.Date)] = true
	}
	return out
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
