package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollCycle is the cadence a period is run on.
type PayrollCycle string

const (
	CycleMonthly     PayrollCycle = "monthly"
	CycleSemiMonthly PayrollCycle = "semi_monthly"
	CycleBiWeekly    PayrollCycle = "bi_weekly"
)

// Valid returns true when the cycle is a supported value.
func (c PayrollCycle) Valid() bool {
	switch c {
	case CycleMonthly, CycleSemiMonthly, CycleBiWeekly:
		return true
	default:
		return false
	}
}

// PeriodsPerYear returns how many periods of this cycle occur annually,
// used to annualize gross pay for the tax exemption check.
func (c PayrollCycle) PeriodsPerYear() int64 {
	switch c {
	case CycleSemiMonthly:
		return 24
	case CycleBiWeekly:
		return 26
	default:
		return 12
	}
}

// PeriodStatus is the payroll period lifecycle state. Transitions are
// strictly forward; see PeriodTransitionAllowed.
type PeriodStatus string

const (
	PeriodPendingComputation   PeriodStatus = "pending_computation"
	PeriodComputationCompleted PeriodStatus = "computation_completed"
	PeriodLocked               PeriodStatus = "locked"
	PeriodPayrollRun           PeriodStatus = "payroll_run"
)

var periodTransitions = map[PeriodStatus]PeriodStatus{
	PeriodPendingComputation:   PeriodComputationCompleted,
	PeriodComputationCompleted: PeriodLocked,
	PeriodLocked:               PeriodPayrollRun,
}

// PeriodTransitionAllowed reports whether from→to is a legal forward step.
func PeriodTransitionAllowed(from, to PeriodStatus) bool {
	return periodTransitions[from] == to
}

// PayrollPeriod bounds one payroll run. The attendance cutoff window may
// differ from the period's calendar dates.
type PayrollPeriod struct {
	ID                    string       `db:"id" json:"id"`
	Name                  string       `db:"name" json:"name"`
	Cycle                 PayrollCycle `db:"cycle" json:"cycle"`
	StartDate             time.Time    `db:"start_date" json:"start_date"`
	EndDate               time.Time    `db:"end_date" json:"end_date"`
	AttendanceCutoffStart time.Time    `db:"attendance_cutoff_start" json:"attendance_cutoff_start"`
	AttendanceCutoffEnd   time.Time    `db:"attendance_cutoff_end" json:"attendance_cutoff_end"`
	Status                PeriodStatus `db:"status" json:"status"`
	EmployeeCount         int          `db:"employee_count" json:"employee_count"`
	CreatedAt             time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at" json:"updated_at"`
}

// RecordStatus is the per-employee payroll record state.
type RecordStatus string

const (
	RecordDraft    RecordStatus = "draft"
	RecordComputed RecordStatus = "computed"
	RecordApproved RecordStatus = "approved"
	RecordLocked   RecordStatus = "locked"
	RecordPaid     RecordStatus = "paid"
)

// Computable reports whether the record may be (re)computed.
func (s RecordStatus) Computable() bool {
	return s == RecordDraft || s == RecordComputed
}

// Frozen reports whether the record's numeric fields are immutable.
func (s RecordStatus) Frozen() bool {
	return s == RecordLocked || s == RecordPaid
}

// PayrollRecord is one employee's earnings/deductions for one period.
type PayrollRecord struct {
	ID         string `db:"id" json:"id"`
	PeriodID   string `db:"period_id" json:"period_id"`
	EmployeeID string `db:"employee_id" json:"employee_id"`

	BasicSalary        decimal.Decimal `db:"basic_salary" json:"basic_salary"`
	OvertimePay        decimal.Decimal `db:"overtime_pay" json:"overtime_pay"`
	NightDifferential  decimal.Decimal `db:"night_differential" json:"night_differential"`
	HolidayPay         decimal.Decimal `db:"holiday_pay" json:"holiday_pay"`
	PaidLeavePay       decimal.Decimal `db:"paid_leave_pay" json:"paid_leave_pay"`
	Allowances         decimal.Decimal `db:"allowances" json:"allowances"`
	GrossPay           decimal.Decimal `db:"gross_pay" json:"gross_pay"`

	LateDeduction      decimal.Decimal `db:"late_deduction" json:"late_deduction"`
	UndertimeDeduction decimal.Decimal `db:"undertime_deduction" json:"undertime_deduction"`
	AbsenceDeduction   decimal.Decimal `db:"absence_deduction" json:"absence_deduction"`
	SSS                decimal.Decimal `db:"sss_contribution" json:"sss_contribution"`
	PhilHealth         decimal.Decimal `db:"philhealth_contribution" json:"philhealth_contribution"`
	PagIBIG            decimal.Decimal `db:"pagibig_contribution" json:"pagibig_contribution"`
	WithholdingTax     decimal.Decimal `db:"withholding_tax" json:"withholding_tax"`
	OtherDeductions    decimal.Decimal `db:"other_deductions" json:"other_deductions"`
	TotalDeductions    decimal.Decimal `db:"total_deductions" json:"total_deductions"`

	// NetPay may be negative; deficits are reported, never clamped.
	NetPay decimal.Decimal `db:"net_pay" json:"net_pay"`

	Status     RecordStatus `db:"status" json:"status"`
	Version    int          `db:"version" json:"version"`
	ComputedAt *time.Time   `db:"computed_at" json:"computed_at,omitempty"`
	ApprovedAt *time.Time   `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy *string      `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// EarningsTotal sums the earnings side; the stored GrossPay must equal it.
func (r *PayrollRecord) EarningsTotal() decimal.Decimal {
	return r.BasicSalary.
		Add(r.OvertimePay).
		Add(r.NightDifferential).
		Add(r.HolidayPay).
		Add(r.PaidLeavePay).
		Add(r.Allowances)
}

// DeductionsTotal sums the deduction side; the stored TotalDeductions must
// equal it.
func (r *PayrollRecord) DeductionsTotal() decimal.Decimal {
	return r.LateDeduction.
		Add(r.UndertimeDeduction).
		Add(r.AbsenceDeduction).
		Add(r.SSS).
		Add(r.PhilHealth).
		Add(r.PagIBIG).
		Add(r.WithholdingTax).
		Add(r.OtherDeductions)
}

// Payslip is the materialized output of a locked period, one per record.
type Payslip struct {
	ID         string          `db:"id" json:"id"`
	PeriodID   string          `db:"period_id" json:"period_id"`
	RecordID   string          `db:"record_id" json:"record_id"`
	EmployeeID string          `db:"employee_id" json:"employee_id"`
	NetPay     decimal.Decimal `db:"net_pay" json:"net_pay"`
	IssuedAt   time.Time       `db:"issued_at" json:"issued_at"`
}

// ComputeOutcome reports one employee's result within a batch computation.
type ComputeOutcome struct {
	EmployeeID string `json:"employee_id"`
	RecordID   string `json:"record_id,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// ComputeBatchResult aggregates per-employee outcomes; one failure never
// aborts the rest of the batch.
type ComputeBatchResult struct {
	PeriodID     string           `json:"period_id"`
	PeriodStatus PeriodStatus     `json:"period_status"`
	Outcomes     []ComputeOutcome `json:"outcomes"`
	Succeeded    int              `json:"succeeded"`
	Failed       int              `json:"failed"`
}

// PeriodSummary is the cached aggregate view of one period.
type PeriodSummary struct {
	PeriodID        string                 `json:"period_id"`
	Status          PeriodStatus           `json:"status"`
	EmployeeCount   int                    `json:"employee_count"`
	TotalGross      decimal.Decimal        `json:"total_gross"`
	TotalDeductions decimal.Decimal        `json:"total_deductions"`
	TotalNet        decimal.Decimal        `json:"total_net"`
	StatusCounts    map[RecordStatus]int   `json:"status_counts"`
	GeneratedAt     time.Time              `json:"generated_at"`
}
