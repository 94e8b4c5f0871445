package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bayani-hr/payroll-api/internal/models"
)

const recordColumns = `id, period_id, employee_id, basic_salary, overtime_pay, night_differential, holiday_pay,
paid_leave_pay, allowances, gross_pay, late_deduction, undertime_deduction, absence_deduction, sss_contribution,
philhealth_contribution, pagibig_contribution, withholding_tax, other_deductions, total_deductions, net_pay,
status, version, computed_at, approved_at, approved_by, created_at, updated_at`

// RecordRepository handles persistence for per-employee payroll records.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// BulkCreateDrafts inserts one draft record per employee inside a
// transaction; used by period initialization.
func (r *RecordRepository) BulkCreateDrafts(ctx context.Context, periodID string, employeeIDs []string) error {
	if len(employeeIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin draft tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	query := `INSERT INTO payroll_records (id, period_id, employee_id, status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, 1, $5, $6)
ON CONFLICT (period_id, employee_id) DO NOTHING`
	for _, employeeID := range employeeIDs {
		if _, err := tx.ExecContext(ctx, query, uuid.NewString(), periodID, employeeID, models.RecordDraft, now, now); err != nil {
			return fmt.Errorf("create draft record for %s: %w", employeeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit draft tx: %w", err)
	}
	return nil
}

// FindByID returns a single record.
func (r *RecordRepository) FindByID(ctx context.Context, id string) (*models.PayrollRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM payroll_records WHERE id = $1`, recordColumns)
	var record models.PayrollRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payroll record %s: %w", id, err)
	}
	return &record, nil
}

// FindByPeriodAndEmployee returns the record for one employee in one period.
func (r *RecordRepository) FindByPeriodAndEmployee(ctx context.Context, periodID, employeeID string) (*models.PayrollRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM payroll_records WHERE period_id = $1 AND employee_id = $2`, recordColumns)
	var record models.PayrollRecord
	if err := r.db.GetContext(ctx, &record, query, periodID, employeeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payroll record: %w", err)
	}
	return &record, nil
}

// ListByPeriod returns every record in the period.
func (r *RecordRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.PayrollRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM payroll_records WHERE period_id = $1 ORDER BY employee_id ASC`, recordColumns)
	var rows []models.PayrollRecord
	if err := r.db.SelectContext(ctx, &rows, query, periodID); err != nil {
		return nil, fmt.Errorf("list payroll records: %w", err)
	}
	return rows, nil
}

// SaveComputed writes computed amounts with an optimistic version check.
func (r *RecordRepository) SaveComputed(ctx context.Context, record *models.PayrollRecord) error {
	now := time.Now().UTC()
	record.UpdatedAt = now
	query := `UPDATE payroll_records SET
basic_salary = $3, overtime_pay = $4, night_differential = $5, holiday_pay = $6, paid_leave_pay = $7,
allowances = $8, gross_pay = $9, late_deduction = $10, undertime_deduction = $11, absence_deduction = $12,
sss_contribution = $13, philhealth_contribution = $14, pagibig_contribution = $15, withholding_tax = $16,
other_deductions = $17, total_deductions = $18, net_pay = $19, status = $20, computed_at = $21,
version = version + 1, updated_at = $22
WHERE id = $1 AND version = $2`
	result, err := r.db.ExecContext(ctx, query, record.ID, record.Version,
		record.BasicSalary, record.OvertimePay, record.NightDifferential, record.HolidayPay, record.PaidLeavePay,
		record.Allowances, record.GrossPay, record.LateDeduction, record.UndertimeDeduction, record.AbsenceDeduction,
		record.SSS, record.PhilHealth, record.PagIBIG, record.WithholdingTax,
		record.OtherDeductions, record.TotalDeductions, record.NetPay, models.RecordComputed, record.ComputedAt, now)
	if err != nil {
		return fmt.Errorf("save computed record %s: %w", record.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save computed record %s: %w", record.ID, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	record.Version++
	return nil
}

// Approve transitions one computed record to approved.
func (r *RecordRepository) Approve(ctx context.Context, id, approverID string) error {
	now := time.Now().UTC()
	query := `UPDATE payroll_records SET status = $2, approved_at = $3, approved_by = $4, version = version + 1, updated_at = $3
WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, models.RecordApproved, now, approverID, models.RecordComputed)
	if err != nil {
		return fmt.Errorf("approve record %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve record %s: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListComputableByEmployeeAndDate returns draft/computed records whose
// period cutoff window covers the given date; the recompute queue uses it
// after a time correction rewrites attendance.
func (r *RecordRepository) ListComputableByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) ([]models.PayrollRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM payroll_records pr
WHERE pr.employee_id = $1
AND pr.status IN ($2, $3)
AND EXISTS (
    SELECT 1 FROM payroll_periods pp
    WHERE pp.id = pr.period_id
    AND pp.attendance_cutoff_start <= $4 AND pp.attendance_cutoff_end >= $4
)`, prefixColumns("pr", recordColumns))
	var rows []models.PayrollRecord
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, models.RecordDraft, models.RecordComputed, date); err != nil {
		return nil, fmt.Errorf("list computable records: %w", err)
	}
	return rows, nil
}
