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

const periodColumns = `id, name, cycle, start_date, end_date, attendance_cutoff_start, attendance_cutoff_end,
status, employee_count, created_at, updated_at`

// PeriodRepository handles persistence for payroll periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository constructs the repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// Create stores a new payroll period in pending_computation.
func (r *PeriodRepository) Create(ctx context.Context, period *models.PayrollPeriod) error {
	now := time.Now().UTC()
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	period.CreatedAt = now
	period.UpdatedAt = now
	query := `INSERT INTO payroll_periods (id, name, cycle, start_date, end_date, attendance_cutoff_start,
attendance_cutoff_end, status, employee_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query, period.ID, period.Name, period.Cycle, period.StartDate,
		period.EndDate, period.AttendanceCutoffStart, period.AttendanceCutoffEnd, period.Status,
		period.EmployeeCount, period.CreatedAt, period.UpdatedAt); err != nil {
		return fmt.Errorf("create payroll period: %w", err)
	}
	return nil
}

// FindByID returns a single period.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.PayrollPeriod, error) {
	query := fmt.Sprintf(`SELECT %s FROM payroll_periods WHERE id = $1`, periodColumns)
	var period models.PayrollPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payroll period %s: %w", id, err)
	}
	return &period, nil
}

// List returns periods newest first.
func (r *PeriodRepository) List(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s FROM payroll_periods ORDER BY start_date DESC LIMIT %d OFFSET %d`,
		periodColumns, pageSize, offset)
	var rows []models.PayrollPeriod
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, 0, fmt.Errorf("list payroll periods: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payroll_periods"); err != nil {
		return nil, 0, fmt.Errorf("count payroll periods: %w", err)
	}
	return rows, total, nil
}

// UpdateStatus advances the period status. The WHERE guard on the current
// status keeps transitions forward-only even under races.
func (r *PeriodRepository) UpdateStatus(ctx context.Context, id string, from, to models.PeriodStatus) error {
	query := `UPDATE payroll_periods SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update period status %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update period status %s: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Freeze transitions the period to locked and freezes every record in a
// single transaction so approvals racing the lock cannot tear it.
func (r *PeriodRepository) Freeze(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin freeze tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE payroll_periods SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, models.PeriodLocked, now, models.PeriodComputationCompleted)
	if err != nil {
		return fmt.Errorf("freeze period %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("freeze period %s: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE payroll_records SET status = $2, version = version + 1, updated_at = $3 WHERE period_id = $1 AND status = $4`,
		id, models.RecordLocked, now, models.RecordApproved); err != nil {
		return fmt.Errorf("freeze records for period %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit freeze tx: %w", err)
	}
	return nil
}
