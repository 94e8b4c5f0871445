package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bayani-hr/payroll-api/internal/models"
)

// PayslipRepository handles persistence for materialized payslips.
type PayslipRepository struct {
	db *sqlx.DB
}

// NewPayslipRepository constructs the repository.
func NewPayslipRepository(db *sqlx.DB) *PayslipRepository {
	return &PayslipRepository{db: db}
}

// BulkInsert materializes payslips inside a transaction. The conflict guard
// on (period_id, record_id) makes repeated generation a no-op.
func (r *PayslipRepository) BulkInsert(ctx context.Context, slips []models.Payslip) error {
	if len(slips) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payslip tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO payslips (id, period_id, record_id, employee_id, net_pay, issued_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (period_id, record_id) DO NOTHING`
	for _, slip := range slips {
		id := slip.ID
		if id == "" {
			id = uuid.NewString()
		}
		issued := slip.IssuedAt
		if issued.IsZero() {
			issued = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, query, id, slip.PeriodID, slip.RecordID, slip.EmployeeID, slip.NetPay, issued); err != nil {
			return fmt.Errorf("insert payslip for record %s: %w", slip.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payslip tx: %w", err)
	}
	return nil
}

// CountByPeriod returns how many payslips exist for the period.
func (r *PayslipRepository) CountByPeriod(ctx context.Context, periodID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payslips WHERE period_id = $1", periodID); err != nil {
		return 0, fmt.Errorf("count payslips: %w", err)
	}
	return total, nil
}

// ListByPeriod returns the period's payslips.
func (r *PayslipRepository) ListByPeriod(ctx context.Context, periodID string) ([]models.Payslip, error) {
	query := `SELECT id, period_id, record_id, employee_id, net_pay, issued_at
FROM payslips WHERE period_id = $1 ORDER BY employee_id ASC`
	var rows []models.Payslip
	if err := r.db.SelectContext(ctx, &rows, query, periodID); err != nil {
		return nil, fmt.Errorf("list payslips: %w", err)
	}
	return rows, nil
}
