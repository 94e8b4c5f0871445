package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/bayani-hr/payroll-api/internal/models"
)

const employeeColumns = `id, full_name, role, hire_date, active, pay_basis, monthly_rate, daily_rate, hourly_rate,
work_hours_per_day, meal_allowance, transport_allowance, other_allowance, leave_balance, created_at, updated_at`

// EmployeeRepository handles persistence for the employee roster.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID returns a single employee.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE id = $1`, employeeColumns)
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find employee %s: %w", id, err)
	}
	return &employee, nil
}

// List returns roster rows matching the filter.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Role != "" {
		where = append(where, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.Active != nil {
		where = append(where, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.HiredBefore != nil {
		where = append(where, fmt.Sprintf("hire_date <= $%d", len(args)+1))
		args = append(args, *filter.HiredBefore)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM employees WHERE %s ORDER BY full_name ASC LIMIT %d OFFSET %d`,
		employeeColumns, whereClause, size, offset)

	var rows []models.Employee
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM employees WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	return rows, total, nil
}

// ListEligible returns active employees hired on or before the given date,
// the eligibility rule for payroll period initialization.
func (r *EmployeeRepository) ListEligible(ctx context.Context, asOf time.Time) ([]models.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM employees WHERE active = TRUE AND hire_date <= $1 ORDER BY full_name ASC`, employeeColumns)
	var rows []models.Employee
	if err := r.db.SelectContext(ctx, &rows, query, asOf); err != nil {
		return nil, fmt.Errorf("list eligible employees: %w", err)
	}
	return rows, nil
}

// DecrementLeaveBalance subtracts approved leave days from the balance.
func (r *EmployeeRepository) DecrementLeaveBalance(ctx context.Context, id string, days decimal.Decimal) error {
	query := `UPDATE employees SET leave_balance = leave_balance - $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, days, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decrement leave balance for %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement leave balance for %s: %w", id, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
