package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bayani-hr/payroll-api/internal/models"
)

const attendanceColumns = `id, employee_id, date, check_in, check_out, status, total_hours, corrected, created_at, updated_at`

// AttendanceRepository handles persistence for attendance days.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByEmployeeAndDate returns the day record for one employee-day.
func (r *AttendanceRepository) FindByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*models.AttendanceDay, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_days WHERE employee_id = $1 AND date = $2`, attendanceColumns)
	var day models.AttendanceDay
	if err := r.db.GetContext(ctx, &day, query, employeeID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance day: %w", err)
	}
	return &day, nil
}

// Insert stores a new attendance day created on check-in.
func (r *AttendanceRepository) Insert(ctx context.Context, day *models.AttendanceDay) error {
	now := time.Now().UTC()
	if day.ID == "" {
		day.ID = uuid.NewString()
	}
	day.CreatedAt = now
	day.UpdatedAt = now
	query := `INSERT INTO attendance_days (id, employee_id, date, check_in, check_out, status, total_hours, corrected, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query, day.ID, day.EmployeeID, day.Date, day.CheckIn, day.CheckOut,
		day.Status, day.TotalHours, day.Corrected, day.CreatedAt, day.UpdatedAt); err != nil {
		return fmt.Errorf("insert attendance day: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing day (check-out, or an
// approved time-correction overwrite).
func (r *AttendanceRepository) Update(ctx context.Context, day *models.AttendanceDay) error {
	day.UpdatedAt = time.Now().UTC()
	query := `UPDATE attendance_days
SET check_in = $2, check_out = $3, status = $4, total_hours = $5, corrected = $6, updated_at = $7
WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, day.ID, day.CheckIn, day.CheckOut, day.Status,
		day.TotalHours, day.Corrected, day.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update attendance day %s: %w", day.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attendance day %s: %w", day.ID, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByEmployeeRange returns the days inside [from, to] for one employee,
// the window the computation engine aggregates.
func (r *AttendanceRepository) ListByEmployeeRange(ctx context.Context, employeeID string, from, to time.Time) ([]models.AttendanceDay, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_days
WHERE employee_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`, attendanceColumns)
	var rows []models.AttendanceDay
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance range: %w", err)
	}
	return rows, nil
}

// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDay, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.EmployeeID != "" {
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	sortBy := filter.SortBy
	allowedSort := map[string]string{
		"date":       "date",
		"status":     "status",
		"created_at": "created_at",
	}
	sortColumn, ok := allowedSort[sortBy]
	if !ok {
		sortColumn = "date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance_days WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		attendanceColumns, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceDay
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_days WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}
