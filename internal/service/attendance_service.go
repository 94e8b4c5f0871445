package service

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/pkg/config"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
)

type attendanceRepo interface {
	FindByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*models.AttendanceDay, error)
	Insert(ctx context.Context, day *models.AttendanceDay) error
	Update(ctx context.Context, day *models.AttendanceDay) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDay, int, error)
	ListByEmployeeRange(ctx context.Context, employeeID string, from, to time.Time) ([]models.AttendanceDay, error)
}

type employeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

// CheckInRequest is the clock-in payload.
type CheckInRequest struct {
	EmployeeID string    `json:"employee_id" validate:"required"`
	At         time.Time `json:"at" validate:"required"`
}

// CheckOutRequest is the clock-out payload.
type CheckOutRequest struct {
	EmployeeID string    `json:"employee_id" validate:"required"`
	At         time.Time `json:"at" validate:"required"`
}

// AttendanceService turns raw check-in/check-out events into classified
// attendance days.
type AttendanceService struct {
	attendance attendanceRepo
	employees  employeeReader
	validator  *validator.Validate
	logger     *zap.Logger

	onTimeCutoff  int // minutes from midnight
	absenceCutoff int
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(attendance attendanceRepo, employees employeeReader, cfg config.PayrollConfig, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		attendance:    attendance,
		employees:     employees,
		validator:     validate,
		logger:        logger,
		onTimeCutoff:  parseClock(cfg.OnTimeCutoff, 9*60),
		absenceCutoff: parseClock(cfg.AbsenceCutoff, 13*60+30),
	}
}

// CheckIn records the start of an employee's day and classifies it against
// the configured cutoffs. A second check-in on the same day is rejected.
func (s *AttendanceService) CheckIn(ctx context.Context, req CheckInRequest) (*models.AttendanceDay, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}
	if _, err := s.employees.FindByID(ctx, req.EmployeeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	date := dateOnly(req.At)
	existing, err := s.attendance.FindByEmployeeAndDate(ctx, req.EmployeeID, date)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance day")
	}
	if existing != nil && existing.CheckIn != nil {
		return nil, appErrors.WithState(appErrors.ErrDuplicateCheckIn, string(existing.Status))
	}

	at := req.At
	day := &models.AttendanceDay{
		EmployeeID: req.EmployeeID,
		Date:       date,
		CheckIn:    &at,
		Status:     s.classifyCheckIn(req.At),
		TotalHours: decimal.Zero,
	}
	if err := s.attendance.Insert(ctx, day); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}
	return day, nil
}

// CheckOut closes the employee's day and fixes total worked hours as the
// elapsed wall time; no break deduction is applied.
func (s *AttendanceService) CheckOut(ctx context.Context, req CheckOutRequest) (*models.AttendanceDay, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-out payload")
	}

	date := dateOnly(req.At)
	day, err := s.attendance.FindByEmployeeAndDate(ctx, req.EmployeeID, date)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrNoActiveCheckIn
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance day")
	}
	if day.CheckIn == nil {
		return nil, appErrors.WithState(appErrors.ErrNoActiveCheckIn, string(day.Status))
	}
	if day.CheckOut != nil {
		return nil, appErrors.WithState(appErrors.ErrDuplicateCheckOut, string(day.Status))
	}

	at := req.At
	day.CheckOut = &at
	day.Status = models.AttendanceCheckedOut
	day.TotalHours = hoursBetween(*day.CheckIn, at)
	if err := s.attendance.Update(ctx, day); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-out")
	}
	return day, nil
}

// List returns attendance days matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDay, int, error) {
	rows, total, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, total, nil
}

// Summary aggregates an employee's day counts over a date range.
func (s *AttendanceService) Summary(ctx context.Context, employeeID string, from, to time.Time) (*models.AttendanceSummary, error) {
	days, err := s.attendance.ListByEmployeeRange(ctx, employeeID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance range")
	}
	summary := &models.AttendanceSummary{EmployeeID: employeeID, TotalHours: decimal.Zero}
	for _, day := range days {
		summary.Total++
		summary.TotalHours = summary.TotalHours.Add(day.TotalHours)
		switch day.Status {
		case models.AttendanceLate:
			summary.Late++
		case models.AttendanceAbsent:
			summary.Absent++
		default:
			summary.Present++
		}
	}
	return summary, nil
}

// ApplyCorrection overwrites an attendance day with approved corrected
// times. Called by the approval workflow as the side effect of a final
// time-correction approval; never exposed directly.
func (s *AttendanceService) ApplyCorrection(ctx context.Context, employeeID string, date time.Time, checkIn, checkOut *time.Time) (*models.AttendanceDay, error) {
	date = dateOnly(date)
	day, err := s.attendance.FindByEmployeeAndDate(ctx, employeeID, date)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance day")
	}

	if day == nil {
		day = &models.AttendanceDay{EmployeeID: employeeID, Date: date, TotalHours: decimal.Zero}
	}
	day.CheckIn = checkIn
	day.CheckOut = checkOut
	day.Corrected = true
	switch {
	case checkIn != nil && checkOut != nil:
		day.Status = models.AttendanceCheckedOut
		day.TotalHours = hoursBetween(*checkIn, *checkOut)
	case checkIn != nil:
		day.Status = s.classifyCheckIn(*checkIn)
		day.TotalHours = decimal.Zero
	default:
		day.Status = models.AttendanceAbsent
		day.TotalHours = decimal.Zero
	}

	if day.ID == "" {
		err = s.attendance.Insert(ctx, day)
	} else {
		err = s.attendance.Update(ctx, day)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply time correction")
	}
	s.logger.Sugar().Infow("attendance corrected", "employee_id", employeeID, "date", date.Format("2006-01-02"))
	return day, nil
}

// classifyCheckIn maps a check-in time onto present/late/absent. A check-in
// past the absence cutoff stays absent; it never retroactively becomes late.
func (s *AttendanceService) classifyCheckIn(at time.Time) models.AttendanceStatus {
	minutes := at.Hour()*60 + at.Minute()
	switch {
	case minutes <= s.onTimeCutoff:
		return models.AttendancePresent
	case minutes <= s.absenceCutoff:
		return models.AttendanceLate
	default:
		return models.AttendanceAbsent
	}
}

// parseClock converts "HH:MM" to minutes from midnight.
func parseClock(raw string, fallback int) int {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return fallback
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return fallback
	}
	return hours*60 + minutes
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func hoursBetween(from, to time.Time) decimal.Decimal {
	if to.Before(from) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(to.Sub(from).Minutes()).Div(decimal.NewFromInt(60)).Round(2)
}
