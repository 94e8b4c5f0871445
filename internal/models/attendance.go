package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AttendanceStatus classifies a single day of attendance.
type AttendanceStatus string

const (
	AttendancePresent    AttendanceStatus = "present"
	AttendanceLate       AttendanceStatus = "late"
	AttendanceAbsent     AttendanceStatus = "absent"
	AttendanceCheckedOut AttendanceStatus = "checked_out"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceCheckedOut:
		return true
	default:
		return false
	}
}

// AttendanceDay is one employee-day. Created on check-in, mutated on
// check-out, then immutable except through an approved time correction.
type AttendanceDay struct {
	ID         string           `db:"id" json:"id"`
	EmployeeID string           `db:"employee_id" json:"employee_id"`
	Date       time.Time        `db:"date" json:"date"`
	CheckIn    *time.Time       `db:"check_in" json:"check_in,omitempty"`
	CheckOut   *time.Time       `db:"check_out" json:"check_out,omitempty"`
	Status     AttendanceStatus `db:"status" json:"status"`
	TotalHours decimal.Decimal  `db:"total_hours" json:"total_hours"`
	Corrected  bool             `db:"corrected" json:"corrected"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter scopes attendance listing queries.
type AttendanceFilter struct {
	EmployeeID string
	Status     *AttendanceStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// AttendanceSummary aggregates day counts for an employee over a range.
type AttendanceSummary struct {
	EmployeeID string          `json:"employee_id"`
	Present    int             `json:"present"`
	Late       int             `json:"late"`
	Absent     int             `json:"absent"`
	Total      int             `json:"total"`
	TotalHours decimal.Decimal `json:"total_hours"`
}
