package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies an actor's position in the approval hierarchy.
type Role string

const (
	RoleEmployee   Role = "employee"
	RoleSupervisor Role = "supervisor"
	RoleHRStaff    Role = "hr_staff"
	RoleHRHead     Role = "hr_head"
	RoleAdmin      Role = "admin"
)

// Valid returns true when the role is a supported value.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleSupervisor, RoleHRStaff, RoleHRHead, RoleAdmin:
		return true
	default:
		return false
	}
}

// PayBasis determines how daily and hourly rates are derived.
type PayBasis string

const (
	PayBasisSalaried PayBasis = "salaried"
	PayBasisDaily    PayBasis = "daily"
)

// Employee is the roster entry the engine consumes. Compensation fields are
// inbound configuration; the engine never mutates them except for the leave
// balance decrement on final leave approval.
type Employee struct {
	ID           string    `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         Role      `db:"role" json:"role"`
	HireDate     time.Time `db:"hire_date" json:"hire_date"`
	Active       bool      `db:"active" json:"active"`
	PayBasis     PayBasis  `db:"pay_basis" json:"pay_basis"`

	MonthlyRate decimal.Decimal `db:"monthly_rate" json:"monthly_rate"`
	DailyRate   decimal.Decimal `db:"daily_rate" json:"daily_rate"`
	HourlyRate  decimal.Decimal `db:"hourly_rate" json:"hourly_rate"`

	WorkHoursPerDay int `db:"work_hours_per_day" json:"work_hours_per_day"`

	MealAllowance      decimal.Decimal `db:"meal_allowance" json:"meal_allowance"`
	TransportAllowance decimal.Decimal `db:"transport_allowance" json:"transport_allowance"`
	OtherAllowance     decimal.Decimal `db:"other_allowance" json:"other_allowance"`

	LeaveBalance decimal.Decimal `db:"leave_balance" json:"leave_balance"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EmployeeFilter scopes roster queries.
type EmployeeFilter struct {
	Role        Role
	Active      *bool
	HiredBefore *time.Time
	Page        int
	PageSize    int
}
