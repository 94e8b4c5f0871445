package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/pkg/config"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
	"github.com/bayani-hr/payroll-api/pkg/jobs"
)

type mockApprovalRepo struct {
	requests map[string]*models.ApprovalRequest
	trails   map[string][]models.ApprovalTrailEntry
	// closeOnAppend simulates a concurrent decision landing first.
	closeOnAppend bool
}

func newMockApprovalRepo() *mockApprovalRepo {
	return &mockApprovalRepo{
		requests: make(map[string]*models.ApprovalRequest),
		trails:   make(map[string][]models.ApprovalTrailEntry),
	}
}

func (m *mockApprovalRepo) Create(ctx context.Context, request *models.ApprovalRequest) error {
	copied := *request
	m.requests[request.ID] = &copied
	return nil
}

func (m *mockApprovalRepo) FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	request, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *request
	copied.Trail = append([]models.ApprovalTrailEntry(nil), m.trails[id]...)
	return &copied, nil
}

func (m *mockApprovalRepo) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error) {
	var rows []models.ApprovalRequest
	for _, request := range m.requests {
		if filter.RequesterID != "" && request.RequesterID != filter.RequesterID {
			continue
		}
		rows = append(rows, *request)
	}
	return rows, len(rows), nil
}

func (m *mockApprovalRepo) AppendDecision(ctx context.Context, request *models.ApprovalRequest, entry *models.ApprovalTrailEntry) error {
	stored, ok := m.requests[request.ID]
	if !ok || m.closeOnAppend || stored.Status.Terminal() {
		return sql.ErrNoRows
	}
	copied := *request
	m.requests[request.ID] = &copied
	m.trails[request.ID] = append(m.trails[request.ID], *entry)
	return nil
}

type mockLeaveBalanceRepo struct {
	employees  map[string]*models.Employee
	decrements []decimal.Decimal
}

func (m *mockLeaveBalanceRepo) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	if employee, ok := m.employees[id]; ok {
		copied := *employee
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLeaveBalanceRepo) DecrementLeaveBalance(ctx context.Context, id string, days decimal.Decimal) error {
	employee, ok := m.employees[id]
	if !ok {
		return sql.ErrNoRows
	}
	employee.LeaveBalance = employee.LeaveBalance.Sub(days)
	m.decrements = append(m.decrements, days)
	return nil
}

type mockCorrectionApplier struct {
	calls []time.Time
}

func (m *mockCorrectionApplier) ApplyCorrection(ctx context.Context, employeeID string, date time.Time, checkIn, checkOut *time.Time) (*models.AttendanceDay, error) {
	m.calls = append(m.calls, date)
	return &models.AttendanceDay{EmployeeID: employeeID, Date: date, Corrected: true}, nil
}

type mockQueue struct {
	enqueued []jobs.Job
}

func (m *mockQueue) Enqueue(job jobs.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func testChains() config.ApprovalConfig {
	return config.ApprovalConfig{Chains: map[string][]string{
		"employee":   {"supervisor", "hr_staff", "hr_head"},
		"supervisor": {"hr_staff", "hr_head"},
		"hr_staff":   {"hr_head"},
		"hr_head":    {"admin"},
	}}
}

type approvalFixture struct {
	requests   *mockApprovalRepo
	employees  *mockLeaveBalanceRepo
	attendance *mockCorrectionApplier
	queue      *mockQueue
	svc        *ApprovalService
}

func newApprovalFixture() *approvalFixture {
	f := &approvalFixture{
		requests: newMockApprovalRepo(),
		employees: &mockLeaveBalanceRepo{employees: map[string]*models.Employee{
			"emp-1": {ID: "emp-1", Role: models.RoleEmployee, Active: true, LeaveBalance: decimal.NewFromInt(10)},
		}},
		attendance: &mockCorrectionApplier{},
		queue:      &mockQueue{},
	}
	f.svc = NewApprovalService(f.requests, f.employees, f.attendance, f.queue,
		testChains(), testPayrollConfig(), NewKeyedLocks(), nil, nil, nil)
	return f
}

func testLeaveRequest() SubmitLeaveRequest {
	return SubmitLeaveRequest{
		RequesterID: "emp-1",
		Reason:      "family trip",
		StartDate:   time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
	}
}

func TestSubmitLeaveResolvesThreeLevelChain(t *testing.T) {
	f := newApprovalFixture()

	request, err := f.svc.SubmitLeave(context.Background(), testLeaveRequest())
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, request.Status)
	assert.Equal(t, []string{"supervisor", "hr_staff", "hr_head"}, []string(request.Chain))
	assert.Equal(t, 0, request.CurrentLevel)
	assert.Equal(t, 3, request.TotalRequired)
	require.NotNil(t, request.LeaveDays)
	assert.Equal(t, 2, *request.LeaveDays)
}

func TestSubmitLeaveRequiresReason(t *testing.T) {
	f := newApprovalFixture()
	req := testLeaveRequest()
	req.Reason = "   "

	_, err := f.svc.SubmitLeave(context.Background(), req)
	require.ErrorIs(t, err, appErrors.ErrMissingReason)
	assert.Empty(t, f.requests.requests)
}

func TestSubmitLeaveRejectsInvertedRange(t *testing.T) {
	f := newApprovalFixture()
	req := testLeaveRequest()
	req.StartDate, req.EndDate = req.EndDate, req.StartDate

	_, err := f.svc.SubmitLeave(context.Background(), req)
	require.ErrorIs(t, err, appErrors.ErrInvalidDateRange)
}

func TestSubmitLeaveInsufficientBalance(t *testing.T) {
	f := newApprovalFixture()
	f.employees.employees["emp-1"].LeaveBalance = decimal.Zero

	_, err := f.svc.SubmitLeave(context.Background(), testLeaveRequest())
	require.ErrorIs(t, err, appErrors.ErrInsufficientBalance)

	appErr := appErrors.FromError(err)
	assert.Equal(t, "0", appErr.State)
	assert.Empty(t, f.requests.requests)
}

func TestSubmitLeaveCountsWorkdaysOnly(t *testing.T) {
	f := newApprovalFixture()
	// Friday 2025-06-06 through Monday 2025-06-09: Sunday is skipped on the
	// six-day workweek, Saturday counts.
	req := testLeaveRequest()
	req.StartDate = time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)
	req.EndDate = time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)

	request, err := f.svc.SubmitLeave(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, request.LeaveDays)
	assert.Equal(t, 3, *request.LeaveDays)
}

func TestSubmitCorrectionRequiresCorrectedTimes(t *testing.T) {
	f := newApprovalFixture()
	_, err := f.svc.SubmitCorrection(context.Background(), SubmitCorrectionRequest{
		RequesterID: "emp-1",
		Reason:      "forgot to clock out",
		Date:        time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestApproveWrongRoleRejected(t *testing.T) {
	f := newApprovalFixture()
	request, err := f.svc.SubmitLeave(context.Background(), testLeaveRequest())
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), request.ID, "hr-1", models.RoleHRStaff, "")
	require.ErrorIs(t, err, appErrors.ErrNotYourTurn)

	appErr := appErrors.FromError(err)
	assert.Equal(t, string(models.RoleSupervisor), appErr.State)
}

func TestApproveFullChainDecrementsBalanceOnce(t *testing.T) {
	f := newApprovalFixture()
	request, err := f.svc.SubmitLeave(context.Background(), testLeaveRequest())
	require.NoError(t, err)

	steps := []struct {
		actorID string
		role    models.Role
	}{
		{"sup-1", models.RoleSupervisor},
		{"hrs-1", models.RoleHRStaff},
		{"hrh-1", models.RoleHRHead},
	}
	for i, step := range steps {
		updated, err := f.svc.Approve(context.Background(), request.ID, step.actorID, step.role, "ok")
		require.NoError(t, err)
		assert.Equal(t, i+1, updated.CurrentLevel)
		if i < len(steps)-1 {
			assert.Equal(t, models.RequestPending, updated.Status)
			assert.Empty(t, f.employees.decrements)
		} else {
			assert.Equal(t, models.RequestApproved, updated.Status)
		}
	}

	require.Len(t, f.employees.decrements, 1)
	assert.True(t, f.employees.decrements[0].Equal(decimal.NewFromInt(2)))
	assert.True(t, f.employees.employees["emp-1"].LeaveBalance.Equal(decimal.NewFromInt(8)))

	final, err := f.svc.Get(context.Background(), request.ID)
	require.NoError(t, err)
	require.Len(t, final.Trail, 3)
	assert.Equal(t, models.DecisionApproved, final.Trail[2].Decision)
	assert.Equal(t, 2, final.Trail[2].Level)
}

func TestRejectRequiresComment(t *testing.T) {
	f := newApprovalFixture()
	request, err := f.svc.SubmitLeave(context.Background(), testLeaveRequest())
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), request.ID, "sup-1", models.RoleSupervisor, "  ")
	require.ErrorIs(t, err, appErrors.ErrMissingReason)
}

func TestRejectTerminatesWithoutSideEffects(t *testing.T) {
	f := newApprovalFixture()
	request, err := f.svc.SubmitLeave(context.Background(), testLeaveRequest())
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), request.ID, "sup-1", models.RoleSupervisor, "ok")
	require.NoError(t, err)

	rejected, err := f.svc.Reject(context.Background(), request.ID, "hrs-1", models.RoleHRStaff, "overlaps cutoff")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
	// The earlier intermediate approval cost the requester nothing.
	assert.Empty(t, f.employees.decrements)
	assert.True(t, f.employees.employees["emp-1"].LeaveBalance.Equal(decimal.NewFromInt(10)))
}

func TestApproveAfterTerminalStateRejected(t *testing.T) {
	f := newApprovalFixture()
	request, err := f.svc.SubmitLeave(context.Background(), testLeaveRequest())
	require.NoError(t, err)
	_, err = f.svc.Reject(context.Background(), request.ID, "sup-1", models.RoleSupervisor, "no")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), request.ID, "sup-2", models.RoleSupervisor, "")
	require.ErrorIs(t, err, appErrors.ErrRequestClosed)

	appErr := appErrors.FromError(err)
	assert.Equal(t, string(models.RequestRejected), appErr.State)
}

func TestApproveLosesRaceToConcurrentDecision(t *testing.T) {
	f := newApprovalFixture()
	request, err := f.svc.SubmitLeave(context.Background(), testLeaveRequest())
	require.NoError(t, err)
	f.requests.closeOnAppend = true

	_, err = f.svc.Approve(context.Background(), request.ID, "sup-1", models.RoleSupervisor, "")
	require.ErrorIs(t, err, appErrors.ErrRequestClosed)
	assert.Empty(t, f.employees.decrements)
}

func TestCorrectionFinalApprovalAppliesAndEnqueues(t *testing.T) {
	f := newApprovalFixture()
	f.employees.employees["hrs-9"] = &models.Employee{
		ID: "hrs-9", Role: models.RoleHRStaff, Active: true, LeaveBalance: decimal.NewFromInt(5),
	}
	checkIn := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	checkOut := time.Date(2025, 6, 3, 17, 0, 0, 0, time.UTC)

	request, err := f.svc.SubmitCorrection(context.Background(), SubmitCorrectionRequest{
		RequesterID: "hrs-9",
		Reason:      "badge reader was down",
		Date:        time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
		CheckIn:     &checkIn,
		CheckOut:    &checkOut,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hr_head"}, []string(request.Chain))

	updated, err := f.svc.Approve(context.Background(), request.ID, "hrh-1", models.RoleHRHead, "verified")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, updated.Status)

	require.Len(t, f.attendance.calls, 1)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), f.attendance.calls[0])

	require.Len(t, f.queue.enqueued, 1)
	job := f.queue.enqueued[0]
	assert.Equal(t, RecomputeJobType, job.Type)
	payload, ok := job.Payload.(RecomputePayload)
	require.True(t, ok)
	assert.Equal(t, "hrs-9", payload.EmployeeID)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), payload.Date)
}
