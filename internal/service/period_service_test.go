package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/pkg/config"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
)

type mockPeriodRepo struct {
	periods map[string]*models.PayrollPeriod
	seq     int
}

func newMockPeriodRepo() *mockPeriodRepo {
	return &mockPeriodRepo{periods: make(map[string]*models.PayrollPeriod)}
}

func (m *mockPeriodRepo) Create(ctx context.Context, period *models.PayrollPeriod) error {
	m.seq++
	period.ID = fmt.Sprintf("per-%d", m.seq)
	copied := *period
	m.periods[period.ID] = &copied
	return nil
}

func (m *mockPeriodRepo) FindByID(ctx context.Context, id string) (*models.PayrollPeriod, error) {
	if period, ok := m.periods[id]; ok {
		copied := *period
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPeriodRepo) List(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error) {
	var rows []models.PayrollPeriod
	for _, period := range m.periods {
		rows = append(rows, *period)
	}
	return rows, len(rows), nil
}

func (m *mockPeriodRepo) UpdateStatus(ctx context.Context, id string, from, to models.PeriodStatus) error {
	period, ok := m.periods[id]
	if !ok || period.Status != from {
		return sql.ErrNoRows
	}
	period.Status = to
	return nil
}

func (m *mockPeriodRepo) Freeze(ctx context.Context, id string) error {
	period, ok := m.periods[id]
	if !ok || period.Status != models.PeriodComputationCompleted {
		return sql.ErrNoRows
	}
	period.Status = models.PeriodLocked
	return nil
}

type mockPeriodRecordRepo struct {
	records map[string]*models.PayrollRecord
	seq     int
}

func newMockPeriodRecordRepo() *mockPeriodRecordRepo {
	return &mockPeriodRecordRepo{records: make(map[string]*models.PayrollRecord)}
}

func (m *mockPeriodRecordRepo) add(periodID, employeeID string, status models.RecordStatus) string {
	m.seq++
	id := fmt.Sprintf("rec-%d", m.seq)
	m.records[id] = &models.PayrollRecord{ID: id, PeriodID: periodID, EmployeeID: employeeID, Status: status, Version: 1}
	return id
}

func (m *mockPeriodRecordRepo) BulkCreateDrafts(ctx context.Context, periodID string, employeeIDs []string) error {
	for _, employeeID := range employeeIDs {
		m.add(periodID, employeeID, models.RecordDraft)
	}
	return nil
}

func (m *mockPeriodRecordRepo) FindByID(ctx context.Context, id string) (*models.PayrollRecord, error) {
	if record, ok := m.records[id]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPeriodRecordRepo) ListByPeriod(ctx context.Context, periodID string) ([]models.PayrollRecord, error) {
	var rows []models.PayrollRecord
	for i := 1; i <= m.seq; i++ {
		if record, ok := m.records[fmt.Sprintf("rec-%d", i)]; ok && record.PeriodID == periodID {
			rows = append(rows, *record)
		}
	}
	return rows, nil
}

func (m *mockPeriodRecordRepo) Approve(ctx context.Context, id, approverID string) error {
	record, ok := m.records[id]
	if !ok || record.Status != models.RecordComputed {
		return sql.ErrNoRows
	}
	record.Status = models.RecordApproved
	record.ApprovedBy = &approverID
	return nil
}

type mockEligibleRepo struct {
	eligible []models.Employee
}

func (m *mockEligibleRepo) ListEligible(ctx context.Context, asOf time.Time) ([]models.Employee, error) {
	return m.eligible, nil
}

type mockPayslipRepo struct {
	slips       map[string][]models.Payslip
	bulkInserts int
}

func newMockPayslipRepo() *mockPayslipRepo {
	return &mockPayslipRepo{slips: make(map[string][]models.Payslip)}
}

func (m *mockPayslipRepo) BulkInsert(ctx context.Context, slips []models.Payslip) error {
	m.bulkInserts++
	for _, slip := range slips {
		m.slips[slip.PeriodID] = append(m.slips[slip.PeriodID], slip)
	}
	return nil
}

func (m *mockPayslipRepo) CountByPeriod(ctx context.Context, periodID string) (int, error) {
	return len(m.slips[periodID]), nil
}

func (m *mockPayslipRepo) ListByPeriod(ctx context.Context, periodID string) ([]models.Payslip, error) {
	return m.slips[periodID], nil
}

// mockComputer marks records computed, or fails the employees listed in
// failFor the way the real engine surfaces a per-record error.
type mockComputer struct {
	records *mockPeriodRecordRepo
	failFor map[string]bool
	calls   int
}

func (m *mockComputer) ComputeRecord(ctx context.Context, periodID, employeeID string) (*models.PayrollRecord, error) {
	m.calls++
	if m.failFor[employeeID] {
		return nil, appErrors.Clone(appErrors.ErrInternal, "boom")
	}
	for _, record := range m.records.records {
		if record.PeriodID == periodID && record.EmployeeID == employeeID {
			record.Status = models.RecordComputed
			record.NetPay = decimal.NewFromInt(1000)
			record.GrossPay = decimal.NewFromInt(1200)
			record.TotalDeductions = decimal.NewFromInt(200)
			copied := *record
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

type periodFixture struct {
	periods   *mockPeriodRepo
	records   *mockPeriodRecordRepo
	employees *mockEligibleRepo
	payslips  *mockPayslipRepo
	computer  *mockComputer
	svc       *PeriodService
}

func newPeriodFixture(eligible ...string) *periodFixture {
	f := &periodFixture{
		periods:   newMockPeriodRepo(),
		records:   newMockPeriodRecordRepo(),
		employees: &mockEligibleRepo{},
		payslips:  newMockPayslipRepo(),
	}
	for _, id := range eligible {
		f.employees.eligible = append(f.employees.eligible, models.Employee{ID: id, Active: true})
	}
	f.computer = &mockComputer{records: f.records, failFor: make(map[string]bool)}
	f.svc = NewPeriodService(f.periods, f.records, f.employees, f.payslips, f.computer,
		nil, config.CacheConfig{}, NewKeyedLocks(), nil, nil, nil)
	return f
}

func testCreateRequest() CreatePeriodRequest {
	return CreatePeriodRequest{
		Name:                  "June 2025",
		Cycle:                 models.CycleMonthly,
		StartDate:             time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:               time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		AttendanceCutoffStart: time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC),
		AttendanceCutoffEnd:   time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC),
	}
}

func TestInitializeCreatesDraftPerEligibleEmployee(t *testing.T) {
	f := newPeriodFixture("emp-1", "emp-2", "emp-3")

	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, models.PeriodPendingComputation, result.Period.Status)
	assert.Equal(t, 3, result.Period.EmployeeCount)

	records, err := f.records.ListByPeriod(context.Background(), result.Period.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, record := range records {
		assert.Equal(t, models.RecordDraft, record.Status)
	}
}

func TestInitializeEmptyRosterWarnsButCreatesPeriod(t *testing.T) {
	f := newPeriodFixture()

	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, appErrors.ErrNoEligibleEmployees.Message, result.Warning)
	assert.NotEmpty(t, result.Period.ID)
	assert.Equal(t, 0, result.Period.EmployeeCount)
}

func TestInitializeRejectsInvertedDates(t *testing.T) {
	f := newPeriodFixture("emp-1")
	req := testCreateRequest()
	req.EndDate = req.StartDate.AddDate(0, 0, -1)

	_, err := f.svc.Initialize(context.Background(), req)
	require.ErrorIs(t, err, appErrors.ErrInvalidDateRange)
}

func TestComputeAllPartialFailureDoesNotAbort(t *testing.T) {
	f := newPeriodFixture("emp-1", "emp-2", "emp-3")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	f.computer.failFor["emp-2"] = true

	batch, err := f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Len(t, batch.Outcomes, 3)
	// A failed record keeps the period in pending_computation.
	assert.Equal(t, models.PeriodPendingComputation, batch.PeriodStatus)
	assert.Equal(t, 3, f.computer.calls)
}

func TestComputeAllAdvancesPeriodWhenAllSettled(t *testing.T) {
	f := newPeriodFixture("emp-1", "emp-2")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)

	batch, err := f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, models.PeriodComputationCompleted, batch.PeriodStatus)

	period, err := f.periods.FindByID(context.Background(), result.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PeriodComputationCompleted, period.Status)
}

func TestComputeAllSkipsFrozenRecordsAsSettled(t *testing.T) {
	f := newPeriodFixture("emp-1", "emp-2")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	_, err = f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)
	f.approveAll(t, result.Period.ID)

	// Re-running on an already computation_completed period touches no
	// approved record.
	calls := f.computer.calls
	batch, err := f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, calls, f.computer.calls)
}

func TestComputeAllRejectsLockedPeriod(t *testing.T) {
	f := newPeriodFixture("emp-1")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	f.periods.periods[result.Period.ID].Status = models.PeriodLocked

	_, err = f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.ErrorIs(t, err, appErrors.ErrPeriodLocked)
}

func TestApproveRecordRequiresComputationCompleted(t *testing.T) {
	f := newPeriodFixture("emp-1")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	records, _ := f.records.ListByPeriod(context.Background(), result.Period.ID)

	_, err = f.svc.ApproveRecord(context.Background(), result.Period.ID, records[0].ID, "hr-1")
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	appErr := appErrors.FromError(err)
	assert.Equal(t, string(models.PeriodPendingComputation), appErr.State)
}

func TestApproveRecordTransitionsComputedRecord(t *testing.T) {
	f := newPeriodFixture("emp-1")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	_, err = f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)
	records, _ := f.records.ListByPeriod(context.Background(), result.Period.ID)

	record, err := f.svc.ApproveRecord(context.Background(), result.Period.ID, records[0].ID, "hr-1")
	require.NoError(t, err)
	assert.Equal(t, models.RecordApproved, record.Status)
	require.NotNil(t, record.ApprovedBy)
	assert.Equal(t, "hr-1", *record.ApprovedBy)
}

func TestLockFailsWithUnapprovedRecordAndMutatesNothing(t *testing.T) {
	f := newPeriodFixture("emp-1", "emp-2", "emp-3", "emp-4", "emp-5")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	_, err = f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)

	// Approve four of the five records; the fifth stays computed.
	records, _ := f.records.ListByPeriod(context.Background(), result.Period.ID)
	for _, record := range records[:4] {
		_, err = f.svc.ApproveRecord(context.Background(), result.Period.ID, record.ID, "hr-1")
		require.NoError(t, err)
	}

	_, err = f.svc.Lock(context.Background(), result.Period.ID)
	require.ErrorIs(t, err, appErrors.ErrIncompleteApprovals)
	assert.Contains(t, err.Error(), "1 of 5")

	// Nothing moved: the period stays computation_completed and every
	// record keeps its status.
	period, _ := f.periods.FindByID(context.Background(), result.Period.ID)
	assert.Equal(t, models.PeriodComputationCompleted, period.Status)
	after, _ := f.records.ListByPeriod(context.Background(), result.Period.ID)
	approved, computed := 0, 0
	for _, record := range after {
		switch record.Status {
		case models.RecordApproved:
			approved++
		case models.RecordComputed:
			computed++
		}
	}
	assert.Equal(t, 4, approved)
	assert.Equal(t, 1, computed)
}

func TestLockFreezesFullyApprovedPeriod(t *testing.T) {
	f := newPeriodFixture("emp-1", "emp-2")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	_, err = f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)
	f.approveAll(t, result.Period.ID)

	period, err := f.svc.Lock(context.Background(), result.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PeriodLocked, period.Status)
}

func TestLockRejectsAlreadyLockedPeriod(t *testing.T) {
	f := newPeriodFixture("emp-1")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	f.periods.periods[result.Period.ID].Status = models.PeriodLocked

	_, err = f.svc.Lock(context.Background(), result.Period.ID)
	require.ErrorIs(t, err, appErrors.ErrPeriodLocked)
}

func TestGeneratePayslipsIsIdempotent(t *testing.T) {
	f := newPeriodFixture("emp-1", "emp-2")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	_, err = f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)
	f.approveAll(t, result.Period.ID)
	_, err = f.svc.Lock(context.Background(), result.Period.ID)
	require.NoError(t, err)

	count, err := f.svc.GeneratePayslips(context.Background(), result.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	period, _ := f.periods.FindByID(context.Background(), result.Period.ID)
	assert.Equal(t, models.PeriodPayrollRun, period.Status)

	// The second call returns the existing count without inserting again.
	count, err = f.svc.GeneratePayslips(context.Background(), result.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, f.payslips.bulkInserts)
}

func TestGeneratePayslipsRequiresLockedPeriod(t *testing.T) {
	f := newPeriodFixture("emp-1")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)

	_, err = f.svc.GeneratePayslips(context.Background(), result.Period.ID)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestSummaryAggregatesTotalsAndStatusCounts(t *testing.T) {
	f := newPeriodFixture("emp-1", "emp-2")
	result, err := f.svc.Initialize(context.Background(), testCreateRequest())
	require.NoError(t, err)
	_, err = f.svc.ComputeAll(context.Background(), result.Period.ID)
	require.NoError(t, err)

	summary, err := f.svc.Summary(context.Background(), result.Period.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PeriodComputationCompleted, summary.Status)
	assert.True(t, summary.TotalGross.Equal(decimal.NewFromInt(2400)))
	assert.True(t, summary.TotalDeductions.Equal(decimal.NewFromInt(400)))
	assert.True(t, summary.TotalNet.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, 2, summary.StatusCounts[models.RecordComputed])
}

// approveAll approves every computed record in the period.
func (f *periodFixture) approveAll(t *testing.T, periodID string) string {
	t.Helper()
	records, err := f.records.ListByPeriod(context.Background(), periodID)
	require.NoError(t, err)
	var last string
	for _, record := range records {
		if record.Status != models.RecordComputed {
			continue
		}
		_, err := f.svc.ApproveRecord(context.Background(), periodID, record.ID, "hr-1")
		require.NoError(t, err)
		last = record.ID
	}
	return last
}
