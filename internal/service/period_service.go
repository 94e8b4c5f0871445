package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/pkg/config"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
)

type periodRepo interface {
	Create(ctx context.Context, period *models.PayrollPeriod) error
	FindByID(ctx context.Context, id string) (*models.PayrollPeriod, error)
	List(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.PeriodStatus) error
	Freeze(ctx context.Context, id string) error
}

type periodRecordRepo interface {
	BulkCreateDrafts(ctx context.Context, periodID string, employeeIDs []string) error
	FindByID(ctx context.Context, id string) (*models.PayrollRecord, error)
	ListByPeriod(ctx context.Context, periodID string) ([]models.PayrollRecord, error)
	Approve(ctx context.Context, id, approverID string) error
}

type eligibleEmployeeRepo interface {
	ListEligible(ctx context.Context, asOf time.Time) ([]models.Employee, error)
}

type payslipRepo interface {
	BulkInsert(ctx context.Context, slips []models.Payslip) error
	CountByPeriod(ctx context.Context, periodID string) (int, error)
	ListByPeriod(ctx context.Context, periodID string) ([]models.Payslip, error)
}

type recordComputer interface {
	ComputeRecord(ctx context.Context, periodID, employeeID string) (*models.PayrollRecord, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreatePeriodRequest is the period initialization payload.
type CreatePeriodRequest struct {
	Name                  string              `json:"name" validate:"required"`
	Cycle                 models.PayrollCycle `json:"cycle" validate:"required"`
	StartDate             time.Time           `json:"start_date" validate:"required"`
	EndDate               time.Time           `json:"end_date" validate:"required"`
	AttendanceCutoffStart time.Time           `json:"attendance_cutoff_start" validate:"required"`
	AttendanceCutoffEnd   time.Time           `json:"attendance_cutoff_end" validate:"required"`
}

// InitializeResult reports the created period; Warning is set when no
// employee qualified for a draft record.
type InitializeResult struct {
	Period  *models.PayrollPeriod `json:"period"`
	Warning string                `json:"warning,omitempty"`
}

// PeriodService drives the payroll period lifecycle from initialization
// through payslip generation.
type PeriodService struct {
	periods   periodRepo
	records   periodRecordRepo
	employees eligibleEmployeeRepo
	payslips  payslipRepo
	computer  recordComputer
	cache     summaryCache
	cacheCfg  config.CacheConfig
	locks     *KeyedLocks
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService constructs PeriodService. The keyed lock set must be the
// same instance the computation engine uses.
func NewPeriodService(periods periodRepo, records periodRecordRepo, employees eligibleEmployeeRepo,
	payslips payslipRepo, computer recordComputer, cache summaryCache, cacheCfg config.CacheConfig,
	locks *KeyedLocks, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if locks == nil {
		locks = NewKeyedLocks()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{
		periods:   periods,
		records:   records,
		employees: employees,
		payslips:  payslips,
		computer:  computer,
		cache:     cache,
		cacheCfg:  cacheCfg,
		locks:     locks,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Initialize creates a period in pending_computation with one draft record
// per eligible employee. An empty roster is a warning, not a failure; the
// period is created either way.
func (s *PeriodService) Initialize(ctx context.Context, req CreatePeriodRequest) (*InitializeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}
	if !req.Cycle.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported payroll cycle")
	}
	if req.EndDate.Before(req.StartDate) || req.AttendanceCutoffEnd.Before(req.AttendanceCutoffStart) {
		return nil, appErrors.ErrInvalidDateRange
	}

	eligible, err := s.employees.ListEligible(ctx, req.EndDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list eligible employees")
	}

	period := &models.PayrollPeriod{
		Name:                  req.Name,
		Cycle:                 req.Cycle,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		AttendanceCutoffStart: req.AttendanceCutoffStart,
		AttendanceCutoffEnd:   req.AttendanceCutoffEnd,
		Status:                models.PeriodPendingComputation,
		EmployeeCount:         len(eligible),
	}
	if err := s.periods.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payroll period")
	}

	result := &InitializeResult{Period: period}
	if len(eligible) == 0 {
		result.Warning = appErrors.ErrNoEligibleEmployees.Message
		s.logger.Sugar().Warnw("period created without eligible employees", "period_id", period.ID)
		return result, nil
	}

	ids := make([]string, 0, len(eligible))
	for _, employee := range eligible {
		ids = append(ids, employee.ID)
	}
	if err := s.records.BulkCreateDrafts(ctx, period.ID, ids); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create draft records")
	}
	return result, nil
}

// Get returns a single period.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.PayrollPeriod, error) {
	period, err := s.periods.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payroll period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payroll period")
	}
	return period, nil
}

// List returns periods newest first.
func (s *PeriodService) List(ctx context.Context, page, pageSize int) ([]models.PayrollPeriod, int, error) {
	rows, total, err := s.periods.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payroll periods")
	}
	return rows, total, nil
}

// ListRecords returns every payroll record in the period.
func (s *PeriodService) ListRecords(ctx context.Context, periodID string) ([]models.PayrollRecord, error) {
	rows, err := s.records.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payroll records")
	}
	return rows, nil
}

// ComputeAll runs the computation engine for every record in the period.
// Each employee's outcome is independent; one failure never aborts the rest.
// The period advances to computation_completed once every record is computed
// or approved.
func (s *PeriodService) ComputeAll(ctx context.Context, periodID string) (*models.ComputeBatchResult, error) {
	unlock := s.locks.Lock("period:" + periodID)
	defer unlock()

	period, err := s.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status == models.PeriodLocked || period.Status == models.PeriodPayrollRun {
		return nil, appErrors.WithState(appErrors.ErrPeriodLocked, string(period.Status))
	}

	records, err := s.records.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payroll records")
	}

	result := &models.ComputeBatchResult{PeriodID: periodID, PeriodStatus: period.Status}
	allSettled := true
	for _, record := range records {
		outcome := models.ComputeOutcome{EmployeeID: record.EmployeeID, RecordID: record.ID}
		if !record.Status.Computable() {
			outcome.Success = true
			result.Succeeded++
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}
		if _, err := s.computer.ComputeRecord(ctx, periodID, record.EmployeeID); err != nil {
			outcome.Error = appErrors.FromError(err).Message
			result.Failed++
			allSettled = false
			s.logger.Sugar().Warnw("record computation failed",
				"period_id", periodID, "employee_id", record.EmployeeID, "error", err)
		} else {
			outcome.Success = true
			result.Succeeded++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if allSettled && len(records) > 0 && period.Status == models.PeriodPendingComputation {
		if err := s.periods.UpdateStatus(ctx, periodID, models.PeriodPendingComputation, models.PeriodComputationCompleted); err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance period status")
		}
		result.PeriodStatus = models.PeriodComputationCompleted
	}

	s.invalidateSummary(ctx, periodID)
	return result, nil
}

// ApproveRecord transitions one record computed→approved. The period must
// have completed computation first.
func (s *PeriodService) ApproveRecord(ctx context.Context, periodID, recordID, approverID string) (*models.PayrollRecord, error) {
	unlock := s.locks.Lock("period:" + periodID)
	defer unlock()

	period, err := s.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status == models.PeriodLocked || period.Status == models.PeriodPayrollRun {
		return nil, appErrors.WithState(appErrors.ErrPeriodLocked, string(period.Status))
	}
	if period.Status != models.PeriodComputationCompleted {
		return nil, appErrors.WithState(appErrors.ErrInvalidTransition, string(period.Status))
	}

	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payroll record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payroll record")
	}
	if record.PeriodID != periodID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payroll record not in this period")
	}

	if err := s.records.Approve(ctx, recordID, approverID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.WithState(appErrors.ErrInvalidTransition, string(record.Status))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve payroll record")
	}

	s.invalidateSummary(ctx, periodID)
	return s.records.FindByID(ctx, recordID)
}

// Lock freezes the period and every record in it. All records must already
// be approved (or frozen); otherwise nothing is mutated. The period mutex
// makes the check-then-freeze atomic against concurrent record approvals.
func (s *PeriodService) Lock(ctx context.Context, periodID string) (*models.PayrollPeriod, error) {
	unlock := s.locks.Lock("period:" + periodID)
	defer unlock()

	period, err := s.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status == models.PeriodLocked || period.Status == models.PeriodPayrollRun {
		return nil, appErrors.WithState(appErrors.ErrPeriodLocked, string(period.Status))
	}
	if period.Status != models.PeriodComputationCompleted {
		return nil, appErrors.WithState(appErrors.ErrInvalidTransition, string(period.Status))
	}

	records, err := s.records.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payroll records")
	}
	pending := 0
	for _, record := range records {
		if record.Status != models.RecordApproved && !record.Status.Frozen() {
			pending++
		}
	}
	if pending > 0 {
		return nil, appErrors.Clone(appErrors.ErrIncompleteApprovals,
			fmt.Sprintf("%d of %d records are not approved", pending, len(records)))
	}

	if err := s.periods.Freeze(ctx, periodID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.WithState(appErrors.ErrInvalidTransition, string(period.Status))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock payroll period")
	}

	s.metrics.ObservePeriodLocked()
	s.invalidateSummary(ctx, periodID)
	s.logger.Sugar().Infow("payroll period locked", "period_id", periodID, "records", len(records))
	return s.Get(ctx, periodID)
}

// GeneratePayslips materializes one payslip per locked record and advances
// the period to payroll_run. Repeating the call on a payroll_run period
// returns the existing count without error.
func (s *PeriodService) GeneratePayslips(ctx context.Context, periodID string) (int, error) {
	unlock := s.locks.Lock("period:" + periodID)
	defer unlock()

	period, err := s.Get(ctx, periodID)
	if err != nil {
		return 0, err
	}
	if period.Status == models.PeriodPayrollRun {
		count, err := s.payslips.CountByPeriod(ctx, periodID)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count payslips")
		}
		return count, nil
	}
	if period.Status != models.PeriodLocked {
		return 0, appErrors.WithState(appErrors.ErrInvalidTransition, string(period.Status))
	}

	records, err := s.records.ListByPeriod(ctx, periodID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payroll records")
	}
	slips := make([]models.Payslip, 0, len(records))
	for _, record := range records {
		slips = append(slips, models.Payslip{
			PeriodID:   periodID,
			RecordID:   record.ID,
			EmployeeID: record.EmployeeID,
			NetPay:     record.NetPay,
		})
	}
	if err := s.payslips.BulkInsert(ctx, slips); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate payslips")
	}
	if err := s.periods.UpdateStatus(ctx, periodID, models.PeriodLocked, models.PeriodPayrollRun); err != nil && err != sql.ErrNoRows {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance period status")
	}

	s.metrics.ObservePayslips(len(slips))
	s.invalidateSummary(ctx, periodID)
	return len(slips), nil
}

// ListPayslips returns the period's materialized payslips.
func (s *PeriodService) ListPayslips(ctx context.Context, periodID string) ([]models.Payslip, error) {
	rows, err := s.payslips.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payslips")
	}
	return rows, nil
}

// Summary aggregates the period's totals and status counts. Results are
// cached in redis and invalidated by every period mutation.
func (s *PeriodService) Summary(ctx context.Context, periodID string) (*models.PeriodSummary, error) {
	cacheKey := summaryCacheKey(periodID)
	if s.cacheEnabled() {
		var cached models.PeriodSummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	period, err := s.Get(ctx, periodID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payroll records")
	}

	summary := &models.PeriodSummary{
		PeriodID:        periodID,
		Status:          period.Status,
		EmployeeCount:   period.EmployeeCount,
		TotalGross:      decimal.Zero,
		TotalDeductions: decimal.Zero,
		TotalNet:        decimal.Zero,
		StatusCounts:    make(map[models.RecordStatus]int),
		GeneratedAt:     time.Now().UTC(),
	}
	for _, record := range records {
		summary.TotalGross = summary.TotalGross.Add(record.GrossPay)
		summary.TotalDeductions = summary.TotalDeductions.Add(record.TotalDeductions)
		summary.TotalNet = summary.TotalNet.Add(record.NetPay)
		summary.StatusCounts[record.Status]++
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheCfg.SummaryTTL); err != nil {
			s.logger.Sugar().Warnw("failed to cache period summary", "period_id", periodID, "error", err)
		}
	}
	return summary, nil
}

func (s *PeriodService) cacheEnabled() bool {
	return s.cacheCfg.Enabled && s.cache != nil
}

func (s *PeriodService) invalidateSummary(ctx context.Context, periodID string) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, summaryCacheKey(periodID)); err != nil {
		s.logger.Sugar().Warnw("failed to invalidate period summary cache", "period_id", periodID, "error", err)
	}
}

func summaryCacheKey(periodID string) string {
	return "payroll:summary:" + periodID
}
