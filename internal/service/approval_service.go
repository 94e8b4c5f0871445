package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/pkg/config"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
	"github.com/bayani-hr/payroll-api/pkg/jobs"
)

// RecomputeJobType tags queued payroll recomputation jobs.
const RecomputeJobType = "payroll_recompute"

// RecomputePayload identifies the attendance day whose correction triggered
// the recomputation.
type RecomputePayload struct {
	EmployeeID string
	Date       time.Time
}

type approvalRepo interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error)
	AppendDecision(ctx context.Context, request *models.ApprovalRequest, entry *models.ApprovalTrailEntry) error
}

type leaveBalanceRepo interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	DecrementLeaveBalance(ctx context.Context, id string, days decimal.Decimal) error
}

type correctionApplier interface {
	ApplyCorrection(ctx context.Context, employeeID string, date time.Time, checkIn, checkOut *time.Time) (*models.AttendanceDay, error)
}

type recomputeQueue interface {
	Enqueue(job jobs.Job) error
}

// SubmitLeaveRequest is the leave submission payload.
type SubmitLeaveRequest struct {
	RequesterID string    `json:"requester_id" validate:"required"`
	Reason      string    `json:"reason"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
}

// SubmitCorrectionRequest is the time-correction submission payload.
type SubmitCorrectionRequest struct {
	RequesterID string     `json:"requester_id" validate:"required"`
	Reason      string     `json:"reason"`
	Date        time.Time  `json:"date" validate:"required"`
	CheckIn     *time.Time `json:"check_in,omitempty"`
	CheckOut    *time.Time `json:"check_out,omitempty"`
}

// ApprovalService is the multi-stage chain engine shared by leave and
// time-correction requests. The chain is resolved once at submission from
// the requester's role and never changes afterward.
type ApprovalService struct {
	requests   approvalRepo
	employees  leaveBalanceRepo
	attendance correctionApplier
	queue      recomputeQueue
	chains     map[string][]string
	workweek   int
	locks      *KeyedLocks
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewApprovalService constructs ApprovalService.
func NewApprovalService(requests approvalRepo, employees leaveBalanceRepo, attendance correctionApplier,
	queue recomputeQueue, approvalCfg config.ApprovalConfig, payrollCfg config.PayrollConfig,
	locks *KeyedLocks, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if locks == nil {
		locks = NewKeyedLocks()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		requests:   requests,
		employees:  employees,
		attendance: attendance,
		queue:      queue,
		chains:     approvalCfg.Chains,
		workweek:   payrollCfg.LeaveWorkweekDays,
		locks:      locks,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// SubmitLeave validates and files a leave request. Nothing is persisted when
// validation fails; the balance check only guards submission, the actual
// decrement happens at final approval.
func (s *ApprovalService) SubmitLeave(ctx context.Context, req SubmitLeaveRequest) (*models.ApprovalRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.ErrMissingReason
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.ErrInvalidDateRange
	}

	employee, err := s.loadEmployee(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}
	chain, err := s.resolveChain(employee.Role)
	if err != nil {
		return nil, err
	}

	days := countWorkdays(req.StartDate, req.EndDate, s.workweek)
	if days == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requested range contains no working days")
	}
	if employee.LeaveBalance.IsZero() || employee.LeaveBalance.LessThan(decimal.NewFromInt(int64(days))) {
		return nil, appErrors.WithState(appErrors.ErrInsufficientBalance, employee.LeaveBalance.String())
	}

	start := dateOnly(req.StartDate)
	end := dateOnly(req.EndDate)
	request := &models.ApprovalRequest{
		ID:            uuid.NewString(),
		RequesterID:   employee.ID,
		RequesterRole: employee.Role,
		Kind:          models.KindLeave,
		Status:        models.RequestPending,
		Chain:         pq.StringArray(chain),
		CurrentLevel:  0,
		TotalRequired: len(chain),
		Reason:        req.Reason,
		LeaveStart:    &start,
		LeaveEnd:      &end,
		LeaveDays:     &days,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave request")
	}
	return request, nil
}

// SubmitCorrection validates and files a time-correction request.
func (s *ApprovalService) SubmitCorrection(ctx context.Context, req SubmitCorrectionRequest) (*models.ApprovalRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid correction payload")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.ErrMissingReason
	}
	if req.CheckIn == nil && req.CheckOut == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "corrected check-in or check-out is required")
	}
	if req.CheckIn != nil && req.CheckOut != nil && req.CheckOut.Before(*req.CheckIn) {
		return nil, appErrors.ErrInvalidDateRange
	}

	employee, err := s.loadEmployee(ctx, req.RequesterID)
	if err != nil {
		return nil, err
	}
	chain, err := s.resolveChain(employee.Role)
	if err != nil {
		return nil, err
	}

	date := dateOnly(req.Date)
	request := &models.ApprovalRequest{
		ID:                uuid.NewString(),
		RequesterID:       employee.ID,
		RequesterRole:     employee.Role,
		Kind:              models.KindTimeCorrection,
		Status:            models.RequestPending,
		Chain:             pq.StringArray(chain),
		CurrentLevel:      0,
		TotalRequired:     len(chain),
		Reason:            req.Reason,
		CorrectionDate:    &date,
		CorrectedCheckIn:  req.CheckIn,
		CorrectedCheckOut: req.CheckOut,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create correction request")
	}
	return request, nil
}

// Approve records the current level's verdict. The final approval flips the
// request to approved and applies its side effect while the request mutex is
// still held, so a racing reject observes the terminal state.
func (s *ApprovalService) Approve(ctx context.Context, id, actorID string, actorRole models.Role, comment string) (*models.ApprovalRequest, error) {
	unlock := s.locks.Lock("request:" + id)
	defer unlock()

	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, appErrors.WithState(appErrors.ErrRequestClosed, string(request.Status))
	}
	expected := request.CurrentApproverRole()
	if actorRole != expected {
		return nil, appErrors.WithState(appErrors.ErrNotYourTurn, string(expected))
	}

	entry := &models.ApprovalTrailEntry{
		RequestID:    id,
		Level:        request.CurrentLevel,
		ApproverRole: actorRole,
		ApproverID:   actorID,
		Decision:     models.DecisionApproved,
		Comment:      comment,
	}
	final := request.CurrentLevel+1 >= request.TotalRequired
	request.CurrentLevel++
	if final {
		request.Status = models.RequestApproved
	}

	if err := s.requests.AppendDecision(ctx, request, entry); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrRequestClosed, "request was decided concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval")
	}

	if final {
		if err := s.applySideEffect(ctx, request); err != nil {
			return nil, err
		}
	}
	s.metrics.ObserveApprovalDecision(string(request.Kind), string(models.DecisionApproved))
	return s.loadRequest(ctx, id)
}

// Reject terminates the request at the current level. Rejection applies no
// side effects; an intermediate approval never costs the requester anything.
func (s *ApprovalService) Reject(ctx context.Context, id, actorID string, actorRole models.Role, comment string) (*models.ApprovalRequest, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, appErrors.ErrMissingReason
	}

	unlock := s.locks.Lock("request:" + id)
	defer unlock()

	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status.Terminal() {
		return nil, appErrors.WithState(appErrors.ErrRequestClosed, string(request.Status))
	}
	expected := request.CurrentApproverRole()
	if actorRole != expected {
		return nil, appErrors.WithState(appErrors.ErrNotYourTurn, string(expected))
	}

	entry := &models.ApprovalTrailEntry{
		RequestID:    id,
		Level:        request.CurrentLevel,
		ApproverRole: actorRole,
		ApproverID:   actorID,
		Decision:     models.DecisionRejected,
		Comment:      comment,
	}
	request.Status = models.RequestRejected

	if err := s.requests.AppendDecision(ctx, request, entry); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrRequestClosed, "request was decided concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record rejection")
	}
	s.metrics.ObserveApprovalDecision(string(request.Kind), string(models.DecisionRejected))
	return s.loadRequest(ctx, id)
}

// Get returns a request with its full trail.
func (s *ApprovalService) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	return s.loadRequest(ctx, id)
}

// List returns requests matching the filter.
func (s *ApprovalService) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error) {
	rows, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approval requests")
	}
	return rows, total, nil
}

// applySideEffect runs the domain effect bound to a fully approved request.
func (s *ApprovalService) applySideEffect(ctx context.Context, request *models.ApprovalRequest) error {
	switch request.Kind {
	case models.KindLeave:
		days := 0
		if request.LeaveDays != nil {
			days = *request.LeaveDays
		}
		if days > 0 {
			if err := s.employees.DecrementLeaveBalance(ctx, request.RequesterID, decimal.NewFromInt(int64(days))); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decrement leave balance")
			}
		}
		s.logger.Sugar().Infow("leave approved",
			"request_id", request.ID, "employee_id", request.RequesterID, "days", days)
		return nil

	case models.KindTimeCorrection:
		if request.CorrectionDate == nil {
			return appErrors.Clone(appErrors.ErrInternal, "correction request missing date")
		}
		if _, err := s.attendance.ApplyCorrection(ctx, request.RequesterID, *request.CorrectionDate,
			request.CorrectedCheckIn, request.CorrectedCheckOut); err != nil {
			return err
		}
		if s.queue != nil {
			job := jobs.Job{
				ID:      uuid.NewString(),
				Type:    RecomputeJobType,
				Payload: RecomputePayload{EmployeeID: request.RequesterID, Date: *request.CorrectionDate},
			}
			if err := s.queue.Enqueue(job); err != nil {
				s.logger.Sugar().Warnw("failed to enqueue recomputation",
					"request_id", request.ID, "employee_id", request.RequesterID, "error", err)
			}
		}
		return nil

	default:
		return appErrors.Clone(appErrors.ErrInternal, "unknown request kind")
	}
}

func (s *ApprovalService) loadRequest(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval request")
	}
	return request, nil
}

func (s *ApprovalService) loadEmployee(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.employees.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

func (s *ApprovalService) resolveChain(role models.Role) ([]string, error) {
	chain, ok := s.chains[string(role)]
	if !ok || len(chain) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no approval chain configured for role "+string(role))
	}
	return chain, nil
}

// countWorkdays counts dates in [start, end] on the leave workweek calendar.
func countWorkdays(start, end time.Time, workweekDays int) int {
	count := 0
	for cursor := dateOnly(start); !cursor.After(dateOnly(end)); cursor = cursor.AddDate(0, 0, 1) {
		switch cursor.Weekday() {
		case time.Sunday:
		case time.Saturday:
			if workweekDays > 5 {
				count++
			}
		default:
			count++
		}
	}
	return count
}
