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

const approvalColumns = `id, requester_id, requester_role, kind, status, chain, current_level, total_required,
reason, leave_start, leave_end, leave_days, correction_date, corrected_check_in, corrected_check_out,
created_at, updated_at`

// ApprovalRepository handles persistence for approval requests and trails.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create stores a new pending request with its resolved chain.
func (r *ApprovalRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	now := time.Now().UTC()
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.CreatedAt = now
	request.UpdatedAt = now
	query := `INSERT INTO approval_requests (id, requester_id, requester_role, kind, status, chain, current_level,
total_required, reason, leave_start, leave_end, leave_days, correction_date, corrected_check_in,
corrected_check_out, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	if _, err := r.db.ExecContext(ctx, query, request.ID, request.RequesterID, request.RequesterRole,
		request.Kind, request.Status, request.Chain, request.CurrentLevel, request.TotalRequired,
		request.Reason, request.LeaveStart, request.LeaveEnd, request.LeaveDays, request.CorrectionDate,
		request.CorrectedCheckIn, request.CorrectedCheckOut, request.CreatedAt, request.UpdatedAt); err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	return nil
}

// FindByID returns a request with its full approval trail.
func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_requests WHERE id = $1`, approvalColumns)
	var request models.ApprovalRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find approval request %s: %w", id, err)
	}

	trailQuery := `SELECT id, request_id, level, approver_role, approver_id, decision, comment, decided_at
FROM approval_trail WHERE request_id = $1 ORDER BY level ASC`
	if err := r.db.SelectContext(ctx, &request.Trail, trailQuery, id); err != nil {
		return nil, fmt.Errorf("load approval trail %s: %w", id, err)
	}
	return &request, nil
}

// List returns requests matching the filter, newest first.
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.RequesterID != "" {
		where = append(where, fmt.Sprintf("requester_id = $%d", len(args)+1))
		args = append(args, filter.RequesterID)
	}
	if filter.Kind != "" {
		where = append(where, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
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

	query := fmt.Sprintf(`SELECT %s FROM approval_requests WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		approvalColumns, whereClause, size, offset)
	var rows []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list approval requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM approval_requests WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count approval requests: %w", err)
	}
	return rows, total, nil
}

// AppendDecision records a trail entry and the request's new position in a
// single transaction so a level advance can never lose its audit row.
func (r *ApprovalRepository) AppendDecision(ctx context.Context, request *models.ApprovalRequest, entry *models.ApprovalTrailEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.DecidedAt.IsZero() {
		entry.DecidedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO approval_trail (id, request_id, level, approver_role, approver_id, decision, comment, decided_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.RequestID, entry.Level, entry.ApproverRole, entry.ApproverID, entry.Decision,
		entry.Comment, entry.DecidedAt); err != nil {
		return fmt.Errorf("insert trail entry: %w", err)
	}

	request.UpdatedAt = time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE approval_requests SET status = $2, current_level = $3, updated_at = $4
WHERE id = $1 AND status = $5`,
		request.ID, request.Status, request.CurrentLevel, request.UpdatedAt, models.RequestPending)
	if err != nil {
		return fmt.Errorf("update approval request %s: %w", request.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update approval request %s: %w", request.ID, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decision tx: %w", err)
	}
	return nil
}

// ListApprovedLeaveOverlapping returns approved leave requests for the
// employee that overlap [from, to]; the computation engine credits paid
// leave from these.
func (r *ApprovalRepository) ListApprovedLeaveOverlapping(ctx context.Context, employeeID string, from, to time.Time) ([]models.ApprovalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_requests
WHERE requester_id = $1 AND kind = $2 AND status = $3
AND leave_start <= $4 AND leave_end >= $5
ORDER BY leave_start ASC`, approvalColumns)
	var rows []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, models.KindLeave, models.RequestApproved, to, from); err != nil {
		return nil, fmt.Errorf("list approved leave: %w", err)
	}
	return rows, nil
}
