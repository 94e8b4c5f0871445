package models

import (
	"time"

	"github.com/lib/pq"
)

// RequestKind distinguishes the two workflows sharing the approval chain.
type RequestKind string

const (
	KindLeave          RequestKind = "leave"
	KindTimeCorrection RequestKind = "time_correction"
)

// RequestStatus is the approval request state. pending covers every
// intermediate level; approved and rejected are terminal.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transitions are permitted.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// Decision records an approver's verdict in the trail.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ApprovalRequest abstracts leave and time-correction requests. The chain is
// resolved once at creation from the requester's role and never changes.
type ApprovalRequest struct {
	ID            string        `db:"id" json:"id"`
	RequesterID   string        `db:"requester_id" json:"requester_id"`
	RequesterRole Role          `db:"requester_role" json:"requester_role"`
	Kind          RequestKind   `db:"kind" json:"kind"`
	Status        RequestStatus `db:"status" json:"status"`

	// Chain holds the ordered approver roles; CurrentLevel indexes into it.
	Chain          pq.StringArray `db:"chain" json:"chain"`
	CurrentLevel   int            `db:"current_level" json:"current_level"`
	TotalRequired  int            `db:"total_required" json:"total_required"`

	Reason string `db:"reason" json:"reason"`

	// Leave payload.
	LeaveStart *time.Time `db:"leave_start" json:"leave_start,omitempty"`
	LeaveEnd   *time.Time `db:"leave_end" json:"leave_end,omitempty"`
	LeaveDays  *int       `db:"leave_days" json:"leave_days,omitempty"`

	// Time-correction payload.
	CorrectionDate     *time.Time `db:"correction_date" json:"correction_date,omitempty"`
	CorrectedCheckIn   *time.Time `db:"corrected_check_in" json:"corrected_check_in,omitempty"`
	CorrectedCheckOut  *time.Time `db:"corrected_check_out" json:"corrected_check_out,omitempty"`

	Trail []ApprovalTrailEntry `json:"trail,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CurrentApproverRole returns the role whose turn it is, or "" when the
// request is terminal or the chain is exhausted.
func (r *ApprovalRequest) CurrentApproverRole() Role {
	if r.Status.Terminal() || r.CurrentLevel >= len(r.Chain) {
		return ""
	}
	return Role(r.Chain[r.CurrentLevel])
}

// ApprovalTrailEntry is one step of the audit trail, ordered by level.
type ApprovalTrailEntry struct {
	ID           string    `db:"id" json:"id"`
	RequestID    string    `db:"request_id" json:"request_id"`
	Level        int       `db:"level" json:"level"`
	ApproverRole Role      `db:"approver_role" json:"approver_role"`
	ApproverID   string    `db:"approver_id" json:"approver_id"`
	Decision     Decision  `db:"decision" json:"decision"`
	Comment      string    `db:"comment" json:"comment"`
	DecidedAt    time.Time `db:"decided_at" json:"decided_at"`
}

// ApprovalFilter scopes request listing queries.
type ApprovalFilter struct {
	RequesterID string
	Kind        RequestKind
	Status      *RequestStatus
	Page        int
	PageSize    int
}
