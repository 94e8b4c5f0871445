package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/bayani-hr/payroll-api/internal/models"
)

func newApprovalRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func pendingRequest() *models.ApprovalRequest {
	return &models.ApprovalRequest{
		ID:            "req-1",
		RequesterID:   "emp-1",
		RequesterRole: models.RoleEmployee,
		Kind:          models.KindLeave,
		Status:        models.RequestPending,
		Chain:         pq.StringArray{"supervisor", "hr_staff", "hr_head"},
		CurrentLevel:  1,
		TotalRequired: 3,
		Reason:        "family trip",
	}
}

func trailEntry() *models.ApprovalTrailEntry {
	return &models.ApprovalTrailEntry{
		RequestID:    "req-1",
		Level:        0,
		ApproverRole: models.RoleSupervisor,
		ApproverID:   "sup-1",
		Decision:     models.DecisionApproved,
		Comment:      "ok",
	}
}

func TestApprovalRepositoryAppendDecisionCommitsTrailAndRequest(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_trail")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry := trailEntry()
	require.NoError(t, repo.AppendDecision(context.Background(), pendingRequest(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.DecidedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryAppendDecisionLosesToFirstWriter(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	// The request was already decided, so the pending-status guard matches
	// zero rows and the trail insert rolls back with it.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_trail")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_requests SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AppendDecision(context.Background(), pendingRequest(), trailEntry())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryCreateStoresChain(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := pendingRequest()
	request.ID = ""
	require.NoError(t, repo.Create(context.Background(), request))
	require.NotEmpty(t, request.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
