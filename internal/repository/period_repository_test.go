package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/bayani-hr/payroll-api/internal/models"
)

func newPeriodRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPeriodRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payroll_periods")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	period := &models.PayrollPeriod{
		Name:                  "June 2025",
		Cycle:                 models.CycleMonthly,
		StartDate:             time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:               time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		AttendanceCutoffStart: time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC),
		AttendanceCutoffEnd:   time.Date(2025, 6, 25, 0, 0, 0, 0, time.UTC),
		Status:                models.PeriodPendingComputation,
	}
	require.NoError(t, repo.Create(context.Background(), period))
	require.NotEmpty(t, period.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryFreezeLocksPeriodAndRecords(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payroll_periods SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payroll_records SET status")).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	require.NoError(t, repo.Freeze(context.Background(), "per-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryFreezeRequiresComputationCompleted(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	// The status guard matches zero rows; the record freeze never runs.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payroll_periods SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Freeze(context.Background(), "per-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryUpdateStatusGuardsCurrentStatus(t *testing.T) {
	db, mock, cleanup := newPeriodRepoMock(t)
	defer cleanup()

	repo := NewPeriodRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payroll_periods SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "per-1", models.PeriodPendingComputation, models.PeriodComputationCompleted)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
