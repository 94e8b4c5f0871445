package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bayani-hr/payroll-api/internal/models"
)

// SettingsRepository handles the tax settings singleton, withholding
// schedule, contribution brackets and the holiday calendar.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetTaxSettings returns the singleton row.
func (r *SettingsRepository) GetTaxSettings(ctx context.Context) (*models.TaxSettings, error) {
	query := `SELECT id, minimum_taxable_income, tax_exemption_enabled, auto_apply_exemption, updated_by, updated_at
FROM tax_settings LIMIT 1`
	var settings models.TaxSettings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get tax settings: %w", err)
	}
	return &settings, nil
}

// UpsertTaxSettings updates the singleton in place, creating it on first use.
func (r *SettingsRepository) UpsertTaxSettings(ctx context.Context, settings *models.TaxSettings) error {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	settings.UpdatedAt = time.Now().UTC()
	query := `INSERT INTO tax_settings (id, minimum_taxable_income, tax_exemption_enabled, auto_apply_exemption, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
minimum_taxable_income = EXCLUDED.minimum_taxable_income,
tax_exemption_enabled = EXCLUDED.tax_exemption_enabled,
auto_apply_exemption = EXCLUDED.auto_apply_exemption,
updated_by = EXCLUDED.updated_by,
updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, settings.ID, settings.MinimumTaxableIncome,
		settings.TaxExemptionEnabled, settings.AutoApplyExemption, settings.UpdatedBy, settings.UpdatedAt); err != nil {
		return fmt.Errorf("upsert tax settings: %w", err)
	}
	return nil
}

// ListTaxBrackets returns the withholding schedule ordered by lower bound.
func (r *SettingsRepository) ListTaxBrackets(ctx context.Context) ([]models.TaxBracket, error) {
	query := `SELECT id, lower_bound, base_tax, rate FROM tax_brackets ORDER BY lower_bound ASC`
	var rows []models.TaxBracket
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list tax brackets: %w", err)
	}
	return rows, nil
}

// ListContributionBrackets returns the statutory bracket table ordered by
// kind and gross floor.
func (r *SettingsRepository) ListContributionBrackets(ctx context.Context) ([]models.ContributionBracket, error) {
	query := `SELECT id, kind, gross_floor, gross_ceil, amount FROM contribution_brackets ORDER BY kind, gross_floor ASC`
	var rows []models.ContributionBracket
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list contribution brackets: %w", err)
	}
	return rows, nil
}

// UpsertContributionBracket inserts or replaces one bracket row.
func (r *SettingsRepository) UpsertContributionBracket(ctx context.Context, bracket *models.ContributionBracket) error {
	if bracket.ID == "" {
		bracket.ID = uuid.NewString()
	}
	query := `INSERT INTO contribution_brackets (id, kind, gross_floor, gross_ceil, amount)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (kind, gross_floor) DO UPDATE SET gross_ceil = EXCLUDED.gross_ceil, amount = EXCLUDED.amount`
	if _, err := r.db.ExecContext(ctx, query, bracket.ID, bracket.Kind, bracket.GrossFloor, bracket.GrossCeil, bracket.Amount); err != nil {
		return fmt.Errorf("upsert contribution bracket: %w", err)
	}
	return nil
}

// ListHolidays returns holiday flags inside [from, to].
func (r *SettingsRepository) ListHolidays(ctx context.Context, from, to time.Time) ([]models.Holiday, error) {
	query := `SELECT id, date, name FROM holidays WHERE date >= $1 AND date <= $2 ORDER BY date ASC`
	var rows []models.Holiday
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return rows, nil
}

// UpsertHoliday inserts or renames a holiday flag.
func (r *SettingsRepository) UpsertHoliday(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	query := `INSERT INTO holidays (id, date, name) VALUES ($1, $2, $3)
ON CONFLICT (date) DO UPDATE SET name = EXCLUDED.name`
	if _, err := r.db.ExecContext(ctx, query, holiday.ID, holiday.Date, holiday.Name); err != nil {
		return fmt.Errorf("upsert holiday: %w", err)
	}
	return nil
}
