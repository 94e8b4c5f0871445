package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bayani-hr/payroll-api/internal/models"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
)

type settingsRepo interface {
	GetTaxSettings(ctx context.Context) (*models.TaxSettings, error)
	UpsertTaxSettings(ctx context.Context, settings *models.TaxSettings) error
	ListTaxBrackets(ctx context.Context) ([]models.TaxBracket, error)
	ListContributionBrackets(ctx context.Context) ([]models.ContributionBracket, error)
	UpsertContributionBracket(ctx context.Context, bracket *models.ContributionBracket) error
	ListHolidays(ctx context.Context, from, to time.Time) ([]models.Holiday, error)
	UpsertHoliday(ctx context.Context, holiday *models.Holiday) error
}

// UpdateTaxSettingsRequest is the tax settings update payload.
type UpdateTaxSettingsRequest struct {
	MinimumTaxableIncome decimal.Decimal `json:"minimum_taxable_income"`
	TaxExemptionEnabled  bool            `json:"tax_exemption_enabled"`
	AutoApplyExemption   bool            `json:"auto_apply_exemption"`
	UpdatedBy            string          `json:"updated_by" validate:"required"`
}

// UpsertContributionBracketRequest is one statutory bracket row.
type UpsertContributionBracketRequest struct {
	Kind       models.ContributionKind `json:"kind" validate:"required"`
	GrossFloor decimal.Decimal         `json:"gross_floor"`
	GrossCeil  decimal.Decimal         `json:"gross_ceil"`
	Amount     decimal.Decimal         `json:"amount"`
}

// UpsertHolidayRequest flags one calendar date.
type UpsertHolidayRequest struct {
	Date time.Time `json:"date" validate:"required"`
	Name string    `json:"name" validate:"required"`
}

// SettingsService manages the statutory reference data the computation
// engine consumes: tax settings, contribution brackets and holidays.
type SettingsService struct {
	settings  settingsRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs SettingsService.
func NewSettingsService(settings settingsRepo, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{settings: settings, validator: validate, logger: logger}
}

// GetTaxSettings returns the singleton row.
func (s *SettingsService) GetTaxSettings(ctx context.Context) (*models.TaxSettings, error) {
	settings, err := s.settings.GetTaxSettings(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tax settings not configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tax settings")
	}
	return settings, nil
}

// UpdateTaxSettings replaces the singleton, recording who changed it.
func (s *SettingsService) UpdateTaxSettings(ctx context.Context, req UpdateTaxSettingsRequest) (*models.TaxSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tax settings payload")
	}
	if req.MinimumTaxableIncome.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "minimum taxable income cannot be negative")
	}

	existing, err := s.settings.GetTaxSettings(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tax settings")
	}

	settings := &models.TaxSettings{
		MinimumTaxableIncome: req.MinimumTaxableIncome,
		TaxExemptionEnabled:  req.TaxExemptionEnabled,
		AutoApplyExemption:   req.AutoApplyExemption,
		UpdatedBy:            &req.UpdatedBy,
	}
	if existing != nil {
		settings.ID = existing.ID
	}
	if err := s.settings.UpsertTaxSettings(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tax settings")
	}
	s.logger.Sugar().Infow("tax settings updated", "updated_by", req.UpdatedBy)
	return settings, nil
}

// ListTaxBrackets returns the withholding schedule.
func (s *SettingsService) ListTaxBrackets(ctx context.Context) ([]models.TaxBracket, error) {
	rows, err := s.settings.ListTaxBrackets(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tax brackets")
	}
	return rows, nil
}

// ListContributionBrackets returns the statutory bracket table.
func (s *SettingsService) ListContributionBrackets(ctx context.Context) ([]models.ContributionBracket, error) {
	rows, err := s.settings.ListContributionBrackets(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contribution brackets")
	}
	return rows, nil
}

// UpsertContributionBracket inserts or replaces one bracket row.
func (s *SettingsService) UpsertContributionBracket(ctx context.Context, req UpsertContributionBracketRequest) (*models.ContributionBracket, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bracket payload")
	}
	if req.GrossCeil.LessThan(req.GrossFloor) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "gross ceiling below gross floor")
	}

	bracket := &models.ContributionBracket{
		Kind:       req.Kind,
		GrossFloor: req.GrossFloor,
		GrossCeil:  req.GrossCeil,
		Amount:     req.Amount,
	}
	if err := s.settings.UpsertContributionBracket(ctx, bracket); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert contribution bracket")
	}
	return bracket, nil
}

// ListHolidays returns holiday flags inside the range.
func (s *SettingsService) ListHolidays(ctx context.Context, from, to time.Time) ([]models.Holiday, error) {
	rows, err := s.settings.ListHolidays(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return rows, nil
}

// UpsertHoliday flags or renames a holiday date.
func (s *SettingsService) UpsertHoliday(ctx context.Context, req UpsertHolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	holiday := &models.Holiday{Date: dateOnly(req.Date), Name: req.Name}
	if err := s.settings.UpsertHoliday(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert holiday")
	}
	return holiday, nil
}
