package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bayani-hr/payroll-api/internal/service"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
	"github.com/bayani-hr/payroll-api/pkg/response"
)

// SettingsHandler exposes statutory reference data endpoints.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler constructs handler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetTaxSettings returns the tax settings singleton.
func (h *SettingsHandler) GetTaxSettings(c *gin.Context) {
	settings, err := h.settings.GetTaxSettings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdateTaxSettings replaces the tax settings singleton.
func (h *SettingsHandler) UpdateTaxSettings(c *gin.Context) {
	var req service.UpdateTaxSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.UpdatedBy == "" {
		req.UpdatedBy = actorID(c)
	}
	settings, err := h.settings.UpdateTaxSettings(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// ListTaxBrackets returns the withholding schedule.
func (h *SettingsHandler) ListTaxBrackets(c *gin.Context) {
	rows, err := h.settings.ListTaxBrackets(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ListContributionBrackets returns the statutory bracket table.
func (h *SettingsHandler) ListContributionBrackets(c *gin.Context) {
	rows, err := h.settings.ListContributionBrackets(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// UpsertContributionBracket inserts or replaces one bracket row.
func (h *SettingsHandler) UpsertContributionBracket(c *gin.Context) {
	var req service.UpsertContributionBracketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bracket, err := h.settings.UpsertContributionBracket(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bracket, nil)
}

// ListHolidays returns holidays inside the query range.
func (h *SettingsHandler) ListHolidays(c *gin.Context) {
	from, okFrom := parseDateQuery(c, "from")
	to, okTo := parseDateQuery(c, "to")
	if !okFrom || !okTo {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to query dates are required"))
		return
	}
	rows, err := h.settings.ListHolidays(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// UpsertHoliday flags or renames a holiday date.
func (h *SettingsHandler) UpsertHoliday(c *gin.Context) {
	var req service.UpsertHolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	holiday, err := h.settings.UpsertHoliday(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holiday, nil)
}
