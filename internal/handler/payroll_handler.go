package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bayani-hr/payroll-api/internal/models"
	"github.com/bayani-hr/payroll-api/internal/service"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
	"github.com/bayani-hr/payroll-api/pkg/response"
)

// PayrollHandler exposes payroll period and record endpoints.
type PayrollHandler struct {
	periods *service.PeriodService
	payroll *service.PayrollService
}

// NewPayrollHandler constructs handler.
func NewPayrollHandler(periods *service.PeriodService, payroll *service.PayrollService) *PayrollHandler {
	return &PayrollHandler{periods: periods, payroll: payroll}
}

// CreatePeriod initializes a payroll period with its draft records.
func (h *PayrollHandler) CreatePeriod(c *gin.Context) {
	var req service.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.periods.Initialize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Warning != "" {
		response.JSON(c, http.StatusCreated, result.Period, nil, map[string]interface{}{"warning": result.Warning})
		return
	}
	response.Created(c, result.Period)
}

// ListPeriods returns periods newest first.
func (h *PayrollHandler) ListPeriods(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	rows, total, err := h.periods.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, models.NewPagination(page, pageSize, total))
}

// GetPeriod returns one period.
func (h *PayrollHandler) GetPeriod(c *gin.Context) {
	period, err := h.periods.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// ComputeAll computes every record in the period.
func (h *PayrollHandler) ComputeAll(c *gin.Context) {
	result, err := h.periods.ComputeAll(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ComputeRecord recomputes one employee's record in the period.
func (h *PayrollHandler) ComputeRecord(c *gin.Context) {
	record, err := h.payroll.ComputeRecord(c.Request.Context(), c.Param("id"), c.Param("employeeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ListRecords returns the period's payroll records.
func (h *PayrollHandler) ListRecords(c *gin.Context) {
	rows, err := h.periods.ListRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// GetRecord returns one payroll record.
func (h *PayrollHandler) GetRecord(c *gin.Context) {
	record, err := h.payroll.GetRecord(c.Request.Context(), c.Param("recordId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ApproveRecord transitions one record computed→approved.
func (h *PayrollHandler) ApproveRecord(c *gin.Context) {
	approver := actorID(c)
	if approver == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "actor id is required"))
		return
	}
	record, err := h.periods.ApproveRecord(c.Request.Context(), c.Param("id"), c.Param("recordId"), approver)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Lock freezes the period and its records.
func (h *PayrollHandler) Lock(c *gin.Context) {
	period, err := h.periods.Lock(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// GeneratePayslips materializes payslips for a locked period.
func (h *PayrollHandler) GeneratePayslips(c *gin.Context) {
	count, err := h.periods.GeneratePayslips(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"payslips": count}, nil)
}

// ListPayslips returns the period's payslips.
func (h *PayrollHandler) ListPayslips(c *gin.Context) {
	rows, err := h.periods.ListPayslips(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Summary returns the cached aggregate view of the period.
func (h *PayrollHandler) Summary(c *gin.Context) {
	summary, err := h.periods.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
