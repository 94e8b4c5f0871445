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

// ApprovalHandler exposes the multi-stage approval endpoints.
type ApprovalHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalHandler constructs handler.
func NewApprovalHandler(approvals *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

type decisionPayload struct {
	Comment string `json:"comment"`
}

// SubmitLeave files a leave request.
func (h *ApprovalHandler) SubmitLeave(c *gin.Context) {
	var req service.SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.RequesterID == "" {
		req.RequesterID = actorID(c)
	}
	request, err := h.approvals.SubmitLeave(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// SubmitCorrection files a time-correction request.
func (h *ApprovalHandler) SubmitCorrection(c *gin.Context) {
	var req service.SubmitCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.RequesterID == "" {
		req.RequesterID = actorID(c)
	}
	request, err := h.approvals.SubmitCorrection(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Approve records the current level's approval.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	id, role := actorID(c), actorRole(c)
	if id == "" || role == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "actor identity is required"))
		return
	}
	var payload decisionPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	request, err := h.approvals.Approve(c.Request.Context(), c.Param("id"), id, role, payload.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject terminates the request at the current level.
func (h *ApprovalHandler) Reject(c *gin.Context) {
	id, role := actorID(c), actorRole(c)
	if id == "" || role == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "actor identity is required"))
		return
	}
	var payload decisionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := h.approvals.Reject(c.Request.Context(), c.Param("id"), id, role, payload.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Get returns one request with its full trail.
func (h *ApprovalHandler) Get(c *gin.Context) {
	request, err := h.approvals.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List returns requests matching the query filters.
func (h *ApprovalHandler) List(c *gin.Context) {
	filter := models.ApprovalFilter{
		RequesterID: c.Query("requesterId"),
		Kind:        models.RequestKind(c.Query("kind")),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.RequestStatus(raw)
		filter.Status = &status
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	rows, total, err := h.approvals.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, models.NewPagination(filter.Page, filter.PageSize, total))
}
