package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hr_backend/middlewares"
	"github.com/mmdatafocus/hr_backend/models"
)

type applyLeaveRequest struct {
	EmployeeId int    `json:"employee_id" binding:"required,gt=0"`
	Type       string `json:"type" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
	HalfDay    bool   `json:"half_day"`
	Reason     string `json:"reason" binding:"max=500"`
}

type rejectLeaveRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type leaveRow struct {
	*models.LeaveRecord
	employeeLabel
}

func (h *Handler) applyLeave(c *gin.Context) {
	var req applyLeaveRequest
	if !bindJSON(c, &req) {
		return
	}
	start, ok := parseDate(c, "start_date", req.StartDate)
	if !ok {
		return
	}
	end, ok := parseDate(c, "end_date", req.EndDate)
	if !ok {
		return
	}
	leave, err := h.svc().Leaves.Apply(c.Request.Context(), models.NewLeave{
		EmployeeId: req.EmployeeId,
		Type:       req.Type,
		StartDate:  start,
		EndDate:    end,
		HalfDay:    req.HalfDay,
		Reason:     req.Reason,
	})
	if err != nil {
		h.respondError(c, "applyLeave", err)
		return
	}
	c.JSON(http.StatusCreated, leave)
}

func (h *Handler) approveLeave(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	leave, err := h.svc().Leaves.Approve(c.Request.Context(), id, middlewares.ActorId(c))
	if err != nil {
		h.respondError(c, "approveLeave", err)
		return
	}
	c.JSON(http.StatusOK, leave)
}

func (h *Handler) rejectLeave(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var req rejectLeaveRequest
	if !bindJSON(c, &req) {
		return
	}
	leave, err := h.svc().Leaves.Reject(c.Request.Context(), id, middlewares.ActorId(c), req.Reason)
	if err != nil {
		h.respondError(c, "rejectLeave", err)
		return
	}
	c.JSON(http.StatusOK, leave)
}

func (h *Handler) listLeaves(c *gin.Context) {
	employeeId, ok := queryInt(c, "employee_id", false)
	if !ok {
		return
	}
	leaves, err := h.svc().Leaves.List(c.Request.Context(), models.LeaveFilter{
		EmployeeId: employeeId,
		Status:     models.LeaveStatus(c.Query("status")),
	})
	if err != nil {
		h.respondError(c, "listLeaves", err)
		return
	}
	ids := make([]int, len(leaves))
	for i, l := range leaves {
		ids[i] = l.EmployeeId
	}
	labels := labelsFor(c.Request.Context(), ids)
	rows := make([]leaveRow, len(leaves))
	for i, l := range leaves {
		rows[i] = leaveRow{LeaveRecord: l, employeeLabel: labels[i]}
	}
	c.JSON(http.StatusOK, rows)
}
