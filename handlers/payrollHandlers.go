package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hr_backend/middlewares"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/models/reports"
)

// calculatePayrollRequest without employee_id runs the whole active roster.
type calculatePayrollRequest struct {
	EmployeeId int `json:"employee_id" binding:"gte=0"`
	Year       int `json:"year" binding:"required"`
	Month      int `json:"month" binding:"required"`
}

type payrollRow struct {
	*models.PayrollRecord
	employeeLabel
}

func (h *Handler) calculatePayroll(c *gin.Context) {
	var req calculatePayrollRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.EmployeeId == 0 {
		summary, err := h.svc().Payroll.CalculateAll(c.Request.Context(), req.Year, time.Month(req.Month))
		if err != nil {
			h.respondError(c, "calculatePayroll", err)
			return
		}
		c.JSON(http.StatusOK, summary)
		return
	}
	record, err := h.svc().Payroll.Calculate(c.Request.Context(), req.EmployeeId, req.Year, time.Month(req.Month))
	if err != nil {
		h.respondError(c, "calculatePayroll", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) processPayroll(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	record, err := h.svc().Payroll.Process(c.Request.Context(), id, middlewares.ActorId(c))
	if err != nil {
		h.respondError(c, "processPayroll", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) lockPayroll(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	record, err := h.svc().Payroll.Lock(c.Request.Context(), id, middlewares.ActorId(c))
	if err != nil {
		h.respondError(c, "lockPayroll", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) getPayroll(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	record, err := h.svc().Payroll.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getPayroll", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) listPayroll(c *gin.Context) {
	year, month, ok := period(c)
	if !ok {
		return
	}
	records, err := h.svc().Payroll.List(c.Request.Context(), year, month)
	if err != nil {
		h.respondError(c, "listPayroll", err)
		return
	}
	ids := make([]int, len(records))
	for i, rec := range records {
		ids[i] = rec.EmployeeId
	}
	labels := labelsFor(c.Request.Context(), ids)
	rows := make([]payrollRow, len(records))
	for i, rec := range records {
		rows[i] = payrollRow{PayrollRecord: rec, employeeLabel: labels[i]}
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) exportPayroll(c *gin.Context) {
	year, month, ok := period(c)
	if !ok {
		return
	}
	data, err := h.svc().Payroll.Export(c.Request.Context(), year, month)
	if err != nil {
		h.respondError(c, "exportPayroll", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="payroll-%04d-%02d.xlsx"`, year, int(month)))
	c.Data(http.StatusOK, reports.XlsxContentType, data)
}
