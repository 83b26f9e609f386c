package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hr_backend/middlewares"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/workflow"
)

type issueOTPRequest struct {
	EmployeeId int `json:"employee_id" binding:"required,gt=0"`
}

type verifyOTPRequest struct {
	EmployeeId int      `json:"employee_id" binding:"required,gt=0"`
	Code       string   `json:"code" binding:"required,numeric"`
	Latitude   *float64 `json:"latitude" binding:"required"`
	Longitude  *float64 `json:"longitude" binding:"required"`
	SiteId     int      `json:"site_id" binding:"required,gt=0"`
}

type markDayRequest struct {
	EmployeeId int                     `json:"employee_id" binding:"required,gt=0"`
	Date       string                  `json:"date" binding:"required"`
	Status     models.AttendanceStatus `json:"status" binding:"required"`
}

type attendanceRow struct {
	*models.AttendanceRecord
	employeeLabel
}

func (h *Handler) issueOTP(c *gin.Context) {
	var req issueOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.svc().OTP.Issue(c.Request.Context(), req.EmployeeId)
	if err != nil {
		h.respondError(c, "issueOTP", err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.svc().OTP.Verify(c.Request.Context(), workflow.VerifyInput{
		EmployeeId: req.EmployeeId,
		Code:       req.Code,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		SiteId:     req.SiteId,
		Device:     c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, "verifyOTP", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// currentOTP lets support staff read back an employee's live code.
func (h *Handler) currentOTP(c *gin.Context) {
	employeeId, ok := pathId(c, "employee_id")
	if !ok {
		return
	}
	code, err := h.svc().OTP.CurrentCode(c.Request.Context(), employeeId)
	if err != nil {
		h.respondError(c, "currentOTP", err)
		return
	}
	c.JSON(http.StatusOK, code)
}

func (h *Handler) correctAttendance(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var correction models.AttendanceCorrection
	if !bindJSON(c, &correction) {
		return
	}
	record, err := h.svc().Attendance.Correct(c.Request.Context(), id, correction, middlewares.ActorId(c))
	if err != nil {
		h.respondError(c, "correctAttendance", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) markDay(c *gin.Context) {
	var req markDayRequest
	if !bindJSON(c, &req) {
		return
	}
	date, ok := parseDate(c, "date", req.Date)
	if !ok {
		return
	}
	record, err := h.svc().Attendance.MarkDay(c.Request.Context(), workflow.MarkDayInput{
		EmployeeId: req.EmployeeId,
		Date:       date,
		Status:     req.Status,
	}, middlewares.ActorId(c))
	if err != nil {
		h.respondError(c, "markDay", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) listAttendance(c *gin.Context) {
	employeeId, ok := queryInt(c, "employee_id", true)
	if !ok {
		return
	}
	from, ok := parseDate(c, "from", c.Query("from"))
	if !ok {
		return
	}
	to, ok := parseDate(c, "to", c.Query("to"))
	if !ok {
		return
	}
	records, err := h.svc().Attendance.List(c.Request.Context(), employeeId, from, to)
	if err != nil {
		h.respondError(c, "listAttendance", err)
		return
	}
	ids := make([]int, len(records))
	for i, rec := range records {
		ids[i] = rec.EmployeeId
	}
	labels := labelsFor(c.Request.Context(), ids)
	rows := make([]attendanceRow, len(records))
	for i, rec := range records {
		rows[i] = attendanceRow{AttendanceRecord: rec, employeeLabel: labels[i]}
	}
	c.JSON(http.StatusOK, rows)
}
