package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hr_backend/config"
	"github.com/mmdatafocus/hr_backend/middlewares"
	"github.com/mmdatafocus/hr_backend/models"
	"github.com/mmdatafocus/hr_backend/utils"
	"github.com/mmdatafocus/hr_backend/workflow"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// Handler serves the HR REST surface. Services are attached once the database is reachable.
type Handler struct {
	mu       sync.RWMutex
	services *workflow.Services
	logger   *logrus.Logger
}

func NewHandler(logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Handler{logger: logger}
}

func (h *Handler) SetServices(services *workflow.Services) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services = services
}

func (h *Handler) svc() *workflow.Services {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.services
}

// ReadinessGate answers /healthz and returns 503 for everything else until services are attached.
func (h *Handler) ReadinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if h.svc() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

// GetEmployeesByIds feeds the per-request employee loader.
func (h *Handler) GetEmployeesByIds(ctx context.Context, ids []int) ([]*models.Employee, error) {
	return h.svc().Employees.GetMany(ctx, ids)
}

// RegisterRoutes mounts every HR route. otpLimiter guards code issuance and may be nil.
func (h *Handler) RegisterRoutes(r gin.IRouter, otpLimiter gin.HandlerFunc) {
	if otpLimiter == nil {
		otpLimiter = func(c *gin.Context) { c.Next() }
	}
	user := middlewares.RequireUser()
	admin := middlewares.RequireAdmin()

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	sites := r.Group("/sites", admin)
	sites.POST("", h.registerSite)
	sites.GET("", h.listSites)
	sites.GET("/:id", h.getSite)
	sites.PUT("/:id", h.updateSite)
	sites.POST("/:id/qr", h.issueSiteQR)

	employees := r.Group("/employees", admin)
	employees.POST("", h.createEmployee)
	employees.GET("", h.listEmployees)
	employees.GET("/:id", h.getEmployee)
	employees.PUT("/:id", h.updateEmployee)
	employees.DELETE("/:id", h.deactivateEmployee)

	attendance := r.Group("/attendance", middlewares.LoaderMiddleware(h))
	attendance.POST("/otp", user, otpLimiter, h.issueOTP)
	attendance.POST("/verify", user, h.verifyOTP)
	attendance.GET("/otp/:employee_id", admin, h.currentOTP)
	attendance.PUT("/:id", admin, h.correctAttendance)
	attendance.POST("/day-status", admin, h.markDay)
	attendance.GET("", admin, h.listAttendance)

	leaves := r.Group("/leaves", middlewares.LoaderMiddleware(h))
	leaves.POST("", user, h.applyLeave)
	leaves.GET("", user, h.listLeaves)
	leaves.POST("/:id/approve", admin, h.approveLeave)
	leaves.POST("/:id/reject", admin, h.rejectLeave)

	payroll := r.Group("/payroll", admin, middlewares.LoaderMiddleware(h))
	payroll.POST("/calculate", h.calculatePayroll)
	payroll.GET("", h.listPayroll)
	payroll.GET("/export", h.exportPayroll)
	payroll.GET("/:id", h.getPayroll)
	payroll.POST("/:id/process", h.processPayroll)
	payroll.POST("/:id/lock", h.lockPayroll)
}

// respondError maps the error kind to a status and carries the typed diagnostics.
func (h *Handler) respondError(c *gin.Context, funcName string, err error) {
	body := gin.H{"error": err.Error(), "kind": models.KindOf(err)}
	status := http.StatusInternalServerError

	switch models.KindOf(err) {
	case models.ErrorKindValidation:
		status = http.StatusBadRequest
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			body["field"] = ve.Field
		}
	case models.ErrorKindNotFound:
		status = http.StatusNotFound
	case models.ErrorKindConflict:
		status = http.StatusConflict
		var be *models.BlockedError
		if errors.As(err, &be) {
			body["blocked_until"] = be.Until
		}
	case models.ErrorKindSecurity:
		status = http.StatusUnprocessableEntity
		var ice *models.InvalidCodeError
		var ore *models.OutOfRangeError
		switch {
		case errors.As(err, &ice):
			body["attempts_left"] = ice.AttemptsLeft
			if ice.LockedUntil != nil {
				body["locked_until"] = ice.LockedUntil
			}
		case errors.As(err, &ore):
			body["distance_meters"] = ore.Distance
			body["radius_meters"] = ore.Radius
		}
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(h.logger, "handlers", funcName, c.FullPath(), gin.H{"correlation_id": cid}, err)
		body = gin.H{"error": "internal server error"}
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid request",
			"kind":   models.ErrorKindValidation,
			"fields": utils.ProcessValidationErrors(err),
		})
		return false
	}
	return true
}

func badRequest(c *gin.Context, field, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": models.ErrorKindValidation, "field": field})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, required bool) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			badRequest(c, name, name+" is required")
			return 0, false
		}
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name, name+" must be an integer")
		return 0, false
	}
	return n, true
}

func parseDate(c *gin.Context, field, raw string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		badRequest(c, field, field+" must be a date (YYYY-MM-DD)")
		return time.Time{}, false
	}
	return t, true
}

// period reads year and month from the query string.
func period(c *gin.Context) (int, time.Month, bool) {
	year, ok := queryInt(c, "year", true)
	if !ok {
		return 0, 0, false
	}
	month, ok := queryInt(c, "month", true)
	if !ok {
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// employeeLabel resolves code and name through the request loader.
type employeeLabel struct {
	EmployeeCode string `json:"employee_code,omitempty"`
	EmployeeName string `json:"employee_name,omitempty"`
}

func labelsFor(ctx context.Context, ids []int) []employeeLabel {
	labels := make([]employeeLabel, len(ids))
	if len(ids) == 0 {
		return labels
	}
	employees, _ := middlewares.GetEmployees(ctx, ids)
	for i, emp := range employees {
		if emp != nil {
			labels[i] = employeeLabel{EmployeeCode: emp.EmployeeCode, EmployeeName: emp.Name}
		}
	}
	return labels
}
