package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hr_backend/models"
)

func (h *Handler) createEmployee(c *gin.Context) {
	var input models.NewEmployee
	if !bindJSON(c, &input) {
		return
	}
	emp, err := h.svc().Employees.Create(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "createEmployee", err)
		return
	}
	c.JSON(http.StatusCreated, emp)
}

func (h *Handler) updateEmployee(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewEmployee
	if !bindJSON(c, &input) {
		return
	}
	emp, err := h.svc().Employees.Update(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, "updateEmployee", err)
		return
	}
	c.JSON(http.StatusOK, emp)
}

// deactivateEmployee is a soft delete; history stays.
func (h *Handler) deactivateEmployee(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	emp, err := h.svc().Employees.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "deactivateEmployee", err)
		return
	}
	c.JSON(http.StatusOK, emp)
}

func (h *Handler) getEmployee(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	emp, err := h.svc().Employees.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getEmployee", err)
		return
	}
	c.JSON(http.StatusOK, emp)
}

func (h *Handler) listEmployees(c *gin.Context) {
	employees, err := h.svc().Employees.ListActive(c.Request.Context())
	if err != nil {
		h.respondError(c, "listEmployees", err)
		return
	}
	c.JSON(http.StatusOK, employees)
}
