package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hr_backend/models"
)

func (h *Handler) registerSite(c *gin.Context) {
	var input models.NewSite
	if !bindJSON(c, &input) {
		return
	}
	site, err := h.svc().Sites.Register(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "registerSite", err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

func (h *Handler) updateSite(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewSite
	if !bindJSON(c, &input) {
		return
	}
	site, err := h.svc().Sites.Update(c.Request.Context(), id, input)
	if err != nil {
		h.respondError(c, "updateSite", err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (h *Handler) getSite(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	site, err := h.svc().Sites.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "getSite", err)
		return
	}
	c.JSON(http.StatusOK, site)
}

func (h *Handler) listSites(c *gin.Context) {
	sites, err := h.svc().Sites.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "listSites", err)
		return
	}
	c.JSON(http.StatusOK, sites)
}

func (h *Handler) issueSiteQR(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	site, err := h.svc().Sites.IssueQR(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "issueSiteQR", err)
		return
	}
	c.JSON(http.StatusOK, site)
}
