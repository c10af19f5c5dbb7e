package alerts

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handlers exposes alert review over HTTP.
type Handlers struct {
	mgr *Manager
}

// NewHandlers creates the handler set.
func NewHandlers(mgr *Manager) *Handlers {
	return &Handlers{mgr: mgr}
}

// RegisterRoutes mounts the alerts API on r.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/alerts", h.list)
	r.GET("/alerts/summary", h.summary)
	r.GET("/alerts/:id", h.get)
	r.PUT("/alerts/:id/status", h.updateStatus)
}

func alertFail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handlers) list(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts": h.mgr.List(Status(c.Query("status")), limit),
	})
}

func (h *Handlers) summary(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"by_status":   h.mgr.Counts(),
		"by_severity": h.mgr.BySeverity(),
	})
}

func (h *Handlers) get(c *gin.Context) {
	a, err := h.mgr.Get(c.Param("id"))
	if err != nil {
		alertFail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handlers) updateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.mgr.UpdateStatus(c.Param("id"), Status(req.Status))
	if err != nil {
		alertFail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
