package controls

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes control management over HTTP.
type Handlers struct {
	mgr *Manager
}

// NewHandlers creates the handler set.
func NewHandlers(mgr *Manager) *Handlers {
	return &Handlers{mgr: mgr}
}

// RegisterRoutes mounts the controls API on r.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/controls", h.list)
	r.GET("/controls/:id", h.get)
	r.POST("/controls/:id/toggle", h.toggle)
	r.PUT("/controls/:id/config", h.updateConfig)
	r.POST("/controls/blacklist", h.addBlacklistIP)
	r.DELETE("/controls/blacklist/:ip", h.removeBlacklistIP)
}

func ctlFail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownControl):
		status = http.StatusNotFound
	case errors.Is(err, ErrBadConfig):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"controls": h.mgr.List()})
}

func (h *Handlers) get(c *gin.Context) {
	ctl, err := h.mgr.Get(Category(c.Param("id")))
	if err != nil {
		ctlFail(c, err)
		return
	}
	c.JSON(http.StatusOK, ctl)
}

func (h *Handlers) toggle(c *gin.Context) {
	enabled, err := h.mgr.Toggle(Category(c.Param("id")))
	if err != nil {
		ctlFail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": c.Param("id"), "enabled": enabled})
}

func (h *Handlers) updateConfig(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.mgr.UpdateConfig(Category(c.Param("id")), req.Key, req.Value); err != nil {
		ctlFail(c, err)
		return
	}
	ctl, _ := h.mgr.Get(Category(c.Param("id")))
	c.JSON(http.StatusOK, ctl)
}

func (h *Handlers) addBlacklistIP(c *gin.Context) {
	var req struct {
		IP string `json:"ip" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.mgr.AddBlacklistIP(req.IP)
	c.JSON(http.StatusOK, gin.H{"ip": req.IP, "blacklisted": true})
}

func (h *Handlers) removeBlacklistIP(c *gin.Context) {
	h.mgr.RemoveBlacklistIP(c.Param("ip"))
	c.JSON(http.StatusOK, gin.H{"ip": c.Param("ip"), "blacklisted": false})
}
