package threatintel

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the indicator index over HTTP.
type Handlers struct {
	ix *Index
}

// NewHandlers creates the handler set.
func NewHandlers(ix *Index) *Handlers {
	return &Handlers{ix: ix}
}

// RegisterRoutes mounts the intel API on r.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/intel", h.list)
	r.POST("/intel", h.add)
	r.POST("/intel/correlate", h.correlate)
	r.PUT("/intel/:id/active", h.setActive)
}

func (h *Handlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"indicators": h.ix.List()})
}

func (h *Handlers) add(c *gin.Context) {
	var req struct {
		Kind       string `json:"kind" binding:"required"`
		Value      string `json:"value" binding:"required"`
		Source     string `json:"source" binding:"required"`
		Confidence int    `json:"confidence"`
		Note       string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ind, err := h.ix.Add(Kind(req.Kind), req.Value, req.Source, req.Confidence, req.Note)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, ind)
}

func (h *Handlers) correlate(c *gin.Context) {
	var q Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	matches := h.ix.Correlate(q)
	c.JSON(http.StatusOK, gin.H{"matches": matches, "hit": len(matches) > 0})
}

func (h *Handlers) setActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ix.SetActive(c.Param("id"), *req.Active); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrBadIndicator) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "active": *req.Active})
}
