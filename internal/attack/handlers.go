package attack

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes scenario control over HTTP.
type Handlers struct {
	orch *Orchestrator
}

// NewHandlers creates the handler set.
func NewHandlers(orch *Orchestrator) *Handlers {
	return &Handlers{orch: orch}
}

// RegisterRoutes mounts the scenario API on r.
func (h *Handlers) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/scenarios", h.list)
	r.GET("/scenarios/status", h.status)
	r.POST("/scenarios/:id/run", h.run)
	r.POST("/scenarios/stop", h.stop)
}

func (h *Handlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"scenarios": h.orch.Scenarios()})
}

func (h *Handlers) status(c *gin.Context) {
	st := h.orch.Status()
	if st == nil {
		c.JSON(http.StatusOK, gin.H{"status": "idle"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// run starts a scenario and drains its feed into the response body so a
// curl invocation shows the attack as it unfolds.
func (h *Handlers) run(c *gin.Context) {
	info, feed, err := h.orch.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrUnknownScenario):
			status = http.StatusNotFound
		case errors.Is(err, ErrAlreadyRunning):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	wait := c.Query("wait") != "false"
	if !wait {
		c.JSON(http.StatusAccepted, info)
		return
	}

	var lines []string
	for line := range feed {
		lines = append(lines, line)
	}
	c.JSON(http.StatusOK, gin.H{
		"run":    h.orch.Status(),
		"output": lines,
	})
}

func (h *Handlers) stop(c *gin.Context) {
	h.orch.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stop requested"})
}
