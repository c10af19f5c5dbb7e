// Package health exposes liveness and readiness probes over a registry
// of named checkers.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker reports whether one subsystem is serviceable.
type Checker func(ctx context.Context) error

// Registry holds named checkers. Liveness ignores them; readiness runs
// them all.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	started  time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker), started: time.Now()}
}

// Register adds or replaces a named checker.
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

// Live is the liveness handler: if the process answers, it is alive.
func (r *Registry) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(r.started).Round(time.Second).String(),
	})
}

// Ready runs every checker with a short deadline and reports per-check
// results. Any failure makes the whole probe 503.
func (r *Registry) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, ch := range r.checkers {
		checkers[name] = ch
	}
	r.mu.RUnlock()

	results := make(map[string]string, len(checkers))
	healthy := true
	for name, ch := range checkers {
		if err := ch(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
		} else {
			results[name] = "ok"
		}
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}
