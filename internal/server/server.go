// Package server assembles the engine: stores, scorers, controls,
// orchestrator, HTTP surface and the realtime feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paydefense/sentinel/internal/alerts"
	"github.com/paydefense/sentinel/internal/attack"
	"github.com/paydefense/sentinel/internal/behavior"
	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/config"
	"github.com/paydefense/sentinel/internal/controls"
	"github.com/paydefense/sentinel/internal/demo"
	"github.com/paydefense/sentinel/internal/eventlog"
	"github.com/paydefense/sentinel/internal/health"
	"github.com/paydefense/sentinel/internal/ledger"
	"github.com/paydefense/sentinel/internal/metrics"
	"github.com/paydefense/sentinel/internal/money"
	"github.com/paydefense/sentinel/internal/realtime"
	"github.com/paydefense/sentinel/internal/risk"
	"github.com/paydefense/sentinel/internal/threatintel"
	"github.com/paydefense/sentinel/internal/traces"
	"github.com/paydefense/sentinel/internal/validation"
)

// Control defaults not exposed through env config; tunable at runtime
// through the controls API.
const (
	defaultMFARisk      = 60
	defaultStepUpRisk   = 70
	defaultStepUpAmount = 10000 // dollars
)

// Server wires every component and serves the HTTP API.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	router *gin.Engine
	clk    clock.Clock

	store    *ledger.MemoryStore
	svc      *ledger.Service
	ctrl     *controls.Manager
	alerts   *alerts.Manager
	intel    *threatintel.Index
	events   *eventlog.Log
	orch     *attack.Orchestrator
	hub      *realtime.Hub
	profiler *behavior.Profiler
	checks   *health.Registry
}

// New builds the full engine and seeds the demo population.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	dailyLimit, ok := money.Parse(cfg.DailyTransferLimit)
	if !ok || dailyLimit <= 0 {
		return nil, fmt.Errorf("bad DAILY_TRANSFER_LIMIT %q", cfg.DailyTransferLimit)
	}

	seed := cfg.SelectorSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	selector := clock.NewSelector(seed)
	clk := clock.System()

	events := eventlog.New(clk)
	ctrl := controls.NewManager(controls.Defaults{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		LockoutMaxAttempts: cfg.LockoutMaxAttempts,
		LockoutMinutes:     cfg.LockoutMinutes,
		MFARiskThreshold:   defaultMFARisk,
		DailyLimit:         dailyLimit,
		StepUpAmount:       money.FromDollars(defaultStepUpAmount),
		StepUpRisk:         defaultStepUpRisk,
	}, controls.WithEventLog(events), controls.WithLogger(logger))

	am := alerts.NewManager(
		alerts.WithClock(clk),
		alerts.WithEventLog(events),
		alerts.WithLogger(logger))
	intel := threatintel.NewIndex(
		threatintel.WithClock(clk),
		threatintel.WithLogger(logger))
	profiler := behavior.NewProfiler(behavior.NewMemoryStore(), behavior.WithLogger(logger))

	store := ledger.NewMemoryStore()
	svc := ledger.NewService(store, ledger.Deps{
		Controls: ctrl,
		Scorer:   risk.NewScorer(risk.WithScorerLogger(logger)),
		Model:    risk.NewModel(risk.WithModelNoise(risk.NewSelectorNoise(selector)), risk.WithModelLogger(logger)),
		Profiler: profiler,
		Alerts:   am,
	},
		ledger.WithClock(clk),
		ledger.WithEventLog(events),
		ledger.WithLogger(logger),
		ledger.WithStepUpCode(cfg.StepUpCode),
	)

	orch := attack.NewOrchestrator(attack.Env{
		Ledger:   svc,
		Controls: ctrl,
		Intel:    intel,
		Selector: selector,
	},
		attack.WithClock(clk),
		attack.WithEventLog(events),
		attack.WithLogger(logger),
		attack.WithPhasePause(time.Duration(cfg.PhasePauseMS)*time.Millisecond),
	)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		clk:      clk,
		store:    store,
		svc:      svc,
		ctrl:     ctrl,
		alerts:   am,
		intel:    intel,
		events:   events,
		orch:     orch,
		hub:      realtime.NewHub(events, logger),
		profiler: profiler,
		checks:   health.NewRegistry(),
	}

	if err := demo.Seed(context.Background(), store, profiler, intel, clk); err != nil {
		return nil, fmt.Errorf("seed demo data: %w", err)
	}
	events.Append(eventlog.CategorySystem, "engine started, demo population seeded")

	s.checks.Register("ledger", func(ctx context.Context) error {
		_, err := store.Users(ctx)
		return err
	})
	s.checks.Register("orchestrator", func(ctx context.Context) error {
		// Always serviceable; a hung run would show here as "running"
		// forever, which readiness tolerates.
		return nil
	})

	s.router = s.buildRouter()
	return s, nil
}

// Router exposes the gin engine, used by tests and cmd wiring.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	if !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger())
	r.Use(securityHeaders())
	r.Use(metrics.Middleware())
	r.Use(validation.BodySizeLimit())

	r.GET("/healthz", s.checks.Live)
	r.GET("/readyz", s.checks.Ready)
	r.GET("/metrics", metrics.Handler())
	r.GET("/ws/events", s.hub.ServeWS)

	api := r.Group("/api/v1")
	ledger.NewHandlers(s.svc).RegisterRoutes(api)
	controls.NewHandlers(s.ctrl).RegisterRoutes(api)
	alerts.NewHandlers(s.alerts).RegisterRoutes(api)
	threatintel.NewHandlers(s.intel).RegisterRoutes(api)
	attack.NewHandlers(s.orch).RegisterRoutes(api)

	api.GET("/events", s.listEvents)
	api.POST("/reset", s.reset)
	return r
}

func (s *Server) listEvents(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"events": s.events.Entries(limit)})
}

// reset returns the whole engine to its seeded starting state. Any
// running scenario is stopped first so no phase commits into the fresh
// world.
func (s *Server) reset(c *gin.Context) {
	s.orch.Stop()
	for i := 0; s.orch.Running() && i < 100; i++ {
		time.Sleep(10 * time.Millisecond)
	}

	ctx := c.Request.Context()
	if err := s.svc.Reset(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.alerts.Reset()
	s.intel.Reset()
	s.ctrl.Reset()
	s.events.Reset()

	if err := demo.Seed(ctx, s.store, s.profiler, s.intel, s.clk); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.events.Append(eventlog.CategorySystem, "engine reset, demo population reseeded")
	s.logger.Info("engine reset")
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// Run serves HTTP until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	shutdownTraces, err := traces.Init(ctx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	s.orch.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := shutdownTraces(shutdownCtx); err != nil {
		s.logger.Warn("trace shutdown", "error", err)
	}
	return nil
}
