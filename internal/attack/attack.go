// Package attack simulates fraud campaigns against the live engine.
// Scenarios drive the real login and transfer flows, so every control,
// scorer and alert path fires exactly as it would under a real attack.
package attack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/controls"
	"github.com/paydefense/sentinel/internal/eventlog"
	"github.com/paydefense/sentinel/internal/idgen"
	"github.com/paydefense/sentinel/internal/ledger"
	"github.com/paydefense/sentinel/internal/metrics"
	"github.com/paydefense/sentinel/internal/threatintel"
	"github.com/paydefense/sentinel/internal/traces"
)

// ErrAlreadyRunning is returned when a scenario is requested while
// another is mid-flight. One campaign at a time.
var ErrAlreadyRunning = errors.New("a scenario is already running")

// ErrUnknownScenario is returned for an unregistered scenario ID.
var ErrUnknownScenario = errors.New("unknown scenario")

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunStopped   = "stopped"
)

// Env is what scenario phases act upon.
type Env struct {
	Ledger   *ledger.Service
	Controls *controls.Manager
	Intel    *threatintel.Index
	Selector *clock.Selector
}

// Phase is one named step of a scenario.
type Phase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) error
}

// Scenario is an ordered list of phases.
type Scenario struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Phases      []Phase  `json:"-"`
	PhaseNames  []string `json:"phases"`
}

// RunInfo describes one scenario run.
type RunInfo struct {
	ID         string    `json:"id"`
	ScenarioID string    `json:"scenario_id"`
	Status     string    `json:"status"`
	Phase      string    `json:"phase,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at,omitzero"`
}

// Runner is handed to phases: the environment plus an emit sink.
type Runner struct {
	Env
	orch *Orchestrator
}

// Emit writes one line to the run's live feed and the event log.
func (r *Runner) Emit(format string, args ...any) {
	r.orch.emit("%s", fmt.Sprintf(format, args...))
}

// Orchestrator owns the scenario registry and enforces single-flight
// execution.
type Orchestrator struct {
	env    Env
	pause  time.Duration
	clk    clock.Clock
	events *eventlog.Log
	logger *slog.Logger

	scenarios []*Scenario
	byID      map[string]*Scenario

	mu      sync.Mutex
	current *RunInfo
	feed    chan string
	stop    chan struct{}
	last    *RunInfo
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clk = c }
}

// WithEventLog mirrors run output into the activity feed.
func WithEventLog(ev *eventlog.Log) Option {
	return func(o *Orchestrator) { o.events = ev }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPhasePause sets the dramatic pause between phases. Zero disables
// it, which tests rely on.
func WithPhasePause(d time.Duration) Option {
	return func(o *Orchestrator) { o.pause = d }
}

// NewOrchestrator registers the built-in scenarios.
func NewOrchestrator(env Env, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		env:    env,
		pause:  400 * time.Millisecond,
		clk:    clock.System(),
		logger: slog.Default(),
		byID:   make(map[string]*Scenario),
	}
	for _, opt := range opts {
		opt(o)
	}
	for _, sc := range builtinScenarios() {
		for _, p := range sc.Phases {
			sc.PhaseNames = append(sc.PhaseNames, p.Name)
		}
		o.scenarios = append(o.scenarios, sc)
		o.byID[sc.ID] = sc
	}
	return o
}

// Scenarios lists the registry in registration order.
func (o *Orchestrator) Scenarios() []*Scenario {
	return o.scenarios
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

// Status returns the in-flight run, or the last finished one.
func (o *Orchestrator) Status() *RunInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		cp := *o.current
		return &cp
	}
	if o.last != nil {
		cp := *o.last
		return &cp
	}
	return nil
}

// Run starts a scenario and returns its info and live output feed. The
// feed closes when the run ends. A second Run while one is in flight
// fails with ErrAlreadyRunning.
func (o *Orchestrator) Run(ctx context.Context, scenarioID string) (*RunInfo, <-chan string, error) {
	sc, ok := o.byID[scenarioID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownScenario, scenarioID)
	}

	o.mu.Lock()
	if o.current != nil {
		o.mu.Unlock()
		return nil, nil, ErrAlreadyRunning
	}
	info := &RunInfo{
		ID:         idgen.WithPrefix(idgen.PrefixScenarioRun),
		ScenarioID: sc.ID,
		Status:     RunRunning,
		StartedAt:  o.clk.Now(),
	}
	o.current = info
	o.feed = make(chan string, 256)
	o.stop = make(chan struct{})
	feed := o.feed
	o.mu.Unlock()

	o.logger.Info("scenario started", "run_id", info.ID, "scenario", sc.ID)
	if o.events != nil {
		o.events.Append(eventlog.CategoryAttack, "scenario %s started (%s)", sc.Name, info.ID)
	}

	// The run outlives the request that started it; Stop is the only
	// cancellation path. WithoutCancel keeps the caller's trace context.
	go o.execute(context.WithoutCancel(ctx), sc, info)

	cp := *info
	return &cp, feed, nil
}

// Stop aborts the current run before its next phase. Stopping an idle
// orchestrator is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.current != nil {
		select {
		case <-o.stop:
		default:
			close(o.stop)
		}
	}
	o.mu.Unlock()
}

func (o *Orchestrator) execute(ctx context.Context, sc *Scenario, info *RunInfo) {
	ctx, span := traces.StartSpan(ctx, "attack.Run", traces.ScenarioID(sc.ID))
	defer span.End()

	runner := &Runner{Env: o.env, orch: o}
	status := RunCompleted
	var runErr error

phases:
	for i, phase := range sc.Phases {
		select {
		case <-o.stop:
			status = RunStopped
			break phases
		default:
		}

		o.mu.Lock()
		info.Phase = phase.Name
		o.mu.Unlock()
		o.emit("phase %d/%d: %s", i+1, len(sc.Phases), phase.Name)

		if err := phase.Run(ctx, runner); err != nil {
			// Partial execution is the designed behavior: everything
			// up to the failing phase stays in the ledger.
			runErr = err
			status = RunFailed
			o.emit("phase %q failed: %v", phase.Name, err)
			break
		}

		if o.pause > 0 && i < len(sc.Phases)-1 {
			select {
			case <-time.After(o.pause):
			case <-o.stop:
				status = RunStopped
				break phases
			}
		}
	}

	o.mu.Lock()
	info.Status = status
	info.Phase = ""
	info.EndedAt = o.clk.Now()
	if runErr != nil {
		info.Error = runErr.Error()
	}
	o.last = info
	o.current = nil
	close(o.feed)
	o.feed = nil
	o.mu.Unlock()

	metrics.ScenarioRunsTotal.WithLabelValues(status).Inc()
	o.logger.Info("scenario finished", "run_id", info.ID, "status", status, "error", runErr)
	if o.events != nil {
		o.events.Append(eventlog.CategoryAttack, "scenario %s %s", sc.Name, status)
	}
}

func (o *Orchestrator) emit(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	o.mu.Lock()
	if o.feed != nil {
		select {
		case o.feed <- line:
		default:
		}
	}
	o.mu.Unlock()
	if o.events != nil {
		o.events.Append(eventlog.CategoryAttack, "%s", line)
	}
}
