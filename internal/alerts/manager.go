package alerts

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/eventlog"
	"github.com/paydefense/sentinel/internal/idgen"
	"github.com/paydefense/sentinel/internal/metrics"
)

// Manager stores alerts and walks them through the lifecycle.
type Manager struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	order  []string // insertion order, oldest first

	clk    clock.Clock
	events *eventlog.Log
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clk = c }
}

// WithEventLog wires raised alerts into the activity feed.
func WithEventLog(ev *eventlog.Log) Option {
	return func(m *Manager) { m.events = ev }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates an empty alert manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		alerts: make(map[string]*Alert),
		clk:    clock.System(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Raise records a new alert in status open and returns a copy.
func (m *Manager) Raise(a Alert) *Alert {
	a.ID = idgen.WithPrefix(idgen.PrefixAlert)
	a.Status = StatusOpen
	now := m.clk.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	m.mu.Lock()
	m.alerts[a.ID] = a.clone()
	m.order = append(m.order, a.ID)
	m.mu.Unlock()

	metrics.AlertsTotal.WithLabelValues(string(a.Severity)).Inc()
	m.logger.Info("alert raised",
		"alert_id", a.ID,
		"severity", a.Severity,
		"user_id", a.UserID,
		"title", a.Title)
	if m.events != nil {
		m.events.Append(eventlog.CategoryAlert, "[%s] %s", a.Severity, a.Title)
	}
	return a.clone()
}

// Get returns a copy of one alert.
func (m *Manager) Get(id string) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a.clone(), nil
}

// List returns alerts newest first, optionally filtered by status.
// A zero limit means no cap.
func (m *Manager) List(status Status, limit int) []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Alert, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		a := m.alerts[m.order[i]]
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a.clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// UpdateStatus moves an alert along the lifecycle. Moves not on the
// open -> investigating -> resolved/false_positive path fail with
// ErrInvalidTransition, including any move out of a terminal state.
func (m *Manager) UpdateStatus(id string, to Status) (*Alert, error) {
	if err := validateStatusArg(to); err != nil {
		return nil, err
	}

	m.mu.Lock()
	a, ok := m.alerts[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !canTransition(a.Status, to) {
		from := a.Status
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	a.Status = to
	a.UpdatedAt = m.clk.Now()
	cp := a.clone()
	m.mu.Unlock()

	m.logger.Info("alert status updated", "alert_id", id, "status", to)
	if m.events != nil {
		m.events.Append(eventlog.CategoryAlert, "alert %s moved to %s", id, to)
	}
	return cp, nil
}

// Counts returns how many alerts sit in each status.
func (m *Manager) Counts() map[Status]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Status]int, 4)
	for _, a := range m.alerts {
		out[a.Status]++
	}
	return out
}

// SeverityCount pairs a severity with how many alerts carry it.
type SeverityCount struct {
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
}

// BySeverity returns severities and their counts, most severe first.
func (m *Manager) BySeverity() []SeverityCount {
	m.mu.RLock()
	counts := make(map[Severity]int)
	for _, a := range m.alerts {
		counts[a.Severity]++
	}
	m.mu.RUnlock()

	rank := map[Severity]int{SeverityCritical: 0, SeverityHigh: 1, SeverityMedium: 2, SeverityLow: 3}
	out := make([]SeverityCount, 0, len(counts))
	for sev, n := range counts {
		out = append(out, SeverityCount{Severity: sev, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return rank[out[i].Severity] < rank[out[j].Severity] })
	return out
}

// Reset drops every alert.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.alerts = make(map[string]*Alert)
	m.order = nil
	m.mu.Unlock()
}
