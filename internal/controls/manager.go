package controls

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/paydefense/sentinel/internal/eventlog"
	"github.com/paydefense/sentinel/internal/money"
)

// Defaults seeds the initial control configs, usually from env config.
type Defaults struct {
	RateLimitPerMinute int
	LockoutMaxAttempts int
	LockoutMinutes     int
	MFARiskThreshold   int
	DailyLimit         money.Amount
	StepUpAmount       money.Amount
	StepUpRisk         int
}

// Manager owns the control set. All six controls exist from startup and
// start enabled; only their Enabled flag and configs change at runtime.
type Manager struct {
	mu       sync.RWMutex
	controls map[Category]*Control
	defaults Defaults

	events *eventlog.Log
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEventLog wires control changes into the activity feed.
func WithEventLog(ev *eventlog.Log) ManagerOption {
	return func(m *Manager) { m.events = ev }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds the six controls from the defaults.
func NewManager(d Defaults, opts ...ManagerOption) *Manager {
	m := &Manager{defaults: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.controls = buildControls(d)
	return m
}

func buildControls(d Defaults) map[Category]*Control {
	return map[Category]*Control{
		CategoryRateLimit: {
			Category:    CategoryRateLimit,
			Name:        "Login Rate Limiting",
			Description: "Caps login attempts per user in a trailing minute",
			Enabled:     true,
			RateLimit:   &RateLimitConfig{MaxPerMinute: d.RateLimitPerMinute},
		},
		CategoryLockout: {
			Category:    CategoryLockout,
			Name:        "Account Lockout",
			Description: "Locks accounts after repeated failed logins",
			Enabled:     true,
			Lockout:     &LockoutConfig{MaxAttempts: d.LockoutMaxAttempts, DurationMinutes: d.LockoutMinutes},
		},
		CategoryMFA: {
			Category:    CategoryMFA,
			Name:        "Risk-Based MFA",
			Description: "Challenges transfers above a risk score",
			Enabled:     true,
			MFA:         &MFAConfig{RiskThreshold: d.MFARiskThreshold},
		},
		CategoryTxnLimit: {
			Category:    CategoryTxnLimit,
			Name:        "Daily Transaction Limit",
			Description: "Caps total transferred per account per day",
			Enabled:     true,
			TxnLimit:    &TxnLimitConfig{DailyLimit: d.DailyLimit},
		},
		CategoryBlacklist: {
			Category:    CategoryBlacklist,
			Name:        "IP Blacklist",
			Description: "Denies all actions from listed IP addresses",
			Enabled:     true,
			Blacklist:   &BlacklistConfig{IPs: map[string]bool{}},
		},
		CategoryStepUp: {
			Category:    CategoryStepUp,
			Name:        "Step-Up Authentication",
			Description: "Requires a confirmation code for large or risky transfers",
			Enabled:     true,
			StepUp:      &StepUpConfig{AmountThreshold: d.StepUpAmount, RiskThreshold: d.StepUpRisk},
		},
	}
}

// Get returns a copy of one control.
func (m *Manager) Get(cat Category) (*Control, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controls[cat]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownControl, cat)
	}
	return c.clone(), nil
}

// List returns copies of all controls in a fixed order.
func (m *Manager) List() []*Control {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order := []Category{
		CategoryRateLimit, CategoryLockout, CategoryMFA,
		CategoryTxnLimit, CategoryBlacklist, CategoryStepUp,
	}
	out := make([]*Control, 0, len(order))
	for _, cat := range order {
		out = append(out, m.controls[cat].clone())
	}
	return out
}

// Toggle flips a control and returns its new enabled state.
func (m *Manager) Toggle(cat Category) (bool, error) {
	m.mu.Lock()
	c, ok := m.controls[cat]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownControl, cat)
	}
	c.Enabled = !c.Enabled
	enabled := c.Enabled
	m.mu.Unlock()

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	m.logger.Info("control toggled", "control", cat, "enabled", enabled)
	if m.events != nil {
		m.events.Append(eventlog.CategoryControl, "control %s %s", cat, state)
	}
	return enabled, nil
}

// UpdateConfig sets one config key on a control from its string form.
// Keys are per category; unknown keys and unparsable values fail with
// ErrBadConfig and leave the control untouched.
func (m *Manager) UpdateConfig(cat Category, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controls[cat]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownControl, cat)
	}

	switch cat {
	case CategoryRateLimit:
		if key != "max_per_minute" {
			return badKey(cat, key)
		}
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		c.RateLimit.MaxPerMinute = n
	case CategoryLockout:
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		switch key {
		case "max_attempts":
			c.Lockout.MaxAttempts = n
		case "duration_minutes":
			c.Lockout.DurationMinutes = n
		default:
			return badKey(cat, key)
		}
	case CategoryMFA:
		if key != "risk_threshold" {
			return badKey(cat, key)
		}
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		c.MFA.RiskThreshold = n
	case CategoryTxnLimit:
		if key != "daily_limit" {
			return badKey(cat, key)
		}
		amt, ok := money.Parse(value)
		if !ok || amt <= 0 {
			return fmt.Errorf("%w: bad amount %q", ErrBadConfig, value)
		}
		c.TxnLimit.DailyLimit = amt
	case CategoryStepUp:
		switch key {
		case "amount_threshold":
			amt, ok := money.Parse(value)
			if !ok || amt <= 0 {
				return fmt.Errorf("%w: bad amount %q", ErrBadConfig, value)
			}
			c.StepUp.AmountThreshold = amt
		case "risk_threshold":
			n, err := positiveInt(value)
			if err != nil {
				return err
			}
			c.StepUp.RiskThreshold = n
		default:
			return badKey(cat, key)
		}
	case CategoryBlacklist:
		// The blacklist is edited through AddBlacklistIP/RemoveBlacklistIP.
		return badKey(cat, key)
	}

	m.logger.Info("control config updated", "control", cat, "key", key, "value", value)
	if m.events != nil {
		m.events.Append(eventlog.CategoryControl, "control %s config %s set to %s", cat, key, value)
	}
	return nil
}

func badKey(cat Category, key string) error {
	return fmt.Errorf("%w: %s has no key %q", ErrBadConfig, cat, key)
}

func positiveInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: bad number %q", ErrBadConfig, value)
	}
	return n, nil
}

// AddBlacklistIP adds an IP to the blacklist.
func (m *Manager) AddBlacklistIP(ip string) {
	m.mu.Lock()
	m.controls[CategoryBlacklist].Blacklist.IPs[ip] = true
	m.mu.Unlock()
	m.logger.Info("ip blacklisted", "ip", ip)
	if m.events != nil {
		m.events.Append(eventlog.CategoryControl, "IP %s added to blacklist", ip)
	}
}

// RemoveBlacklistIP removes an IP; removing an unlisted IP is a no-op.
func (m *Manager) RemoveBlacklistIP(ip string) {
	m.mu.Lock()
	delete(m.controls[CategoryBlacklist].Blacklist.IPs, ip)
	m.mu.Unlock()
	if m.events != nil {
		m.events.Append(eventlog.CategoryControl, "IP %s removed from blacklist", ip)
	}
}

// LockoutPolicy returns the lockout settings the login flow enforces.
func (m *Manager) LockoutPolicy() (maxAttempts int, duration time.Duration, enabled bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.controls[CategoryLockout]
	return c.Lockout.MaxAttempts, time.Duration(c.Lockout.DurationMinutes) * time.Minute, c.Enabled
}

// Reset restores every control to its startup defaults.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.controls = buildControls(m.defaults)
	m.mu.Unlock()
	if m.events != nil {
		m.events.Append(eventlog.CategoryControl, "security controls reset to defaults")
	}
}
