// Package controls holds the toggleable security controls and the gate
// that evaluates them against logins and transfers. Each control has a
// typed config; toggling or retuning one takes effect on the next
// gate check without restart.
package controls

import (
	"errors"
	"fmt"
	"time"

	"github.com/paydefense/sentinel/internal/money"
)

// Category identifies a control. The set is fixed at startup.
type Category string

const (
	CategoryRateLimit Category = "rate_limiting"
	CategoryLockout   Category = "lockout"
	CategoryMFA       Category = "mfa"
	CategoryTxnLimit  Category = "transaction_limit"
	CategoryBlacklist Category = "ip_blacklist"
	CategoryStepUp    Category = "step_up_auth"
)

// ErrUnknownControl is returned for a category outside the fixed set.
var ErrUnknownControl = errors.New("unknown security control")

// ErrBadConfig is returned when a config update names an unknown key
// or an unparsable value.
var ErrBadConfig = errors.New("invalid control configuration")

// RateLimitConfig bounds login attempts per source in a trailing minute.
type RateLimitConfig struct {
	MaxPerMinute int `json:"max_per_minute"`
}

// LockoutConfig locks an account after repeated failed logins.
type LockoutConfig struct {
	MaxAttempts     int `json:"max_attempts"`
	DurationMinutes int `json:"duration_minutes"`
}

// MFAConfig challenges transfers whose risk score exceeds the threshold.
type MFAConfig struct {
	RiskThreshold int `json:"risk_threshold"`
}

// TxnLimitConfig caps the total transferred per account per calendar day.
type TxnLimitConfig struct {
	DailyLimit money.Amount `json:"daily_limit"`
}

// BlacklistConfig denies any action from a listed IP.
type BlacklistConfig struct {
	IPs map[string]bool `json:"ips"`
}

// StepUpConfig escalates transfers over either threshold to a
// confirmation-code challenge.
type StepUpConfig struct {
	AmountThreshold money.Amount `json:"amount_threshold"`
	RiskThreshold   int          `json:"risk_threshold"`
}

// Control is one toggleable control with its typed config. Exactly one
// config pointer is non-nil, matching the category.
type Control struct {
	Category    Category `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Enabled     bool     `json:"enabled"`

	RateLimit *RateLimitConfig `json:"rate_limit,omitempty"`
	Lockout   *LockoutConfig   `json:"lockout,omitempty"`
	MFA       *MFAConfig       `json:"mfa,omitempty"`
	TxnLimit  *TxnLimitConfig  `json:"transaction_limit,omitempty"`
	Blacklist *BlacklistConfig `json:"blacklist,omitempty"`
	StepUp    *StepUpConfig    `json:"step_up,omitempty"`
}

func (c *Control) clone() *Control {
	cp := *c
	if c.RateLimit != nil {
		v := *c.RateLimit
		cp.RateLimit = &v
	}
	if c.Lockout != nil {
		v := *c.Lockout
		cp.Lockout = &v
	}
	if c.MFA != nil {
		v := *c.MFA
		cp.MFA = &v
	}
	if c.TxnLimit != nil {
		v := *c.TxnLimit
		cp.TxnLimit = &v
	}
	if c.Blacklist != nil {
		ips := make(map[string]bool, len(c.Blacklist.IPs))
		for ip := range c.Blacklist.IPs {
			ips[ip] = true
		}
		cp.Blacklist = &BlacklistConfig{IPs: ips}
	}
	if c.StepUp != nil {
		v := *c.StepUp
		cp.StepUp = &v
	}
	return &cp
}

// Action tells the gate which checks apply.
type Action string

const (
	ActionLogin    Action = "login"
	ActionTransfer Action = "transfer"
)

// Request carries everything the gate reads. The caller assembles it
// from ledger state so the gate itself stays pure.
type Request struct {
	Action Action
	Now    time.Time
	IP     string

	// Login checks.
	AttemptsLastMinute int
	UserLocked         bool
	LockoutUntil       *time.Time

	// Transfer checks.
	Amount           money.Amount
	DailyTransferred money.Amount
	RiskScore        int
	StepUpSatisfied  bool
}

// Decision is the gate's answer. A denial names the control that fired.
// RequiresStepUp is an allowance with a condition attached: the caller
// must park the transfer until the confirmation code arrives.
type Decision struct {
	Allowed        bool     `json:"allowed"`
	Control        Category `json:"control,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	RequiresStepUp bool     `json:"requires_step_up,omitempty"`
}

func deny(cat Category, format string, args ...any) Decision {
	return Decision{Control: cat, Reason: fmt.Sprintf(format, args...)}
}
