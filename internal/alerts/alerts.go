// Package alerts records fraud alerts raised by flagged transfers and
// suspicious logins, and enforces their review lifecycle.
package alerts

import (
	"errors"
	"fmt"
	"time"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status is the alert's position in the review lifecycle.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// ErrInvalidTransition rejects lifecycle moves that would go backwards
// or leave a terminal state.
var ErrInvalidTransition = errors.New("invalid alert status transition")

// ErrNotFound is returned for an unknown alert ID.
var ErrNotFound = errors.New("alert not found")

// Alert is one raised alert. Exactly one of TransactionID and
// LoginLogID is set, depending on what raised it.
type Alert struct {
	ID            string    `json:"id"`
	Severity      Severity  `json:"severity"`
	Status        Status    `json:"status"`
	Title         string    `json:"title"`
	Reasons       []string  `json:"reasons"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	LoginLogID    string    `json:"login_log_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (a *Alert) clone() *Alert {
	cp := *a
	cp.Reasons = append([]string(nil), a.Reasons...)
	return &cp
}

// transitions is the one-directional lifecycle. Terminal states have no
// outgoing edges; an alert can never reopen.
var transitions = map[Status][]Status{
	StatusOpen:          {StatusInvestigating, StatusResolved, StatusFalsePositive},
	StatusInvestigating: {StatusResolved, StatusFalsePositive},
	StatusResolved:      {},
	StatusFalsePositive: {},
}

func canTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// SeverityForScore maps a rule risk score to an alert severity.
func SeverityForScore(score int) Severity {
	switch {
	case score >= 90:
		return SeverityCritical
	case score >= 70:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func validateStatusArg(s Status) error {
	if !validStatus(s) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}
	return nil
}
