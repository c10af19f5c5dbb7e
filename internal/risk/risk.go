// Package risk implements transaction risk scoring.
//
// Two detectors run side by side on every transfer. The rule scorer adds
// fixed weights for independently triggered rules (large amount, velocity,
// unknown IP/device, new recipient, foreign geo, off-hours) and caps at 100.
// The model computes a probability from the same signals through a
// fixed-weight logistic function. Both are pure: identical inputs always
// produce identical outputs, and all time comes from the candidate
// timestamp, never the ambient clock.
package risk

import (
	"time"

	"github.com/paydefense/sentinel/internal/money"
)

// FlagThreshold is the rule score at and above which a transaction is
// flagged for review. Flagged transactions still commit.
const FlagThreshold = 40

// Candidate is the transaction being scored, before it exists.
type Candidate struct {
	Amount money.Amount
	IP     string
	Device string
	Geo    string
	At     time.Time
}

// Snapshot is the slice of ledger state the scorers read. The ledger
// assembles it under one lock so both detectors see the same world.
type Snapshot struct {
	SenderFound        bool
	SenderKnownIPs     map[string]bool
	SenderKnownDevices map[string]bool
	SenderAgeDays      int

	RecipientFound   bool
	RecipientAgeDays int

	// PriorTransfers holds timestamps of the sender's earlier transfers,
	// newest or oldest first; order does not matter, only the window.
	PriorTransfers []time.Time
}

// Assessment is the rule scorer's verdict.
type Assessment struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
	Flagged bool     `json:"flagged"`
}

// velocityWindow is the trailing window for the velocity rule and the
// model's velocity feature. The comparison is a strict less-than:
// a prior transfer exactly 60s old is outside the window.
const velocityWindow = 60 * time.Second

// priorInWindow counts prior transfers strictly within the trailing
// window before the candidate.
func priorInWindow(c *Candidate, snap *Snapshot) int {
	n := 0
	for _, ts := range snap.PriorTransfers {
		elapsed := c.At.Sub(ts)
		if elapsed >= 0 && elapsed < velocityWindow {
			n++
		}
	}
	return n
}
