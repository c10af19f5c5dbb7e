package risk

import (
	"log/slog"

	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/money"
)

// Rule weights. Each rule triggers independently and adds its weight;
// the total is capped at 100.
const (
	weightLargeAmount  = 30
	weightVelocity     = 25
	weightUnknownIP    = 20
	weightUnknownDev   = 15
	weightNewRecipient = 20
	weightForeignGeo   = 15
	weightOffHours     = 10
)

var largeAmountFloor = money.FromDollars(50000)

// Scorer evaluates the rule set against a candidate transfer.
type Scorer struct {
	logger *slog.Logger
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithScorerLogger sets the logger used for score traces.
func WithScorerLogger(l *slog.Logger) ScorerOption {
	return func(s *Scorer) { s.logger = l }
}

// NewScorer creates a rule scorer.
func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate runs every rule against the candidate and returns the summed,
// capped score with one reason string per triggered rule. Rules that need
// sender history are skipped when the snapshot has no sender.
func (s *Scorer) Evaluate(c *Candidate, snap *Snapshot) Assessment {
	var (
		score   int
		reasons []string
	)
	add := func(w int, reason string) {
		score += w
		reasons = append(reasons, reason)
	}

	if c.Amount > largeAmountFloor {
		add(weightLargeAmount, "large amount exceeding $50,000")
	}
	if priorInWindow(c, snap) >= 2 {
		add(weightVelocity, "high velocity: 3+ transfers inside 60 seconds")
	}
	if snap.SenderFound {
		if !snap.SenderKnownIPs[c.IP] {
			add(weightUnknownIP, "transfer from unrecognized IP address")
		}
		if !snap.SenderKnownDevices[c.Device] {
			add(weightUnknownDev, "transfer from unrecognized device")
		}
	}
	if snap.RecipientFound && snap.RecipientAgeDays < 7 {
		add(weightNewRecipient, "recipient account younger than 7 days")
	}
	if !clock.IsHomeGeo(c.Geo) {
		add(weightForeignGeo, "transfer from foreign geolocation")
	}
	if h := c.At.Hour(); h < 6 || h >= 23 {
		add(weightOffHours, "off-hours activity")
	}

	if score > 100 {
		score = 100
	}
	a := Assessment{Score: score, Reasons: reasons, Flagged: score >= FlagThreshold}
	s.logger.Debug("risk evaluated",
		"score", a.Score,
		"flagged", a.Flagged,
		"reasons", len(a.Reasons))
	return a
}
