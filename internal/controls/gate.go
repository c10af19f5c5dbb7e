package controls

import "log/slog"

// Gate evaluates the control set against a request. Checks run in a
// fixed order and the first denial wins; later controls are not
// consulted, so a blacklisted IP never trips the rate limiter.
type Gate struct {
	mgr    *Manager
	logger *slog.Logger
}

// NewGate creates a gate over the manager's live control state.
func NewGate(mgr *Manager, opts ...GateOption) *Gate {
	g := &Gate{mgr: mgr, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the gate's logger.
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// Check runs the ordered control checks:
//
//	ip_blacklist -> rate_limiting -> lockout   (logins)
//	ip_blacklist -> transaction_limit -> step_up_auth -> mfa   (transfers)
//
// Step-up short-circuits MFA: a transfer already escalated to a
// confirmation code is not additionally challenged.
func (g *Gate) Check(req Request) Decision {
	g.mgr.mu.RLock()
	defer g.mgr.mu.RUnlock()
	controls := g.mgr.controls

	if c := controls[CategoryBlacklist]; c.Enabled && c.Blacklist.IPs[req.IP] {
		return g.denied(req, deny(CategoryBlacklist, "IP %s is blacklisted", req.IP))
	}

	switch req.Action {
	case ActionLogin:
		if c := controls[CategoryRateLimit]; c.Enabled && req.AttemptsLastMinute >= c.RateLimit.MaxPerMinute {
			return g.denied(req, deny(CategoryRateLimit,
				"rate limit exceeded: %d attempts in the last minute", req.AttemptsLastMinute))
		}
		if c := controls[CategoryLockout]; c.Enabled && req.UserLocked {
			if req.LockoutUntil != nil && req.Now.Before(*req.LockoutUntil) {
				return g.denied(req, deny(CategoryLockout,
					"account locked until %s", req.LockoutUntil.Format("15:04:05 MST")))
			}
		}
	case ActionTransfer:
		if c := controls[CategoryTxnLimit]; c.Enabled && req.DailyTransferred+req.Amount > c.TxnLimit.DailyLimit {
			return g.denied(req, deny(CategoryTxnLimit,
				"daily transfer limit of %s exceeded", c.TxnLimit.DailyLimit))
		}
		if !req.StepUpSatisfied {
			if c := controls[CategoryStepUp]; c.Enabled &&
				(req.Amount > c.StepUp.AmountThreshold || req.RiskScore > c.StepUp.RiskThreshold) {
				return Decision{Allowed: true, Control: CategoryStepUp, RequiresStepUp: true,
					Reason: "transfer requires step-up confirmation"}
			}
			if c := controls[CategoryMFA]; c.Enabled && req.RiskScore > c.MFA.RiskThreshold {
				return Decision{Allowed: true, Control: CategoryMFA, RequiresStepUp: true,
					Reason: "risk score requires additional verification"}
			}
		}
	}
	return Decision{Allowed: true}
}

func (g *Gate) denied(req Request, d Decision) Decision {
	g.logger.Info("gate denied",
		"action", req.Action,
		"control", d.Control,
		"reason", d.Reason)
	return d
}
