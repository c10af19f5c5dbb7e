package ledger

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/paydefense/sentinel/internal/alerts"
	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/controls"
	"github.com/paydefense/sentinel/internal/eventlog"
	"github.com/paydefense/sentinel/internal/idgen"
	"github.com/paydefense/sentinel/internal/metrics"
	"github.com/paydefense/sentinel/internal/traces"
)

// LoginRequest is one authentication attempt.
type LoginRequest struct {
	Username string        `json:"username" binding:"required"`
	Password string        `json:"password" binding:"required"`
	Context  clock.Context `json:"context"`
}

// LoginOutcome reports the result of one attempt. Blocked and failed
// are outcomes, not errors; only an unknown username errors.
type LoginOutcome struct {
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
	LoginLogID string `json:"login_log_id"`
	UserID     string `json:"user_id,omitempty"`

	NewIP     bool `json:"new_ip,omitempty"`
	NewDevice bool `json:"new_device,omitempty"`
	Locked    bool `json:"locked,omitempty"`
}

// Login authenticates a user. The gate runs before the password check,
// so a blacklisted or rate-limited caller learns nothing about the
// credential. Every attempt past user lookup is logged.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginOutcome, error) {
	ctx, span := traces.StartSpan(ctx, "ledger.Login")
	defer span.End()

	now := s.clk.Now()
	u, err := s.store.UserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(traces.UserID(u.ID))

	// A lockout that has expired clears on the next attempt, before
	// the gate reads the lock state.
	if u.IsLocked && u.LockoutUntil != nil && !now.Before(*u.LockoutUntil) {
		u.IsLocked = false
		u.LockoutUntil = nil
		u.FailedLoginAttempts = 0
		if err := s.store.UpdateUser(ctx, u); err != nil {
			return nil, err
		}
	}

	attempts, err := s.store.CountLoginAttempts(ctx, u.ID, now.Add(-time.Minute))
	if err != nil {
		return nil, err
	}
	decision := s.gate.Check(controls.Request{
		Action:             controls.ActionLogin,
		Now:                now,
		IP:                 req.Context.IP,
		AttemptsLastMinute: attempts,
		UserLocked:         u.IsLocked,
		LockoutUntil:       u.LockoutUntil,
	})
	if !decision.Allowed {
		log := s.appendLoginLog(ctx, u, req, LoginBlocked, decision.Reason, now)
		metrics.LoginsTotal.WithLabelValues(LoginBlocked).Inc()
		metrics.GateDenialsTotal.WithLabelValues(string(decision.Control)).Inc()
		s.appendEvent(eventlog.CategoryAuth, "login for %s blocked by %s", u.Username, decision.Control)
		return &LoginOutcome{
			Outcome:    LoginBlocked,
			Reason:     decision.Reason,
			LoginLogID: log.ID,
			UserID:     u.ID,
			Locked:     u.IsLocked,
		}, nil
	}

	if subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(HashPassword(req.Password))) != 1 {
		return s.failLogin(ctx, u, req, now)
	}
	return s.succeedLogin(ctx, u, req, now)
}

func (s *Service) failLogin(ctx context.Context, u *User, req LoginRequest, now time.Time) (*LoginOutcome, error) {
	u.FailedLoginAttempts++
	reason := "invalid credentials"

	maxAttempts, lockFor, lockoutEnabled := s.controls.LockoutPolicy()
	if lockoutEnabled && u.FailedLoginAttempts >= maxAttempts {
		until := now.Add(lockFor)
		u.IsLocked = true
		u.LockoutUntil = &until
		reason = fmt.Sprintf("invalid credentials; account locked for %s", lockFor)
		s.appendEvent(eventlog.CategoryAuth, "user %s locked after %d failed attempts", u.Username, u.FailedLoginAttempts)
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	log := s.appendLoginLog(ctx, u, req, LoginFailed, reason, now)
	metrics.LoginsTotal.WithLabelValues(LoginFailed).Inc()
	s.logger.Info("login failed",
		"username", u.Username,
		"attempts", u.FailedLoginAttempts,
		"locked", u.IsLocked)
	s.appendEvent(eventlog.CategoryAuth, "failed login for %s from %s", u.Username, req.Context.IP)
	return &LoginOutcome{
		Outcome:    LoginFailed,
		Reason:     reason,
		LoginLogID: log.ID,
		UserID:     u.ID,
		Locked:     u.IsLocked,
	}, nil
}

func (s *Service) succeedLogin(ctx context.Context, u *User, req LoginRequest, now time.Time) (*LoginOutcome, error) {
	newIP := req.Context.IP != "" && !u.KnownIPs[req.Context.IP]
	newDevice := req.Context.Device != "" && !u.KnownDevices[req.Context.Device]

	u.FailedLoginAttempts = 0
	u.IsLocked = false
	u.LockoutUntil = nil
	if req.Context.IP != "" {
		u.KnownIPs[req.Context.IP] = true
	}
	if req.Context.Device != "" {
		u.KnownDevices[req.Context.Device] = true
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	log := s.appendLoginLog(ctx, u, req, LoginSuccess, "", now)
	metrics.LoginsTotal.WithLabelValues(LoginSuccess).Inc()
	s.logger.Info("login succeeded", "username", u.Username, "new_ip", newIP, "new_device", newDevice)
	s.appendEvent(eventlog.CategoryAuth, "successful login for %s from %s", u.Username, req.Context.IP)

	// A success from entirely unrecognized origins is the account
	// takeover signature; one new dimension is only noteworthy.
	if newIP || newDevice {
		sev := alerts.SeverityMedium
		title := fmt.Sprintf("login for %s from new origin", u.Username)
		var reasons []string
		if newIP {
			reasons = append(reasons, fmt.Sprintf("first login from IP %s", req.Context.IP))
		}
		if newDevice {
			reasons = append(reasons, fmt.Sprintf("first login from device %s", req.Context.Device))
		}
		if newIP && newDevice {
			sev = alerts.SeverityHigh
			title = fmt.Sprintf("login for %s from new IP and device", u.Username)
		}
		s.alerts.Raise(alerts.Alert{
			Severity:   sev,
			Title:      title,
			Reasons:    reasons,
			UserID:     u.ID,
			LoginLogID: log.ID,
		})
	}

	return &LoginOutcome{
		Outcome:    LoginSuccess,
		LoginLogID: log.ID,
		UserID:     u.ID,
		NewIP:      newIP,
		NewDevice:  newDevice,
	}, nil
}

func (s *Service) appendLoginLog(ctx context.Context, u *User, req LoginRequest, outcome, reason string, now time.Time) *LoginLog {
	log := &LoginLog{
		ID:        idgen.WithPrefix(idgen.PrefixLoginLog),
		UserID:    u.ID,
		Username:  u.Username,
		Outcome:   outcome,
		Reason:    reason,
		IP:        req.Context.IP,
		Device:    req.Context.Device,
		Geo:       req.Context.Geo,
		CreatedAt: now,
	}
	// Append failures cannot happen with the memory store; log and move on.
	if err := s.store.AppendLoginLog(ctx, log); err != nil {
		s.logger.Error("append login log", "error", err)
	}
	return log
}
