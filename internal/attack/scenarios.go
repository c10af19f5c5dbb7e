package attack

import (
	"context"
	"errors"
	"fmt"

	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/demo"
	"github.com/paydefense/sentinel/internal/ledger"
	"github.com/paydefense/sentinel/internal/threatintel"
)

func builtinScenarios() []*Scenario {
	return []*Scenario{
		accountTakeover(),
		muleNetwork(),
		velocityBurst(),
		blacklistProbe(),
	}
}

// firstAccount resolves a seeded user's account. A missing user fails
// the phase, which ends the run partially executed.
func firstAccount(ctx context.Context, r *Runner, username string) (*ledger.User, *ledger.Account, error) {
	u, err := r.Ledger.UserByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("scenario target %q: %w", username, err)
	}
	accts, err := r.Ledger.AccountsByUser(ctx, u.ID)
	if err != nil || len(accts) == 0 {
		return nil, nil, fmt.Errorf("scenario target %q has no account", username)
	}
	return u, accts[0], nil
}

func describeTransfer(r *Runner, out *ledger.TransferOutcome) {
	switch {
	case out.Status == ledger.StatusBlocked:
		r.Emit("  -> blocked by %s: %s", out.DeniedBy, out.DenialReason)
	case out.RequiresStepUp:
		r.Emit("  -> held for step-up confirmation (risk %d)", out.RiskScore)
	case out.Flagged:
		r.Emit("  -> committed but flagged (risk %d: %v)", out.RiskScore, out.RiskReasons)
	default:
		r.Emit("  -> completed cleanly (risk %d)", out.RiskScore)
	}
}

func accountTakeover() *Scenario {
	var origin clock.Context
	return &Scenario{
		ID:          "account_takeover",
		Name:        "Account Takeover",
		Description: "Credential stuffing from hostile infrastructure, then a takeover login and a drain attempt",
		Phases: []Phase{
			{
				Name: "credential stuffing",
				Run: func(ctx context.Context, r *Runner) error {
					origin = r.Selector.Foreign()
					r.Emit("attacking alice from %s via %s", origin.IP, origin.Device)
					for i := 0; i < 4; i++ {
						out, err := r.Ledger.Login(ctx, ledger.LoginRequest{
							Username: "alice",
							Password: fmt.Sprintf("guess-%d", i),
							Context:  origin,
						})
						if err != nil {
							return err
						}
						r.Emit("  attempt %d: %s", i+1, out.Outcome)
					}
					return nil
				},
			},
			{
				Name: "takeover login",
				Run: func(ctx context.Context, r *Runner) error {
					out, err := r.Ledger.Login(ctx, ledger.LoginRequest{
						Username: "alice",
						Password: demo.Password,
						Context:  origin,
					})
					if err != nil {
						return err
					}
					r.Emit("login with stolen credentials: %s (new ip=%v, new device=%v)",
						out.Outcome, out.NewIP, out.NewDevice)
					return nil
				},
			},
			{
				Name: "drain attempt",
				Run: func(ctx context.Context, r *Runner) error {
					_, victim, err := firstAccount(ctx, r, "alice")
					if err != nil {
						return err
					}
					_, dest, err := firstAccount(ctx, r, "bob")
					if err != nil {
						return err
					}
					r.Emit("draining %s toward %s", victim.Number, dest.Number)
					out, err := r.Ledger.Transfer(ctx, ledger.TransferRequest{
						FromAccount: victim.Number,
						ToAccount:   dest.Number,
						Amount:      "60000",
						Context:     origin,
					})
					if err != nil {
						return err
					}
					describeTransfer(r, out)
					return nil
				},
			},
		},
	}
}

func muleNetwork() *Scenario {
	var mules []string // account numbers
	return &Scenario{
		ID:          "mule_network",
		Name:        "Mule Network",
		Description: "Fresh mule accounts opened and immediately funded from a compromised account",
		Phases: []Phase{
			{
				Name: "recruit mules",
				Run: func(ctx context.Context, r *Runner) error {
					mules = mules[:0]
					for i := 0; i < 3; i++ {
						username := fmt.Sprintf("mule-%s", randomSuffix(r))
						_, acct, err := r.Ledger.RegisterUser(ctx, ledger.RegisterRequest{
							Username: username,
							FullName: "Recruited Mule",
							Email:    username + "@example.net",
							Password: "mule-password-1",
						})
						if err != nil {
							return err
						}
						mules = append(mules, acct.Number)
						r.Emit("opened mule account %s (%s)", acct.Number, username)
					}
					return nil
				},
			},
			{
				Name: "fan-out transfers",
				Run: func(ctx context.Context, r *Runner) error {
					_, src, err := firstAccount(ctx, r, "alice")
					if err != nil {
						return err
					}
					origin := r.Selector.Foreign()
					for _, number := range mules {
						out, err := r.Ledger.Transfer(ctx, ledger.TransferRequest{
							FromAccount: src.Number,
							ToAccount:   number,
							Amount:      "900",
							Context:     origin,
						})
						if err != nil {
							return err
						}
						r.Emit("fan-out %s -> %s", src.Number, number)
						describeTransfer(r, out)
					}
					return nil
				},
			},
		},
	}
}

func velocityBurst() *Scenario {
	return &Scenario{
		ID:          "velocity_burst",
		Name:        "Velocity Burst",
		Description: "A rapid string of transfers designed to trip the velocity rule",
		Phases: []Phase{
			{
				Name: "baseline transfer",
				Run: func(ctx context.Context, r *Runner) error {
					_, src, err := firstAccount(ctx, r, "alice")
					if err != nil {
						return err
					}
					_, dest, err := firstAccount(ctx, r, "carol")
					if err != nil {
						return err
					}
					out, err := r.Ledger.Transfer(ctx, ledger.TransferRequest{
						FromAccount: src.Number,
						ToAccount:   dest.Number,
						Amount:      "120",
						Context:     r.Selector.Home(),
					})
					if err != nil {
						return err
					}
					describeTransfer(r, out)
					return nil
				},
			},
			{
				Name: "burst",
				Run: func(ctx context.Context, r *Runner) error {
					_, src, err := firstAccount(ctx, r, "alice")
					if err != nil {
						return err
					}
					_, dest, err := firstAccount(ctx, r, "carol")
					if err != nil {
						return err
					}
					// A recognized origin keeps the attempts under the
					// step-up threshold, so the whole burst lands in the
					// ledger and the velocity rule does the flagging.
					origin := r.Selector.Home()
					for i := 0; i < 5; i++ {
						out, err := r.Ledger.Transfer(ctx, ledger.TransferRequest{
							FromAccount: src.Number,
							ToAccount:   dest.Number,
							Amount:      "75",
							Context:     origin,
						})
						if err != nil {
							return err
						}
						r.Emit("burst transfer %d/5", i+1)
						describeTransfer(r, out)
					}
					return nil
				},
			},
		},
	}
}

func blacklistProbe() *Scenario {
	var probeIP string
	return &Scenario{
		ID:          "blacklist_probe",
		Name:        "Blacklist Probe",
		Description: "Promotes a high-confidence intel IP onto the blacklist, then probes it",
		Phases: []Phase{
			{
				Name: "promote intel to blacklist",
				Run: func(ctx context.Context, r *Runner) error {
					probeIP = ""
					for _, ind := range r.Intel.List() {
						if ind.Kind == threatintel.KindIP && ind.Active && ind.Confidence >= 80 {
							probeIP = ind.Value
							break
						}
					}
					if probeIP == "" {
						return errors.New("no active high-confidence IP indicator to promote")
					}
					r.Controls.AddBlacklistIP(probeIP)
					r.Emit("promoted %s from intel to the IP blacklist", probeIP)
					return nil
				},
			},
			{
				Name: "probe from blacklisted IP",
				Run: func(ctx context.Context, r *Runner) error {
					origin := clock.Context{IP: probeIP, Device: "device-burner-1", Geo: "Moscow, RU"}
					out, err := r.Ledger.Login(ctx, ledger.LoginRequest{
						Username: "bob",
						Password: demo.Password,
						Context:  origin,
					})
					if err != nil {
						return err
					}
					r.Emit("login probe from %s: %s (%s)", probeIP, out.Outcome, out.Reason)

					_, src, err := firstAccount(ctx, r, "bob")
					if err != nil {
						return err
					}
					_, dest, err := firstAccount(ctx, r, "carol")
					if err != nil {
						return err
					}
					tout, err := r.Ledger.Transfer(ctx, ledger.TransferRequest{
						FromAccount: src.Number,
						ToAccount:   dest.Number,
						Amount:      "50",
						Context:     origin,
					})
					if err != nil {
						return err
					}
					r.Emit("transfer probe from %s", probeIP)
					describeTransfer(r, tout)
					return nil
				},
			},
		},
	}
}

func randomSuffix(r *Runner) string {
	return fmt.Sprintf("%06d", int(r.Selector.Float64()*1e6))
}
