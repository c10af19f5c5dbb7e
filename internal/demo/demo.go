// Package demo seeds the engine with a small population of users,
// accounts, behavior profiles and threat intel so the dashboard and the
// attack scenarios have something to act on from the first request.
package demo

import (
	"context"
	"fmt"
	"time"

	"github.com/paydefense/sentinel/internal/behavior"
	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/idgen"
	"github.com/paydefense/sentinel/internal/ledger"
	"github.com/paydefense/sentinel/internal/money"
	"github.com/paydefense/sentinel/internal/threatintel"
)

// Password is the shared password of every seeded user. Demo data only.
const Password = "Sentinel!Demo1"

// Account numbers the scenarios reference.
const (
	AccountAlice = "ACC-1001"
	AccountBob   = "ACC-1002"
	AccountCarol = "ACC-1003"
)

type seedUser struct {
	username string
	fullName string
	account  string
	balance  money.Amount
	ageDays  int
	frozen   bool
}

var seedUsers = []seedUser{
	{"alice", "Alice Hartman", AccountAlice, money.FromDollars(250000), 700, false},
	{"bob", "Bob Osei", AccountBob, money.FromDollars(5000), 400, false},
	{"carol", "Carol Reyes", AccountCarol, money.FromDollars(12000), 30, false},
	{"dormant", "Dormant Holdings", "ACC-1009", money.FromDollars(90000), 1200, true},
}

// Seed installs the demo population. It assumes an empty store and is
// called at startup and after every reset.
func Seed(ctx context.Context, store ledger.Store, profiler *behavior.Profiler, intel *threatintel.Index, clk clock.Clock) error {
	now := clk.Now()
	for _, su := range seedUsers {
		created := now.AddDate(0, 0, -su.ageDays)
		u := &ledger.User{
			ID:           idgen.WithPrefix(idgen.PrefixUser),
			Username:     su.username,
			FullName:     su.fullName,
			Email:        su.username + "@example.com",
			PasswordHash: ledger.HashPassword(Password),
			KnownIPs:     map[string]bool{"192.168.1.10": true, "10.0.0.23": true},
			KnownDevices: map[string]bool{"device-home-1": true, "device-mobile-1": true},
			CreatedAt:    created,
		}
		if err := store.CreateUser(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", su.username, err)
		}
		a := &ledger.Account{
			ID:        idgen.WithPrefix(idgen.PrefixAccount),
			Number:    su.account,
			UserID:    u.ID,
			Balance:   su.balance,
			Frozen:    su.frozen,
			CreatedAt: created,
		}
		if err := store.CreateAccount(ctx, a); err != nil {
			return fmt.Errorf("seed account %s: %w", su.account, err)
		}

		profiler.Seed(&behavior.Profile{
			UserID:           u.ID,
			AvgAmount:        su.balance / 100,
			TypicalStartHour: 8,
			TypicalEndHour:   21,
			Geos:             map[string]bool{"New York, US": true, "Boston, US": true},
			Devices:          map[string]bool{"device-home-1": true, "device-mobile-1": true},
			IPs:              map[string]bool{"192.168.1.10": true, "10.0.0.23": true},
			Observations:     40,
			UpdatedAt:        now.Add(-24 * time.Hour),
		})
	}

	for _, ip := range clock.ForeignIPs() {
		if _, err := intel.Add(threatintel.KindIP, ip, "seed-feed", 85, "known hostile infrastructure"); err != nil {
			return err
		}
	}
	for _, dev := range clock.ForeignDevices() {
		if _, err := intel.Add(threatintel.KindDevice, dev, "seed-feed", 70, "device fingerprint seen in prior campaigns"); err != nil {
			return err
		}
	}
	return nil
}
