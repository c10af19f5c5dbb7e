package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paydefense/sentinel/internal/alerts"
	"github.com/paydefense/sentinel/internal/behavior"
	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/controls"
	"github.com/paydefense/sentinel/internal/money"
	"github.com/paydefense/sentinel/internal/risk"
)

var testBase = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

var homeCtx = clock.Context{IP: "192.168.1.10", Device: "device-home-1", Geo: "New York, US"}
var foreignCtx = clock.Context{IP: "185.220.101.5", Device: "device-tor", Geo: "Lagos, NG"}

const testPassword = "correct-horse-battery"

type fixture struct {
	svc    *Service
	store  *MemoryStore
	clk    *clock.FakeClock
	ctrl   *controls.Manager
	alerts *alerts.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(testBase)
	ctrl := controls.NewManager(controls.Defaults{
		RateLimitPerMinute: 5,
		LockoutMaxAttempts: 5,
		LockoutMinutes:     15,
		MFARiskThreshold:   60,
		DailyLimit:         money.FromDollars(100000),
		StepUpAmount:       money.FromDollars(10000),
		StepUpRisk:         70,
	})
	am := alerts.NewManager(alerts.WithClock(clk))
	store := NewMemoryStore()
	svc := NewService(store, Deps{
		Controls: ctrl,
		Scorer:   risk.NewScorer(),
		Model:    risk.NewModel(),
		Profiler: behavior.NewProfiler(behavior.NewMemoryStore()),
		Alerts:   am,
	}, WithClock(clk))

	f := &fixture{svc: svc, store: store, clk: clk, ctrl: ctrl, alerts: am}
	f.seedUser(t, "alice", "ACC-A", money.FromDollars(500000))
	f.seedUser(t, "bob", "ACC-B", money.FromDollars(1000))
	return f
}

// seedUser installs an established user: two years old, recognized home
// origins, funded account.
func (f *fixture) seedUser(t *testing.T, username, accNumber string, balance money.Amount) {
	t.Helper()
	ctx := context.Background()
	u := &User{
		ID:           "usr_" + username,
		Username:     username,
		FullName:     username,
		Email:        username + "@example.com",
		PasswordHash: HashPassword(testPassword),
		KnownIPs:     map[string]bool{homeCtx.IP: true},
		KnownDevices: map[string]bool{homeCtx.Device: true},
		CreatedAt:    testBase.AddDate(-2, 0, 0),
	}
	if err := f.store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	a := &Account{
		ID:        "acct_" + username,
		Number:    accNumber,
		UserID:    u.ID,
		Balance:   balance,
		CreatedAt: testBase.AddDate(-2, 0, 0),
	}
	if err := f.store.CreateAccount(ctx, a); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) balance(t *testing.T, number string) money.Amount {
	t.Helper()
	a, err := f.store.Account(context.Background(), number)
	if err != nil {
		t.Fatal(err)
	}
	return a.Balance
}

func (f *fixture) transfer(t *testing.T, amount string, cc clock.Context) *TransferOutcome {
	t.Helper()
	out, err := f.svc.Transfer(context.Background(), TransferRequest{
		FromAccount: "ACC-A", ToAccount: "ACC-B", Amount: amount, Context: cc,
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, a, err := f.svc.RegisterUser(ctx, RegisterRequest{
		Username: "carol", FullName: "Carol Reyes", Email: "carol@example.com", Password: "longenough",
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == "" || a.Number == "" || a.UserID != u.ID {
		t.Fatalf("bad registration result: %+v %+v", u, a)
	}
	if a.Balance != 0 {
		t.Fatalf("new accounts start empty, got %s", a.Balance)
	}

	_, _, err = f.svc.RegisterUser(ctx, RegisterRequest{
		Username: "carol", FullName: "Other Carol", Email: "c2@example.com", Password: "longenough",
	})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("duplicate username: got %v", err)
	}

	_, _, err = f.svc.RegisterUser(ctx, RegisterRequest{
		Username: "dave", FullName: "Dave", Email: "not-an-email", Password: "longenough",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("bad email: got %v", err)
	}
}

func TestTransferValidationFailuresLeaveNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  TransferRequest
		want error
	}{
		{"bad amount", TransferRequest{FromAccount: "ACC-A", ToAccount: "ACC-B", Amount: "abc", Context: homeCtx}, ErrValidation},
		{"zero amount", TransferRequest{FromAccount: "ACC-A", ToAccount: "ACC-B", Amount: "0", Context: homeCtx}, ErrValidation},
		{"same account", TransferRequest{FromAccount: "ACC-A", ToAccount: "ACC-A", Amount: "10", Context: homeCtx}, ErrValidation},
		{"unknown source", TransferRequest{FromAccount: "ACC-X", ToAccount: "ACC-B", Amount: "10", Context: homeCtx}, ErrNotFound},
		{"unknown destination", TransferRequest{FromAccount: "ACC-A", ToAccount: "ACC-X", Amount: "10", Context: homeCtx}, ErrNotFound},
		{"insufficient funds", TransferRequest{FromAccount: "ACC-B", ToAccount: "ACC-A", Amount: "5000", Context: homeCtx}, ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Transfer(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	if err := f.store.SetFrozen(ctx, "ACC-A", true); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Transfer(ctx, TransferRequest{FromAccount: "ACC-A", ToAccount: "ACC-B", Amount: "10", Context: homeCtx})
	if !errors.Is(err, ErrFrozenAccount) {
		t.Fatalf("frozen source: got %v", err)
	}

	txns, _ := f.store.Transactions(ctx, 0)
	if len(txns) != 0 {
		t.Fatalf("validation failures must record nothing, got %d transactions", len(txns))
	}
	if f.balance(t, "ACC-A") != money.FromDollars(500000) {
		t.Fatal("balances must be untouched")
	}
}

func TestTransferCompleted(t *testing.T) {
	f := newFixture(t)
	out := f.transfer(t, "250.50", homeCtx)

	if out.Status != StatusCompleted {
		t.Fatalf("want completed, got %+v", out)
	}
	if out.RiskScore != 0 || out.Flagged {
		t.Fatalf("home-context transfer should score 0, got %+v", out)
	}
	if f.balance(t, "ACC-A") != money.FromDollars(500000)-25050 {
		t.Fatalf("sender balance wrong: %s", f.balance(t, "ACC-A"))
	}
	if f.balance(t, "ACC-B") != money.FromDollars(1000)+25050 {
		t.Fatalf("recipient balance wrong: %s", f.balance(t, "ACC-B"))
	}
	if n := len(f.alerts.List("", 0)); n != 0 {
		t.Fatalf("completed transfer must not alert, got %d", n)
	}

	a, _ := f.store.Account(context.Background(), "ACC-A")
	if a.DailyTransferred != 25050 || a.DailyDate != clock.DateKey(testBase) {
		t.Fatalf("daily accumulator wrong: %+v", a)
	}
}

func TestTransferFlaggedCommitsAndAlerts(t *testing.T) {
	f := newFixture(t)
	// Unknown IP (20) + unknown device (15) + foreign geo (15) = 50.
	out := f.transfer(t, "100", foreignCtx)

	if out.Status != StatusFlagged || !out.Flagged || out.RiskScore != 50 {
		t.Fatalf("want flagged score 50, got %+v", out)
	}
	if f.balance(t, "ACC-B") != money.FromDollars(1100) {
		t.Fatal("flagged transfers still move money")
	}

	txn, err := f.store.Transaction(context.Background(), out.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if txn.Status != StatusFlagged || txn.ReviewStatus != ReviewPending {
		t.Fatalf("flagged transaction should await review: %+v", txn)
	}

	raised := f.alerts.List("", 0)
	if len(raised) != 1 {
		t.Fatalf("flagged transfer must raise exactly one alert, got %d", len(raised))
	}
	if raised[0].Severity != alerts.SeverityMedium || raised[0].TransactionID != txn.ID {
		t.Fatalf("wrong alert: %+v", raised[0])
	}
}

func TestTransferStepUpFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Over the $10,000 step-up threshold, under every risk rule.
	out := f.transfer(t, "15000", homeCtx)
	if out.Status != OutcomeStepUpPending || !out.RequiresStepUp || out.PendingID == "" {
		t.Fatalf("want step-up park, got %+v", out)
	}
	if out.TransactionID != "" {
		t.Fatal("parked transfers must not create a transaction")
	}
	if f.balance(t, "ACC-A") != money.FromDollars(500000) {
		t.Fatal("parked transfers must not move money")
	}

	if _, err := f.svc.ConfirmStepUp(ctx, out.PendingID, "999999"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("wrong code: got %v", err)
	}
	if f.svc.PendingStepUps() != 1 {
		t.Fatal("wrong code must not consume the pending transfer")
	}

	confirmed, err := f.svc.ConfirmStepUp(ctx, out.PendingID, "000000")
	if err != nil {
		t.Fatal(err)
	}
	if confirmed.Status != StatusCompleted {
		t.Fatalf("confirmed transfer should complete, got %+v", confirmed)
	}
	if f.balance(t, "ACC-B") != money.FromDollars(16000) {
		t.Fatalf("confirmed transfer must move money, got %s", f.balance(t, "ACC-B"))
	}
	if f.svc.PendingStepUps() != 0 {
		t.Fatal("confirmation must consume the pending transfer")
	}

	if _, err := f.svc.ConfirmStepUp(ctx, out.PendingID, "000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double confirmation: got %v", err)
	}
}

func TestTransferStepUpExpiry(t *testing.T) {
	f := newFixture(t)
	out := f.transfer(t, "15000", homeCtx)
	f.clk.Advance(6 * time.Minute)
	if _, err := f.svc.ConfirmStepUp(context.Background(), out.PendingID, "000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired pending transfer: got %v", err)
	}
}

func TestTransferMFAEscalatesOnRisk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A brand-new recipient pushes the foreign-context score to 70:
	// above MFA's 60, not above step-up's 70.
	_, young, err := f.svc.RegisterUser(ctx, RegisterRequest{
		Username: "mule", FullName: "Mule", Email: "mule@example.com", Password: "longenough",
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := f.svc.Transfer(ctx, TransferRequest{
		FromAccount: "ACC-A", ToAccount: young.Number, Amount: "100", Context: foreignCtx,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.RiskScore != 70 || !out.RequiresStepUp || out.Status != OutcomeStepUpPending {
		t.Fatalf("want MFA escalation at score 70, got %+v", out)
	}
}

func TestTransferBlockedByDailyLimit(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.UpdateConfig(controls.CategoryTxnLimit, "daily_limit", "500"); err != nil {
		t.Fatal(err)
	}

	out := f.transfer(t, "600", homeCtx)
	if out.Status != StatusBlocked || out.DeniedBy != string(controls.CategoryTxnLimit) {
		t.Fatalf("want daily-limit block, got %+v", out)
	}
	if f.balance(t, "ACC-A") != money.FromDollars(500000) {
		t.Fatal("blocked transfers must not move money")
	}

	txn, err := f.store.Transaction(context.Background(), out.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if txn.Status != StatusBlocked {
		t.Fatalf("blocked attempt must be recorded: %+v", txn)
	}
	last := txn.RiskReasons[len(txn.RiskReasons)-1]
	if last != out.DenialReason {
		t.Fatalf("denial reason should be recorded on the transaction, got %v", txn.RiskReasons)
	}
}

func TestDailyAccumulatorRollsOverAtMidnight(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.UpdateConfig(controls.CategoryTxnLimit, "daily_limit", "500"); err != nil {
		t.Fatal(err)
	}

	if out := f.transfer(t, "400", homeCtx); out.Status != StatusCompleted {
		t.Fatalf("first transfer should pass, got %+v", out)
	}
	f.clk.Advance(2 * time.Minute) // avoid the velocity window
	if out := f.transfer(t, "400", homeCtx); out.Status != StatusBlocked {
		t.Fatalf("second transfer should exceed the daily limit, got %+v", out)
	}

	// Past midnight the accumulator resets: same amount passes again.
	f.clk.Set(time.Date(2025, 6, 3, 0, 1, 0, 0, time.UTC))
	out := f.transfer(t, "400", homeCtx)
	if out.Status != StatusCompleted {
		t.Fatalf("new calendar day should reset the accumulator, got %+v", out)
	}
}

func TestTransferBlacklistedIP(t *testing.T) {
	f := newFixture(t)
	f.ctrl.AddBlacklistIP(homeCtx.IP)
	out := f.transfer(t, "100", homeCtx)
	if out.Status != StatusBlocked || out.DeniedBy != string(controls.CategoryBlacklist) {
		t.Fatalf("want blacklist block, got %+v", out)
	}
}

func TestTransferVelocityBuildsAcrossAttempts(t *testing.T) {
	f := newFixture(t)
	f.transfer(t, "50", homeCtx)
	f.clk.Advance(10 * time.Second)
	f.transfer(t, "50", homeCtx)
	f.clk.Advance(10 * time.Second)

	out := f.transfer(t, "50", homeCtx)
	if out.RiskScore != 25 {
		t.Fatalf("third rapid transfer should carry the velocity score, got %+v", out)
	}
}

func TestLoginSuccessFromKnownOrigin(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Login(context.Background(), LoginRequest{
		Username: "alice", Password: testPassword, Context: homeCtx,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Outcome != LoginSuccess || out.NewIP || out.NewDevice {
		t.Fatalf("want clean success, got %+v", out)
	}
	if n := len(f.alerts.List("", 0)); n != 0 {
		t.Fatalf("known-origin login must not alert, got %d", n)
	}
}

func TestLoginNewOriginRaisesAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Password: testPassword, Context: foreignCtx})
	if err != nil {
		t.Fatal(err)
	}
	if !out.NewIP || !out.NewDevice {
		t.Fatalf("foreign origin should be new on both axes, got %+v", out)
	}
	raised := f.alerts.List("", 0)
	if len(raised) != 1 || raised[0].Severity != alerts.SeverityHigh {
		t.Fatalf("new IP and device must raise a high alert, got %+v", raised)
	}

	// The origin is now recognized; a second login is quiet.
	f.clk.Advance(2 * time.Minute)
	out, err = f.svc.Login(ctx, LoginRequest{Username: "alice", Password: testPassword, Context: foreignCtx})
	if err != nil {
		t.Fatal(err)
	}
	if out.NewIP || out.NewDevice || len(f.alerts.List("", 0)) != 1 {
		t.Fatalf("recognized origin must not re-alert, got %+v", out)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "nobody", Password: "x", Context: homeCtx})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		out, err := f.svc.Login(ctx, LoginRequest{Username: "bob", Password: "wrong-password", Context: homeCtx})
		if err != nil {
			t.Fatal(err)
		}
		if out.Outcome != LoginFailed && out.Outcome != LoginBlocked {
			t.Fatalf("attempt %d: unexpected outcome %+v", i, out)
		}
		f.clk.Advance(time.Second)
	}

	out, err := f.svc.Login(ctx, LoginRequest{Username: "bob", Password: testPassword, Context: homeCtx})
	if err != nil {
		t.Fatal(err)
	}
	if out.Outcome != LoginBlocked {
		t.Fatalf("sixth attempt inside the window must be rate limited, got %+v", out)
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Widen the rate limit so only the lockout path is in play.
	if err := f.ctrl.UpdateConfig(controls.CategoryRateLimit, "max_per_minute", "100"); err != nil {
		t.Fatal(err)
	}

	var out *LoginOutcome
	var err error
	for i := 0; i < 5; i++ {
		out, err = f.svc.Login(ctx, LoginRequest{Username: "bob", Password: "wrong-password", Context: homeCtx})
		if err != nil {
			t.Fatal(err)
		}
		f.clk.Advance(time.Second)
	}
	if !out.Locked {
		t.Fatalf("fifth failure must lock the account, got %+v", out)
	}

	// The right password is still refused while locked.
	out, err = f.svc.Login(ctx, LoginRequest{Username: "bob", Password: testPassword, Context: homeCtx})
	if err != nil {
		t.Fatal(err)
	}
	if out.Outcome != LoginBlocked {
		t.Fatalf("locked account must block, got %+v", out)
	}

	// The lockout expires after 15 minutes.
	f.clk.Advance(16 * time.Minute)
	out, err = f.svc.Login(ctx, LoginRequest{Username: "bob", Password: testPassword, Context: homeCtx})
	if err != nil {
		t.Fatal(err)
	}
	if out.Outcome != LoginSuccess {
		t.Fatalf("expired lockout should allow login, got %+v", out)
	}

	u, _ := f.store.UserByUsername(ctx, "bob")
	if u.IsLocked || u.FailedLoginAttempts != 0 {
		t.Fatalf("success must clear lock state, got %+v", u)
	}
}

func TestUnlockUserOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ctrl.UpdateConfig(controls.CategoryRateLimit, "max_per_minute", "100")

	for i := 0; i < 5; i++ {
		f.svc.Login(ctx, LoginRequest{Username: "bob", Password: "wrong-password", Context: homeCtx})
		f.clk.Advance(time.Second)
	}
	if err := f.svc.UnlockUser(ctx, "usr_bob"); err != nil {
		t.Fatal(err)
	}
	// Past the rate window, the unlocked user can log in immediately.
	f.clk.Advance(2 * time.Minute)
	out, err := f.svc.Login(ctx, LoginRequest{Username: "bob", Password: testPassword, Context: homeCtx})
	if err != nil {
		t.Fatal(err)
	}
	if out.Outcome != LoginSuccess {
		t.Fatalf("unlocked user should log in, got %+v", out)
	}
}

func TestReviewTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flagged := f.transfer(t, "100", foreignCtx)
	completed := f.transfer(t, "100", homeCtx)

	txn, err := f.svc.ReviewTransaction(ctx, flagged.TransactionID, ReviewApproved, "analyst.kim", "verified with customer")
	if err != nil {
		t.Fatal(err)
	}
	if txn.ReviewStatus != ReviewApproved || txn.ReviewedBy != "analyst.kim" {
		t.Fatalf("review not recorded: %+v", txn)
	}

	if _, err := f.svc.ReviewTransaction(ctx, flagged.TransactionID, ReviewRejected, "analyst.kim", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("second review must fail, got %v", err)
	}
	if _, err := f.svc.ReviewTransaction(ctx, completed.TransactionID, ReviewApproved, "analyst.kim", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("completed transactions are not reviewable, got %v", err)
	}
	if _, err := f.svc.ReviewTransaction(ctx, flagged.TransactionID, ReviewApproved, "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("reviewer required, got %v", err)
	}
}

func TestStatsTreatRulesAsGroundTruth(t *testing.T) {
	f := newFixture(t)
	f.transfer(t, "100", homeCtx) // rule 0, model low: agreement
	f.clk.Advance(2 * time.Minute)
	f.transfer(t, "100", foreignCtx) // rule flagged

	st, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 2 || st.RuleFlagged != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.Agreement < 0 || st.Agreement > 1 || st.Precision < 0 || st.Precision > 1 {
		t.Fatalf("ratios out of range: %+v", st)
	}
}

func TestResetClearsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.transfer(t, "15000", homeCtx) // leaves a pending step-up
	f.transfer(t, "100", homeCtx)

	if err := f.svc.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if txns, _ := f.store.Transactions(ctx, 0); len(txns) != 0 {
		t.Fatal("reset must drop transactions")
	}
	if users, _ := f.store.Users(ctx); len(users) != 0 {
		t.Fatal("reset must drop users")
	}
	if f.svc.PendingStepUps() != 0 {
		t.Fatal("reset must drop pending step-ups")
	}
}
