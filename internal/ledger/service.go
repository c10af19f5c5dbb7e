package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paydefense/sentinel/internal/alerts"
	"github.com/paydefense/sentinel/internal/behavior"
	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/controls"
	"github.com/paydefense/sentinel/internal/eventlog"
	"github.com/paydefense/sentinel/internal/idgen"
	"github.com/paydefense/sentinel/internal/risk"
	"github.com/paydefense/sentinel/internal/validation"
)

// Service runs the account, login and transfer flows over the store,
// consulting the scorers and the control gate on every attempt.
type Service struct {
	store    Store
	clk      clock.Clock
	controls *controls.Manager
	gate     *controls.Gate
	scorer   *risk.Scorer
	model    *risk.Model
	profiler *behavior.Profiler
	alerts   *alerts.Manager
	events   *eventlog.Log
	logger   *slog.Logger

	stepUpCode string

	pmu     sync.Mutex
	pending map[string]*pendingTransfer
}

// Deps are the collaborators a Service requires.
type Deps struct {
	Controls *controls.Manager
	Scorer   *risk.Scorer
	Model    *risk.Model
	Profiler *behavior.Profiler
	Alerts   *alerts.Manager
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clk = c }
}

// WithEventLog wires flow activity into the event feed.
func WithEventLog(ev *eventlog.Log) Option {
	return func(s *Service) { s.events = ev }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithStepUpCode overrides the confirmation code for step-up challenges.
func WithStepUpCode(code string) Option {
	return func(s *Service) { s.stepUpCode = code }
}

// NewService creates the service over store.
func NewService(store Store, deps Deps, opts ...Option) *Service {
	s := &Service{
		store:      store,
		clk:        clock.System(),
		controls:   deps.Controls,
		scorer:     deps.Scorer,
		model:      deps.Model,
		profiler:   deps.Profiler,
		alerts:     deps.Alerts,
		logger:     slog.Default(),
		stepUpCode: "000000",
		pending:    make(map[string]*pendingTransfer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gate = controls.NewGate(deps.Controls, controls.WithGateLogger(s.logger))
	return s
}

// RegisterRequest creates a user with one account.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterUser validates the request, creates the user and opens their
// account with a zero balance.
func (s *Service) RegisterUser(ctx context.Context, req RegisterRequest) (*User, *Account, error) {
	if err := validation.Username(req.Username); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.FullName(req.FullName); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.Email(req.Email); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.Password(req.Password); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.clk.Now()
	u := &User{
		ID:           idgen.WithPrefix(idgen.PrefixUser),
		Username:     req.Username,
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: HashPassword(req.Password),
		KnownIPs:     map[string]bool{},
		KnownDevices: map[string]bool{},
		CreatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, nil, err
	}

	a := &Account{
		ID:        idgen.WithPrefix(idgen.PrefixAccount),
		Number:    "ACC-" + idgen.Hex(4),
		UserID:    u.ID,
		CreatedAt: now,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered", "user_id", u.ID, "username", u.Username, "account", a.Number)
	s.appendEvent(eventlog.CategorySystem, "user %s registered with account %s", u.Username, a.Number)
	return u.clone(), a.clone(), nil
}

// HashPassword hashes a password for the demo credential store. This is
// not a production password scheme.
func HashPassword(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

// User returns one user by ID.
func (s *Service) User(ctx context.Context, id string) (*User, error) {
	return s.store.User(ctx, id)
}

// UserByUsername returns one user by username.
func (s *Service) UserByUsername(ctx context.Context, username string) (*User, error) {
	return s.store.UserByUsername(ctx, username)
}

// Users returns all users.
func (s *Service) Users(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx)
}

// Account returns one account by number.
func (s *Service) Account(ctx context.Context, number string) (*Account, error) {
	return s.store.Account(ctx, number)
}

// Accounts returns all accounts.
func (s *Service) Accounts(ctx context.Context) ([]*Account, error) {
	return s.store.Accounts(ctx)
}

// AccountsByUser returns a user's accounts.
func (s *Service) AccountsByUser(ctx context.Context, userID string) ([]*Account, error) {
	return s.store.AccountsByUser(ctx, userID)
}

// SetFrozen freezes or unfreezes an account.
func (s *Service) SetFrozen(ctx context.Context, number string, frozen bool) error {
	if err := s.store.SetFrozen(ctx, number, frozen); err != nil {
		return err
	}
	state := "unfrozen"
	if frozen {
		state = "frozen"
	}
	s.appendEvent(eventlog.CategorySystem, "account %s %s", number, state)
	return nil
}

// Transaction returns one transaction by ID.
func (s *Service) Transaction(ctx context.Context, id string) (*Transaction, error) {
	return s.store.Transaction(ctx, id)
}

// Transactions returns the newest transactions first.
func (s *Service) Transactions(ctx context.Context, limit int) ([]*Transaction, error) {
	return s.store.Transactions(ctx, limit)
}

// LoginLogs returns the newest login attempts first.
func (s *Service) LoginLogs(ctx context.Context, limit int) ([]*LoginLog, error) {
	return s.store.LoginLogs(ctx, limit)
}

// ReviewTransaction records an analyst decision on a flagged transaction.
func (s *Service) ReviewTransaction(ctx context.Context, id, status, reviewer, note string) (*Transaction, error) {
	if reviewer == "" {
		return nil, fmt.Errorf("%w: reviewer required", ErrValidation)
	}
	t, err := s.store.ReviewTransaction(ctx, id, status, reviewer, note)
	if err != nil {
		return nil, err
	}
	s.logger.Info("transaction reviewed", "txn_id", id, "review", status, "reviewer", reviewer)
	s.appendEvent(eventlog.CategoryTransfer, "transaction %s reviewed as %s by %s", id, status, reviewer)
	return t, nil
}

// UnlockUser clears a user's lockout state, an admin override.
func (s *Service) UnlockUser(ctx context.Context, userID string) error {
	u, err := s.store.User(ctx, userID)
	if err != nil {
		return err
	}
	u.IsLocked = false
	u.LockoutUntil = nil
	u.FailedLoginAttempts = 0
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return err
	}
	s.appendEvent(eventlog.CategoryAuth, "user %s unlocked by operator", u.Username)
	return nil
}

// Profiler exposes the behavior profiler for seeding and inspection.
func (s *Service) Profiler() *behavior.Profiler {
	return s.profiler
}

// Reset drops ledger state, pending step-ups and behavior profiles.
// Controls, alerts and intel are reset by their own owners.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.pmu.Lock()
	s.pending = make(map[string]*pendingTransfer)
	s.pmu.Unlock()
	s.profiler.Reset()
	s.appendEvent(eventlog.CategorySystem, "ledger reset")
	return nil
}

func (s *Service) appendEvent(category, format string, args ...any) {
	if s.events != nil {
		s.events.Append(category, format, args...)
	}
}

// snapshot assembles the scoring input for a transfer attempt.
func (s *Service) snapshot(ctx context.Context, from *Account, to *Account, at time.Time) (*risk.Snapshot, *User, error) {
	sender, err := s.store.User(ctx, from.UserID)
	if err != nil {
		return nil, nil, err
	}
	priors, err := s.store.SenderTransferTimes(ctx, from.Number, at.Add(-time.Minute))
	if err != nil {
		return nil, nil, err
	}
	snap := &risk.Snapshot{
		SenderFound:        true,
		SenderKnownIPs:     sender.KnownIPs,
		SenderKnownDevices: sender.KnownDevices,
		SenderAgeDays:      from.AgeDays(at),
		RecipientFound:     true,
		RecipientAgeDays:   to.AgeDays(at),
		PriorTransfers:     priors,
	}
	return snap, sender, nil
}
