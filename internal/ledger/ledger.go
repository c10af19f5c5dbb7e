// Package ledger owns the system of record: users, accounts,
// transactions and login history, plus the transfer and login flows
// that mutate them. All state is in memory and lost on restart.
package ledger

import (
	"errors"
	"time"

	"github.com/paydefense/sentinel/internal/money"
)

// Sentinel errors. Handlers map these to HTTP statuses with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUser     = errors.New("username already taken")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrFrozenAccount     = errors.New("account is frozen")
	ErrInvalidCode       = errors.New("invalid confirmation code")
)

// User is an account holder. KnownIPs and KnownDevices are the
// recognition sets the risk rules read; successful logins and commits
// grow them.
type User struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	FullName     string          `json:"full_name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	KnownIPs     map[string]bool `json:"known_ips"`
	KnownDevices map[string]bool `json:"known_devices"`

	FailedLoginAttempts int        `json:"failed_login_attempts"`
	IsLocked            bool       `json:"is_locked"`
	LockoutUntil        *time.Time `json:"lockout_until,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (u *User) clone() *User {
	cp := *u
	cp.KnownIPs = copySet(u.KnownIPs)
	cp.KnownDevices = copySet(u.KnownDevices)
	if u.LockoutUntil != nil {
		t := *u.LockoutUntil
		cp.LockoutUntil = &t
	}
	return &cp
}

// AgeDays is the whole days since creation.
func (u *User) AgeDays(now time.Time) int {
	return int(now.Sub(u.CreatedAt).Hours() / 24)
}

// Account holds a balance. DailyTransferred accumulates outbound
// transfers for DailyDate and implicitly resets when the calendar date
// rolls over.
type Account struct {
	ID               string       `json:"id"`
	Number           string       `json:"number"`
	UserID           string       `json:"user_id"`
	Balance          money.Amount `json:"balance"`
	Frozen           bool         `json:"frozen"`
	DailyTransferred money.Amount `json:"daily_transferred"`
	DailyDate        string       `json:"daily_date,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

func (a *Account) clone() *Account {
	cp := *a
	return &cp
}

// AgeDays is the whole days since the account was opened.
func (a *Account) AgeDays(now time.Time) int {
	return int(now.Sub(a.CreatedAt).Hours() / 24)
}

// Transaction statuses. Blocked transactions are recorded but never
// moved money; flagged ones committed and await review.
const (
	StatusCompleted = "completed"
	StatusFlagged   = "flagged"
	StatusBlocked   = "blocked"
)

// Review statuses for flagged transactions.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Transaction is one transfer attempt that reached a recordable
// outcome. Step-up-pending transfers are not transactions yet.
type Transaction struct {
	ID          string       `json:"id"`
	FromAccount string       `json:"from_account"`
	ToAccount   string       `json:"to_account"`
	FromUserID  string       `json:"from_user_id"`
	ToUserID    string       `json:"to_user_id"`
	Amount      money.Amount `json:"amount"`
	Status      string       `json:"status"`

	RiskScore    int      `json:"risk_score"`
	RiskReasons  []string `json:"risk_reasons"`
	MLPrediction float64  `json:"ml_prediction"`
	MLFlagged    bool     `json:"ml_flagged"`

	IP     string `json:"ip"`
	Device string `json:"device"`
	Geo    string `json:"geo"`

	ReviewStatus string `json:"review_status,omitempty"`
	ReviewedBy   string `json:"reviewed_by,omitempty"`
	ReviewNote   string `json:"review_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (t *Transaction) clone() *Transaction {
	cp := *t
	cp.RiskReasons = append([]string(nil), t.RiskReasons...)
	return &cp
}

// Login outcomes.
const (
	LoginSuccess = "success"
	LoginFailed  = "failed"
	LoginBlocked = "blocked"
)

// LoginLog is one login attempt, successful or not.
type LoginLog struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason,omitempty"`

	IP     string `json:"ip"`
	Device string `json:"device"`
	Geo    string `json:"geo"`

	CreatedAt time.Time `json:"created_at"`
}

func (l *LoginLog) clone() *LoginLog {
	cp := *l
	return &cp
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k := range in {
		out[k] = true
	}
	return out
}
