package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store persists ledger state. Every method returns copies; the only
// multi-record mutation is CommitTransfer, which must be atomic.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	User(ctx context.Context, id string) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	Users(ctx context.Context) ([]*User, error)

	CreateAccount(ctx context.Context, a *Account) error
	Account(ctx context.Context, number string) (*Account, error)
	AccountsByUser(ctx context.Context, userID string) ([]*Account, error)
	Accounts(ctx context.Context) ([]*Account, error)
	SetFrozen(ctx context.Context, number string, frozen bool) error

	AppendTransaction(ctx context.Context, t *Transaction) error
	Transaction(ctx context.Context, id string) (*Transaction, error)
	Transactions(ctx context.Context, limit int) ([]*Transaction, error)
	SenderTransferTimes(ctx context.Context, fromAccount string, since time.Time) ([]time.Time, error)
	ReviewTransaction(ctx context.Context, id, status, reviewer, note string) (*Transaction, error)
	CommitTransfer(ctx context.Context, t *Transaction, dateKey string) error

	AppendLoginLog(ctx context.Context, l *LoginLog) error
	LoginLogs(ctx context.Context, limit int) ([]*LoginLog, error)
	CountLoginAttempts(ctx context.Context, userID string, since time.Time) (int, error)

	Reset(ctx context.Context) error
}

// MemoryStore is the in-memory Store. One mutex guards all maps, so a
// committing transfer is atomic with respect to every reader.
type MemoryStore struct {
	mu sync.RWMutex

	users      map[string]*User
	byUsername map[string]string // username -> user ID
	accounts   map[string]*Account
	txns       map[string]*Transaction
	txnOrder   []string
	logins     []*LoginLog
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.users = make(map[string]*User)
	s.byUsername = make(map[string]string)
	s.accounts = make(map[string]*Account)
	s.txns = make(map[string]*Transaction)
	s.txnOrder = nil
	s.logins = nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUsername[u.Username]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUser, u.Username)
	}
	s.users[u.ID] = u.clone()
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *MemoryStore) User(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u.clone(), nil
}

func (s *MemoryStore) UserByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	return s.users[id].clone(), nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, u.ID)
	}
	s.users[u.ID] = u.clone()
	return nil
}

func (s *MemoryStore) Users(_ context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.clone())
	}
	return out, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.Number]; exists {
		return fmt.Errorf("%w: account %s already exists", ErrValidation, a.Number)
	}
	s.accounts[a.Number] = a.clone()
	return nil
}

func (s *MemoryStore) Account(_ context.Context, number string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[number]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, number)
	}
	return a.clone(), nil
}

func (s *MemoryStore) AccountsByUser(_ context.Context, userID string) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Accounts(_ context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.clone())
	}
	return out, nil
}

func (s *MemoryStore) SetFrozen(_ context.Context, number string, frozen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[number]
	if !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, number)
	}
	a.Frozen = frozen
	return nil
}

func (s *MemoryStore) AppendTransaction(_ context.Context, t *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[t.ID] = t.clone()
	s.txnOrder = append(s.txnOrder, t.ID)
	return nil
}

func (s *MemoryStore) Transaction(_ context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return t.clone(), nil
}

// Transactions returns the newest transactions first. A zero limit
// returns everything.
func (s *MemoryStore) Transactions(_ context.Context, limit int) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Transaction, 0, len(s.txnOrder))
	for i := len(s.txnOrder) - 1; i >= 0; i-- {
		out = append(out, s.txns[s.txnOrder[i]].clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SenderTransferTimes returns timestamps of transactions sent from the
// account at or after since. Blocked attempts count: a burst of denials
// is still a burst.
func (s *MemoryStore) SenderTransferTimes(_ context.Context, fromAccount string, since time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []time.Time
	for i := len(s.txnOrder) - 1; i >= 0; i-- {
		t := s.txns[s.txnOrder[i]]
		if t.CreatedAt.Before(since) {
			break
		}
		if t.FromAccount == fromAccount {
			out = append(out, t.CreatedAt)
		}
	}
	return out, nil
}

// ReviewTransaction records a reviewer decision on a flagged
// transaction. Only flagged transactions carry a review, and a decision
// is final.
func (s *MemoryStore) ReviewTransaction(_ context.Context, id, status, reviewer, note string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	if t.Status != StatusFlagged {
		return nil, fmt.Errorf("%w: only flagged transactions are reviewable", ErrValidation)
	}
	if t.ReviewStatus != ReviewPending {
		return nil, fmt.Errorf("%w: transaction already reviewed as %s", ErrValidation, t.ReviewStatus)
	}
	if status != ReviewApproved && status != ReviewRejected {
		return nil, fmt.Errorf("%w: review status must be %s or %s", ErrValidation, ReviewApproved, ReviewRejected)
	}
	t.ReviewStatus = status
	t.ReviewedBy = reviewer
	t.ReviewNote = note
	return t.clone(), nil
}

// CommitTransfer applies a completed or flagged transfer in one
// critical section: both balances move, the sender's daily accumulator
// rolls to dateKey if needed, and the transaction is appended. Nothing
// mutates on error.
func (s *MemoryStore) CommitTransfer(_ context.Context, t *Transaction, dateKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, ok := s.accounts[t.FromAccount]
	if !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, t.FromAccount)
	}
	to, ok := s.accounts[t.ToAccount]
	if !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, t.ToAccount)
	}
	// Balance was checked before scoring, but another transfer may have
	// committed since. Re-check under the write lock.
	if from.Balance < t.Amount {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, from.Balance, t.Amount)
	}

	if from.DailyDate != dateKey {
		from.DailyDate = dateKey
		from.DailyTransferred = 0
	}
	from.Balance -= t.Amount
	to.Balance += t.Amount
	from.DailyTransferred += t.Amount

	s.txns[t.ID] = t.clone()
	s.txnOrder = append(s.txnOrder, t.ID)
	return nil
}

func (s *MemoryStore) AppendLoginLog(_ context.Context, l *LoginLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins = append(s.logins, l.clone())
	return nil
}

// LoginLogs returns the newest attempts first. A zero limit returns
// everything.
func (s *MemoryStore) LoginLogs(_ context.Context, limit int) ([]*LoginLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*LoginLog, 0, len(s.logins))
	for i := len(s.logins) - 1; i >= 0; i-- {
		out = append(out, s.logins[i].clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CountLoginAttempts counts a user's attempts at or after since,
// whatever their outcome.
func (s *MemoryStore) CountLoginAttempts(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := len(s.logins) - 1; i >= 0; i-- {
		l := s.logins[i]
		if l.CreatedAt.Before(since) {
			break
		}
		if l.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
