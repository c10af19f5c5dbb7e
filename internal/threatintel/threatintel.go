// Package threatintel maintains an in-memory index of known-bad
// indicators (IPs, devices, account numbers, emails) and answers point lookups
// and correlation queries against it.
package threatintel

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/idgen"
)

// Kind classifies an indicator.
type Kind string

const (
	KindIP      Kind = "ip"
	KindDevice  Kind = "device"
	KindAccount Kind = "account"
	KindEmail   Kind = "email"

	// KindPattern holds free-form signatures (user agent strings,
	// mule naming schemes). Patterns are listed and looked up but are
	// not correlation observables.
	KindPattern Kind = "pattern"
)

// ErrBadIndicator rejects malformed indicator submissions.
var ErrBadIndicator = errors.New("invalid indicator")

// Indicator is one piece of intelligence. Inactive indicators stay in
// the index for history but never match lookups.
type Indicator struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Value      string    `json:"value"`
	Source     string    `json:"source"`
	Confidence int       `json:"confidence"` // 0-100
	Note       string    `json:"note,omitempty"`
	Active     bool      `json:"active"`
	AddedAt    time.Time `json:"added_at"`
}

// Match is one correlation hit.
type Match struct {
	Field     string     `json:"field"`
	Indicator *Indicator `json:"indicator"`
}

// Query is the set of observables to correlate against the index.
// Empty fields are skipped.
type Query struct {
	IP      string `json:"ip,omitempty"`
	Device  string `json:"device,omitempty"`
	Account string `json:"account,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Index is the concurrent-safe indicator store.
type Index struct {
	mu   sync.RWMutex
	byID map[string]*Indicator
	// kind -> value -> indicator, active and inactive alike; lookups
	// filter on Active.
	byValue map[Kind]map[string]*Indicator

	clk    clock.Clock
	logger *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithClock overrides the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(ix *Index) { ix.clk = c }
}

// WithLogger sets the index logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// NewIndex creates an empty index.
func NewIndex(opts ...Option) *Index {
	ix := &Index{
		byID:    make(map[string]*Indicator),
		byValue: make(map[Kind]map[string]*Indicator),
		clk:     clock.System(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Add inserts an indicator and returns it with ID and timestamp filled.
// Re-adding an existing kind/value pair refreshes the entry in place
// and reactivates it.
func (ix *Index) Add(kind Kind, value, source string, confidence int, note string) (*Indicator, error) {
	switch kind {
	case KindIP, KindDevice, KindAccount, KindEmail, KindPattern:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrBadIndicator, kind)
	}
	if value == "" {
		return nil, fmt.Errorf("%w: empty value", ErrBadIndicator)
	}
	if confidence < 0 || confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %d out of range", ErrBadIndicator, confidence)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.byValue[kind] == nil {
		ix.byValue[kind] = make(map[string]*Indicator)
	}

	ind, ok := ix.byValue[kind][value]
	if !ok {
		ind = &Indicator{
			ID:      idgen.WithPrefix(idgen.PrefixIndicator),
			Kind:    kind,
			Value:   value,
			AddedAt: ix.clk.Now(),
		}
		ix.byID[ind.ID] = ind
		ix.byValue[kind][value] = ind
	}
	ind.Source = source
	ind.Confidence = confidence
	ind.Note = note
	ind.Active = true

	ix.logger.Info("indicator added", "kind", kind, "value", value, "confidence", confidence)
	cp := *ind
	return &cp, nil
}

// SetActive flips an indicator's active flag by ID.
func (ix *Index) SetActive(id string, active bool) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ind, ok := ix.byID[id]
	if !ok {
		return fmt.Errorf("%w: no indicator %s", ErrBadIndicator, id)
	}
	ind.Active = active
	return nil
}

// Lookup returns the active indicator for a kind/value pair, if any.
func (ix *Index) Lookup(kind Kind, value string) (*Indicator, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ind, ok := ix.byValue[kind][value]
	if !ok || !ind.Active {
		return nil, false
	}
	cp := *ind
	return &cp, true
}

// Correlate checks every populated query field against the index and
// returns all active matches.
func (ix *Index) Correlate(q Query) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var matches []Match
	probe := func(field string, kind Kind, value string) {
		if value == "" {
			return
		}
		if ind, ok := ix.byValue[kind][value]; ok && ind.Active {
			cp := *ind
			matches = append(matches, Match{Field: field, Indicator: &cp})
		}
	}
	probe("ip", KindIP, q.IP)
	probe("device", KindDevice, q.Device)
	probe("account", KindAccount, q.Account)
	probe("email", KindEmail, q.Email)
	return matches
}

// List returns all indicators, newest first.
func (ix *Index) List() []*Indicator {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*Indicator, 0, len(ix.byID))
	for _, ind := range ix.byID {
		cp := *ind
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out
}

// Reset drops every indicator.
func (ix *Index) Reset() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byID = make(map[string]*Indicator)
	ix.byValue = make(map[Kind]map[string]*Indicator)
}
