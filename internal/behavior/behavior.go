// Package behavior tracks per-user activity profiles and scores how far
// a transfer deviates from them. Deviation scoring is additive like the
// rule scorer but reads learned history instead of fixed rules, and its
// score never blocks anything on its own.
package behavior

import (
	"log/slog"
	"time"

	"github.com/paydefense/sentinel/internal/money"
)

// Deviation weights, capped at 100 total.
const (
	weightAmountSpike   = 20
	weightUnusualHour   = 15
	weightNewGeo        = 25
	weightNewDevice     = 15
	weightNewIP         = 15
	amountSpikeMultiple = 3
)

// Profile is a user's learned activity baseline.
type Profile struct {
	UserID           string          `json:"user_id"`
	AvgAmount        money.Amount    `json:"avg_amount"`
	TypicalStartHour int             `json:"typical_start_hour"`
	TypicalEndHour   int             `json:"typical_end_hour"`
	Geos             map[string]bool `json:"geos"`
	Devices          map[string]bool `json:"devices"`
	IPs              map[string]bool `json:"ips"`
	Observations     int             `json:"observations"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (p *Profile) clone() *Profile {
	cp := *p
	cp.Geos = copySet(p.Geos)
	cp.Devices = copySet(p.Devices)
	cp.IPs = copySet(p.IPs)
	return &cp
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k := range in {
		out[k] = true
	}
	return out
}

// Activity is one observed or candidate action.
type Activity struct {
	Amount money.Amount
	IP     string
	Device string
	Geo    string
	At     time.Time
}

// Report carries the deviation score and one line per deviation.
type Report struct {
	Score      int      `json:"score"`
	Deviations []string `json:"deviations"`
}

// Profiler scores activities against stored profiles and folds
// committed activity back into them.
type Profiler struct {
	store  Store
	logger *slog.Logger
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithLogger sets the profiler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Profiler) { p.logger = l }
}

// NewProfiler creates a Profiler over the given store.
func NewProfiler(store Store, opts ...Option) *Profiler {
	p := &Profiler{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Deviation scores the activity against the user's profile. A user
// without a profile scores 0: there is nothing to deviate from.
func (p *Profiler) Deviation(userID string, a Activity) Report {
	prof, ok := p.store.Get(userID)
	if !ok {
		return Report{}
	}

	var r Report
	add := func(w int, line string) {
		r.Score += w
		r.Deviations = append(r.Deviations, line)
	}

	if prof.AvgAmount > 0 && a.Amount > prof.AvgAmount*amountSpikeMultiple {
		add(weightAmountSpike, "amount far above personal average")
	}
	if h := a.At.Hour(); h < prof.TypicalStartHour || h > prof.TypicalEndHour {
		add(weightUnusualHour, "activity outside typical hours")
	}
	if a.Geo != "" && !prof.Geos[a.Geo] {
		add(weightNewGeo, "activity from new geolocation")
	}
	if a.Device != "" && !prof.Devices[a.Device] {
		add(weightNewDevice, "activity from new device")
	}
	if a.IP != "" && !prof.IPs[a.IP] {
		add(weightNewIP, "activity from new IP address")
	}
	if r.Score > 100 {
		r.Score = 100
	}
	return r
}

// Observe folds a committed activity into the profile, creating one on
// first sight. The average amount moves as a running mean and the
// typical-hours window widens to include the observed hour.
func (p *Profiler) Observe(userID string, a Activity) {
	prof, ok := p.store.Get(userID)
	if !ok {
		prof = &Profile{
			UserID:           userID,
			AvgAmount:        a.Amount,
			TypicalStartHour: a.At.Hour(),
			TypicalEndHour:   a.At.Hour(),
			Geos:             map[string]bool{},
			Devices:          map[string]bool{},
			IPs:              map[string]bool{},
		}
	}
	n := prof.Observations
	prof.AvgAmount = money.Amount((int64(prof.AvgAmount)*int64(n) + int64(a.Amount)) / int64(n+1))
	prof.Observations = n + 1
	if h := a.At.Hour(); ok {
		if h < prof.TypicalStartHour {
			prof.TypicalStartHour = h
		}
		if h > prof.TypicalEndHour {
			prof.TypicalEndHour = h
		}
	}
	if a.Geo != "" {
		prof.Geos[a.Geo] = true
	}
	if a.Device != "" {
		prof.Devices[a.Device] = true
	}
	if a.IP != "" {
		prof.IPs[a.IP] = true
	}
	prof.UpdatedAt = a.At
	p.store.Put(prof)
	p.logger.Debug("profile updated", "user_id", userID, "observations", prof.Observations)
}

// Get returns a copy of the user's profile.
func (p *Profiler) Get(userID string) (*Profile, bool) {
	return p.store.Get(userID)
}

// Seed installs a ready-made profile, used by demo fixtures.
func (p *Profiler) Seed(prof *Profile) {
	p.store.Put(prof)
}

// Reset drops all profiles.
func (p *Profiler) Reset() {
	p.store.Reset()
}
