package clock

import (
	"math/rand"
	"sync"
)

// Context is the request fingerprint attached to logins and transfers.
type Context struct {
	IP     string `json:"ip"`
	Device string `json:"device"`
	Geo    string `json:"geo"`
}

// HomeGeos are the locations considered domestic by the geo risk rule.
var HomeGeos = []string{"New York, US", "Boston, US", "Chicago, US"}

// IsHomeGeo reports whether geo is one of the home locations.
func IsHomeGeo(geo string) bool {
	for _, g := range HomeGeos {
		if g == geo {
			return true
		}
	}
	return false
}

var (
	homeIPs     = []string{"192.168.1.10", "10.0.0.23", "172.16.4.8"}
	homeDevices = []string{"device-home-1", "device-home-2", "device-mobile-1"}

	foreignIPs     = []string{"185.220.101.5", "103.75.190.12", "45.134.26.77", "91.219.237.44"}
	foreignDevices = []string{"device-tor", "device-burner-1", "device-burner-2", "device-emulator"}
	foreignGeos    = []string{"Lagos, NG", "Moscow, RU", "Karachi, PK", "Caracas, VE"}
)

// Selector draws request fingerprints from the home and foreign pools
// using a seeded source, so demo runs and attack scenarios replay
// identically for a given seed.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a Selector seeded with seed.
func NewSelector(seed int64) *Selector {
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

// Home draws a domestic fingerprint: home IP, home device, home geo.
func (s *Selector) Home() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Context{
		IP:     homeIPs[s.rng.Intn(len(homeIPs))],
		Device: homeDevices[s.rng.Intn(len(homeDevices))],
		Geo:    HomeGeos[s.rng.Intn(len(HomeGeos))],
	}
}

// Foreign draws a hostile fingerprint from the foreign pools.
func (s *Selector) Foreign() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Context{
		IP:     foreignIPs[s.rng.Intn(len(foreignIPs))],
		Device: foreignDevices[s.rng.Intn(len(foreignDevices))],
		Geo:    foreignGeos[s.rng.Intn(len(foreignGeos))],
	}
}

// Float64 draws a uniform value in [0, 1).
func (s *Selector) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// ForeignIPs exposes the hostile IP pool for threat intel seeding.
func ForeignIPs() []string {
	return append([]string(nil), foreignIPs...)
}

// ForeignDevices exposes the hostile device pool for threat intel seeding.
func ForeignDevices() []string {
	return append([]string(nil), foreignDevices...)
}
