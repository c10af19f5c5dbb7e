package risk

import (
	"log/slog"
	"math"

	"github.com/paydefense/sentinel/internal/clock"
)

// Logistic weights. These are fixed; there is no training loop.
const (
	coefAmount       = 2.5
	coefVelocity     = 3.0
	coefNewIP        = 2.0
	coefNewDevice    = 1.5
	coefForeignGeo   = 2.2
	coefSenderAge    = -1.5
	coefRecipientAge = -1.8
	coefBias         = -3.0
)

// MLFlagThreshold marks predictions the model considers fraudulent.
// The comparison is strict: exactly 0.5 is not flagged.
const MLFlagThreshold = 0.5

// Noise perturbs a prediction. Samples must lie in [-0.025, 0.025].
type Noise interface {
	Sample() float64
}

// NoNoise returns zero perturbation, for deterministic scoring.
type NoNoise struct{}

func (NoNoise) Sample() float64 { return 0 }

type selectorNoise struct {
	sel *clock.Selector
}

func (n selectorNoise) Sample() float64 {
	return n.sel.Float64()*0.05 - 0.025
}

// NewSelectorNoise draws perturbations from the shared seeded selector,
// so a fixed seed reproduces the same prediction sequence.
func NewSelectorNoise(sel *clock.Selector) Noise {
	return selectorNoise{sel: sel}
}

// Features is the normalized input vector, exposed so callers can show
// their work alongside the prediction.
type Features struct {
	Amount       float64 `json:"amount"`
	Velocity     float64 `json:"velocity"`
	NewIP        float64 `json:"new_ip"`
	NewDevice    float64 `json:"new_device"`
	ForeignGeo   float64 `json:"foreign_geo"`
	SenderAge    float64 `json:"sender_age"`
	RecipientAge float64 `json:"recipient_age"`
}

// Prediction is the model output.
type Prediction struct {
	Probability float64  `json:"probability"`
	Flagged     bool     `json:"flagged"`
	Features    Features `json:"features"`
}

// Model is the fixed-weight logistic fraud model.
type Model struct {
	noise  Noise
	logger *slog.Logger
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithModelNoise sets the perturbation source.
func WithModelNoise(n Noise) ModelOption {
	return func(m *Model) { m.noise = n }
}

// WithModelLogger sets the logger for prediction traces.
func WithModelLogger(l *slog.Logger) ModelOption {
	return func(m *Model) { m.logger = l }
}

// NewModel creates the model. Without options it predicts without noise.
func NewModel(opts ...ModelOption) *Model {
	m := &Model{noise: NoNoise{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Predict extracts features, runs the logistic function, applies the
// perturbation, and clamps the result to [0, 1].
func (m *Model) Predict(c *Candidate, snap *Snapshot) Prediction {
	f := extractFeatures(c, snap)

	z := coefBias +
		coefAmount*f.Amount +
		coefVelocity*f.Velocity +
		coefNewIP*f.NewIP +
		coefNewDevice*f.NewDevice +
		coefForeignGeo*f.ForeignGeo +
		coefSenderAge*(1-f.SenderAge) +
		coefRecipientAge*(1-f.RecipientAge)

	p := sigmoid(z) + m.noise.Sample()
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	pred := Prediction{Probability: p, Flagged: p > MLFlagThreshold, Features: f}
	m.logger.Debug("model predicted",
		"probability", pred.Probability,
		"flagged", pred.Flagged)
	return pred
}

func extractFeatures(c *Candidate, snap *Snapshot) Features {
	var f Features

	f.Amount = capAt(c.Amount.Dollars()/100000, 1)
	// Velocity is deliberately uncapped. Bursts beyond five transfers
	// keep pushing the prediction upward.
	f.Velocity = float64(priorInWindow(c, snap)) / 5

	if snap.SenderFound {
		if !snap.SenderKnownIPs[c.IP] {
			f.NewIP = 1
		}
		if !snap.SenderKnownDevices[c.Device] {
			f.NewDevice = 1
		}
	}
	if !clock.IsHomeGeo(c.Geo) {
		f.ForeignGeo = 1
	}
	f.SenderAge = capAt(float64(snap.SenderAgeDays)/365, 1)
	f.RecipientAge = capAt(float64(snap.RecipientAgeDays)/365, 1)
	return f
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
