package risk

import (
	"testing"
	"time"

	"github.com/paydefense/sentinel/internal/clock"
	"github.com/paydefense/sentinel/internal/money"
)

func TestPredictCalmTransferLow(t *testing.T) {
	m := NewModel()
	p := m.Predict(calmCandidate(), calmSnapshot())
	if p.Flagged {
		t.Fatalf("calm transfer flagged at %f", p.Probability)
	}
	if p.Probability <= 0 || p.Probability >= 0.2 {
		t.Fatalf("expected a small probability, got %f", p.Probability)
	}
}

func TestPredictRiskyTransferHigh(t *testing.T) {
	c := &Candidate{
		Amount: money.FromDollars(150000),
		IP:     "185.220.101.5",
		Device: "device-tor",
		Geo:    "Lagos, NG",
		At:     scoreBase,
	}
	s := calmSnapshot()
	p := NewModel().Predict(c, s)
	if !p.Flagged {
		t.Fatalf("risky transfer should flag, got %f", p.Probability)
	}
	if p.Features.Amount != 1 {
		t.Fatalf("amount feature should cap at 1, got %f", p.Features.Amount)
	}
	if p.Features.NewIP != 1 || p.Features.NewDevice != 1 || p.Features.ForeignGeo != 1 {
		t.Fatalf("expected unit indicator features, got %+v", p.Features)
	}
}

func TestPredictVelocityFeatureUncapped(t *testing.T) {
	c, s := calmCandidate(), calmSnapshot()
	for i := 0; i < 10; i++ {
		s.PriorTransfers = append(s.PriorTransfers, scoreBase.Add(-time.Duration(i+1)*time.Second))
	}
	p := NewModel().Predict(c, s)
	if p.Features.Velocity != 2 {
		t.Fatalf("10 transfers in the window should yield feature 2.0, got %f", p.Features.Velocity)
	}
}

func TestPredictAgeFeaturesCap(t *testing.T) {
	c, s := calmCandidate(), calmSnapshot()
	s.SenderAgeDays = 2000
	s.RecipientAgeDays = 100
	p := NewModel().Predict(c, s)
	if p.Features.SenderAge != 1 {
		t.Fatalf("sender age feature should cap at 1, got %f", p.Features.SenderAge)
	}
	if want := 100.0 / 365.0; p.Features.RecipientAge != want {
		t.Fatalf("recipient age feature: want %f, got %f", want, p.Features.RecipientAge)
	}
}

func TestPredictDeterministicWithoutNoise(t *testing.T) {
	m := NewModel()
	c, s := calmCandidate(), calmSnapshot()
	first := m.Predict(c, s)
	second := m.Predict(c, s)
	if first.Probability != second.Probability {
		t.Fatalf("noise-free predictions diverged: %f vs %f", first.Probability, second.Probability)
	}
}

func TestPredictSeededNoiseReproducible(t *testing.T) {
	c, s := calmCandidate(), calmSnapshot()
	a := NewModel(WithModelNoise(NewSelectorNoise(clock.NewSelector(42)))).Predict(c, s)
	b := NewModel(WithModelNoise(NewSelectorNoise(clock.NewSelector(42)))).Predict(c, s)
	if a.Probability != b.Probability {
		t.Fatalf("same seed should reproduce predictions: %f vs %f", a.Probability, b.Probability)
	}

	base := NewModel().Predict(c, s)
	if diff := a.Probability - base.Probability; diff < -0.025 || diff > 0.025 {
		t.Fatalf("perturbation out of range: %f", diff)
	}
}

type fixedNoise float64

func (n fixedNoise) Sample() float64 { return float64(n) }

func TestPredictClampsToUnitInterval(t *testing.T) {
	c, s := calmCandidate(), calmSnapshot()
	c.Amount = money.FromDollars(1)

	low := NewModel(WithModelNoise(fixedNoise(-0.025))).Predict(c, s)
	if low.Probability < 0 {
		t.Fatalf("probability below zero: %f", low.Probability)
	}

	hot := &Candidate{
		Amount: money.FromDollars(500000),
		IP:     "185.220.101.5",
		Device: "device-tor",
		Geo:    "Lagos, NG",
		At:     scoreBase,
	}
	hotSnap := calmSnapshot()
	for i := 0; i < 50; i++ {
		hotSnap.PriorTransfers = append(hotSnap.PriorTransfers, scoreBase.Add(-time.Duration(i+1)*time.Second))
	}
	high := NewModel(WithModelNoise(fixedNoise(0.025))).Predict(hot, hotSnap)
	if high.Probability > 1 {
		t.Fatalf("probability above one: %f", high.Probability)
	}
}
