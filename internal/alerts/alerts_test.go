package alerts

import (
	"errors"
	"testing"
	"time"

	"github.com/paydefense/sentinel/internal/clock"
)

func testManager() *Manager {
	return NewManager(WithClock(clock.NewFake(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))))
}

func TestRaiseStartsOpen(t *testing.T) {
	m := testManager()
	a := m.Raise(Alert{
		Severity: SeverityHigh,
		Title:    "flagged transfer",
		Reasons:  []string{"large amount exceeding $50,000"},
		UserID:   "usr_alice",
	})
	if a.ID == "" || a.Status != StatusOpen {
		t.Fatalf("expected open alert with ID, got %+v", a)
	}

	got, err := m.Get(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "flagged transfer" || len(got.Reasons) != 1 {
		t.Fatalf("stored alert mismatch: %+v", got)
	}
}

func TestLifecycleForwardOnly(t *testing.T) {
	m := testManager()
	a := m.Raise(Alert{Severity: SeverityMedium, Title: "t", UserID: "u"})

	if _, err := m.UpdateStatus(a.ID, StatusInvestigating); err != nil {
		t.Fatal(err)
	}
	if _, err := m.UpdateStatus(a.ID, StatusOpen); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reopening must fail, got %v", err)
	}
	if _, err := m.UpdateStatus(a.ID, StatusResolved); err != nil {
		t.Fatal(err)
	}
	for _, to := range []Status{StatusOpen, StatusInvestigating, StatusFalsePositive} {
		if _, err := m.UpdateStatus(a.ID, to); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("resolved is terminal, move to %s got %v", to, err)
		}
	}
}

func TestLifecycleSkipsAndTerminals(t *testing.T) {
	m := testManager()

	// open -> resolved directly is allowed.
	a := m.Raise(Alert{Severity: SeverityLow, Title: "a", UserID: "u"})
	if _, err := m.UpdateStatus(a.ID, StatusResolved); err != nil {
		t.Fatal(err)
	}

	// open -> false_positive directly is allowed and terminal.
	b := m.Raise(Alert{Severity: SeverityLow, Title: "b", UserID: "u"})
	if _, err := m.UpdateStatus(b.ID, StatusFalsePositive); err != nil {
		t.Fatal(err)
	}
	if _, err := m.UpdateStatus(b.ID, StatusResolved); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("false_positive is terminal, got %v", err)
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	m := testManager()
	a := m.Raise(Alert{Severity: SeverityLow, Title: "a", UserID: "u"})

	if _, err := m.UpdateStatus(a.ID, "escalated"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown status must fail, got %v", err)
	}
	if _, err := m.UpdateStatus("alert_missing", StatusResolved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown alert must fail, got %v", err)
	}
}

func TestListNewestFirstWithFilter(t *testing.T) {
	m := testManager()
	first := m.Raise(Alert{Severity: SeverityLow, Title: "first", UserID: "u"})
	second := m.Raise(Alert{Severity: SeverityHigh, Title: "second", UserID: "u"})
	m.UpdateStatus(first.ID, StatusResolved)

	all := m.List("", 0)
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	open := m.List(StatusOpen, 0)
	if len(open) != 1 || open[0].ID != second.ID {
		t.Fatalf("status filter failed: %+v", open)
	}

	limited := m.List("", 1)
	if len(limited) != 1 || limited[0].ID != second.ID {
		t.Fatalf("limit failed: %+v", limited)
	}
}

func TestSeverityForScore(t *testing.T) {
	tests := []struct {
		score int
		want  Severity
	}{
		{0, SeverityLow}, {39, SeverityLow},
		{40, SeverityMedium}, {69, SeverityMedium},
		{70, SeverityHigh}, {89, SeverityHigh},
		{90, SeverityCritical}, {100, SeverityCritical},
	}
	for _, tt := range tests {
		if got := SeverityForScore(tt.score); got != tt.want {
			t.Fatalf("score %d: want %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestCounts(t *testing.T) {
	m := testManager()
	a := m.Raise(Alert{Severity: SeverityLow, Title: "a", UserID: "u"})
	m.Raise(Alert{Severity: SeverityHigh, Title: "b", UserID: "u"})
	m.UpdateStatus(a.ID, StatusInvestigating)

	counts := m.Counts()
	if counts[StatusOpen] != 1 || counts[StatusInvestigating] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}
