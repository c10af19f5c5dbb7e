package eventlog

import (
	"testing"
	"time"

	"github.com/paydefense/sentinel/internal/clock"
)

func testClock() *clock.FakeClock {
	return clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestAppend_SequenceIncreases(t *testing.T) {
	log := New(testClock())

	e1 := log.Append(CategoryAuth, "login for %s", "alice")
	e2 := log.Append(CategoryTransfer, "transfer committed")

	if e1.Seq != 1 || e2.Seq != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", e1.Seq, e2.Seq)
	}
	if e1.Message != "login for alice" {
		t.Errorf("unexpected message: %q", e1.Message)
	}
}

func TestEntries_Limit(t *testing.T) {
	log := New(testClock())
	for i := 0; i < 10; i++ {
		log.Append(CategorySystem, "entry %d", i)
	}

	got := log.Entries(3)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Message != "entry 7" || got[2].Message != "entry 9" {
		t.Errorf("wrong window: %v", got)
	}

	all := log.Entries(0)
	if len(all) != 10 {
		t.Fatalf("expected all 10 entries, got %d", len(all))
	}
}

func TestSubscribe_ReceivesAppends(t *testing.T) {
	log := New(testClock())
	ch, cancel := log.Subscribe()
	defer cancel()

	log.Append(CategoryAttack, "phase started")

	select {
	case e := <-ch:
		if e.Category != CategoryAttack {
			t.Errorf("wrong category %q", e.Category)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive entry")
	}
}

func TestSubscribe_CancelCloses(t *testing.T) {
	log := New(testClock())
	ch, cancel := log.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}

	// Appending after cancel must not panic.
	log.Append(CategorySystem, "still fine")
}

func TestReset_KeepsSequence(t *testing.T) {
	log := New(testClock())
	log.Append(CategorySystem, "before")
	log.Reset()

	if log.Len() != 0 {
		t.Fatalf("expected empty log after reset")
	}
	e := log.Append(CategorySystem, "after")
	if e.Seq != 2 {
		t.Errorf("sequence should continue after reset, got %d", e.Seq)
	}
}
