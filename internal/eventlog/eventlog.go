// Package eventlog provides the process-wide append-only event log.
//
// Every mutating operation in the engine appends one structured line:
// sequence number, timestamp, category tag, message. The log itself is
// unbounded; truncation for display is the consumer's concern. Subscribers
// receive entries as they are appended (best-effort, slow subscribers
// drop entries rather than block the writer).
package eventlog

import (
	"fmt"
	"sync"
	"time"

	"github.com/paydefense/sentinel/internal/clock"
)

// Categories used across the engine.
const (
	CategoryAuth     = "AUTH"
	CategoryTransfer = "TRANSFER"
	CategoryControl  = "CONTROL"
	CategoryAlert    = "ALERT"
	CategoryAttack   = "ATTACK"
	CategorySystem   = "SYSTEM"
)

// Entry is one immutable event log line.
type Entry struct {
	Seq      int64     `json:"seq"`
	Time     time.Time `json:"time"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
}

// Log is an append-only in-memory event log with subscriber fanout.
type Log struct {
	mu      sync.RWMutex
	clk     clock.Clock
	entries []Entry
	nextSeq int64
	subs    map[int]chan Entry
	nextSub int
}

// New creates an empty log reading timestamps from clk.
func New(clk clock.Clock) *Log {
	return &Log{
		clk:  clk,
		subs: make(map[int]chan Entry),
	}
}

// Append adds a formatted entry and fans it out to subscribers.
func (l *Log) Append(category, format string, args ...any) Entry {
	l.mu.Lock()
	l.nextSeq++
	e := Entry{
		Seq:      l.nextSeq,
		Time:     l.clk.Now(),
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
	l.entries = append(l.entries, e)
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	l.mu.Unlock()
	return e
}

// Entries returns a copy of the last limit entries, newest last.
// limit <= 0 returns everything.
func (l *Log) Entries(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.entries)
	start := 0
	if limit > 0 && n > limit {
		start = n - limit
	}
	out := make([]Entry, n-start)
	copy(out, l.entries[start:])
	return out
}

// Len returns the number of entries appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Subscribe returns a channel receiving future entries and a cancel
// function. The channel is buffered; entries are dropped if the
// subscriber falls behind.
func (l *Log) Subscribe() (<-chan Entry, func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan Entry, 256)
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if sub, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(sub)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

// Reset clears all entries. Sequence numbers keep climbing so consumers
// can tell a reset from a restart.
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
