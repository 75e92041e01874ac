// Package activity keeps the bounded, human-readable market activity log.
package activity

import (
	"sync"
	"time"

	"market_sim/internal/domain"
	"market_sim/internal/event"
)

// DefaultCapacity is the number of entries kept in memory.
const DefaultCapacity = 50

// Log is a fixed-size ring of activity entries. When full, the oldest
// entry is overwritten. Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	ring    []domain.ActivityEntry
	next    int // slot for the next entry
	size    int
	journal *Journal
	now     func() time.Time
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithJournal mirrors every entry to j.
func WithJournal(j *Journal) LogOption {
	return func(l *Log) { l.journal = j }
}

// NewLog creates a log holding at most capacity entries.
func NewLog(capacity int, opts ...LogOption) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		ring: make([]domain.ActivityEntry, capacity),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Handle turns an engine event into log entries. It has the signature of
// event.Handler and never blocks.
func (l *Log) Handle(ev event.Event) {
	msgs := Describe(ev)
	if len(msgs) == 0 {
		return
	}

	ts := time.UnixMicro(ev.GetTs())
	if ev.GetTs() == 0 {
		ts = l.now()
	}
	for _, msg := range msgs {
		l.Add(domain.ActivityEntry{
			Seq:       ev.GetSeq(),
			Kind:      ev.GetType().String(),
			Level:     levelOf(ev),
			Message:   msg,
			CreatedAt: ts,
		})
	}
}

// Add appends e, evicting the oldest entry when the log is full.
func (l *Log) Add(e domain.ActivityEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}

	l.mu.Lock()
	l.ring[l.next] = e
	l.next = (l.next + 1) % len(l.ring)
	if l.size < len(l.ring) {
		l.size++
	}
	l.mu.Unlock()

	if l.journal != nil {
		l.journal.Enqueue(e)
	}
}

// Entries returns a copy of the log, most recent first.
func (l *Log) Entries() []domain.ActivityEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.ActivityEntry, 0, l.size)
	for i := 1; i <= l.size; i++ {
		idx := (l.next - i + len(l.ring)) % len(l.ring)
		out = append(out, l.ring[idx])
	}
	return out
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Capacity returns the maximum number of entries held.
func (l *Log) Capacity() int {
	return len(l.ring)
}
