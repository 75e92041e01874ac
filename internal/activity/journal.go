package activity

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"market_sim/internal/domain"
)

const maxBatch = 64

// Journal writes activity entries to a repository off the caller's
// goroutine. Entries are batched; when the buffer is full new entries are
// dropped and counted rather than blocking the sequencer.
type Journal struct {
	repo    domain.ActivityRepository
	queue   chan domain.ActivityEntry
	dropped atomic.Uint64
	done    chan struct{}
}

// NewJournal creates a journal with room for buffer pending entries.
func NewJournal(repo domain.ActivityRepository, buffer int) *Journal {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Journal{
		repo:  repo,
		queue: make(chan domain.ActivityEntry, buffer),
		done:  make(chan struct{}),
	}
}

// Enqueue schedules e for writing. It reports false if e was dropped.
func (j *Journal) Enqueue(e domain.ActivityEntry) bool {
	select {
	case j.queue <- e:
		return true
	default:
		if j.dropped.Add(1) == 1 {
			slog.Warn("Activity journal full, dropping entries")
		}
		return false
	}
}

// Dropped returns how many entries were discarded.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Done is closed once Run has flushed and returned.
func (j *Journal) Done() <-chan struct{} {
	return j.done
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (j *Journal) Run(ctx context.Context) {
	defer close(j.done)

	batch := make([]domain.ActivityEntry, 0, maxBatch)
	for {
		select {
		case <-ctx.Done():
			j.flushRemaining(batch[:0])
			return
		case e := <-j.queue:
			batch = append(batch[:0], e)
			batch = j.drain(batch)
			j.write(ctx, batch)
		}
	}
}

func (j *Journal) drain(batch []domain.ActivityEntry) []domain.ActivityEntry {
	for len(batch) < maxBatch {
		select {
		case e := <-j.queue:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (j *Journal) flushRemaining(batch []domain.ActivityEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		batch = j.drain(batch[:0])
		if len(batch) == 0 {
			return
		}
		j.write(ctx, batch)
	}
}

func (j *Journal) write(ctx context.Context, batch []domain.ActivityEntry) {
	if err := j.repo.Append(ctx, batch...); err != nil {
		slog.Error("Failed to journal activity",
			slog.Int("entries", len(batch)),
			slog.Any("error", err),
		)
	}
}
