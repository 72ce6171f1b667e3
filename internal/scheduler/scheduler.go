// Package scheduler arms one-shot deferred expiry of file versions. It
// holds only weak, time-indexed references: the firing path re-checks the
// record's current state through the ledger before acting, which is what
// makes cancel/fire races safe without hard mutual exclusion.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mediavault/internal/event"
	"mediavault/internal/model"
)

// ExpireFunc soft-deletes one file version on behalf of the system actor.
// It must be idempotent and must treat a missing or already-deleted record
// as success.
type ExpireFunc func(ctx context.Context, key model.FileKey) error

type Config struct {
	// MaxAttempts bounds the firing retries on store unavailability.
	MaxAttempts int
	// RetryBase is the first backoff delay; it doubles per attempt.
	RetryBase time.Duration
}

type Scheduler struct {
	mu     sync.Mutex
	timers map[model.FileKey]*time.Timer
	closed bool

	expire      ExpireFunc
	bus         event.Bus
	maxAttempts int
	retryBase   time.Duration
}

func New(expire ExpireFunc, bus event.Bus, cfg Config) *Scheduler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}

	return &Scheduler{
		timers:      make(map[model.FileKey]*time.Timer),
		expire:      expire,
		bus:         bus,
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
	}
}

// Arm registers deferred expiry for one file version. Arming an already
// armed key replaces the previous task; there is never more than one task
// per version. A fire time in the past fires immediately.
func (s *Scheduler) Arm(key model.FileKey, fireAt time.Time) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	s.timers[key] = time.AfterFunc(delay, func() { s.fire(key) })
	s.mu.Unlock()

	s.bus.Publish(event.Event{Type: event.TypeRetentionArmed, Payload: key})
	slog.Debug("retention armed", "file", key.String(), "fire_at", fireAt)
}

// Cancel removes an armed task if present; calling it for an unknown key or
// concurrently with the task's own firing is a no-op.
func (s *Scheduler) Cancel(key model.FileKey) {
	s.mu.Lock()
	timer, ok := s.timers[key]
	if ok {
		timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	if ok {
		s.bus.Publish(event.Event{Type: event.TypeRetentionCancelled, Payload: key})
		slog.Debug("retention cancelled", "file", key.String())
	}
}

// RearmAll arms every record carrying a scheduled-delete timestamp, used at
// startup since timers do not survive restarts. Records already past due
// fire right away.
func (s *Scheduler) RearmAll(records []model.FileRecord) {
	for _, rec := range records {
		if rec.DeleteAfter == nil {
			continue
		}
		s.Arm(rec.Key(), *rec.DeleteAfter)
	}
}

// Pending reports the number of currently armed tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops all timers. Tasks that already started firing run to
// completion; they only perform idempotent deletes.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

// fire runs on the timer goroutine. At-least-once-attempted: transient
// store failures are retried with doubling backoff; exhaustion drops the
// task, which degrades to the file simply not auto-expiring.
func (s *Scheduler) fire(key model.FileKey) {
	s.mu.Lock()
	delete(s.timers, key)
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	var err error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(s.retryBase << (attempt - 1))
		}

		err = s.expire(context.Background(), key)
		if err == nil {
			s.bus.Publish(event.Event{Type: event.TypeRetentionFired, Payload: key})
			slog.Info("retention fired", "file", key.String())
			return
		}
		if !errors.Is(err, model.ErrStoreUnavailable) {
			break
		}
	}

	slog.Error("retention task dropped", "file", key.String(), "error", err)
	s.bus.Publish(event.Event{Type: event.TypeRetentionDropped, Payload: key})
}
