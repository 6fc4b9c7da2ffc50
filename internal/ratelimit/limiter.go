package ratelimit

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDisposed is returned to waiters that were queued when the limiter was
// disposed.
var ErrDisposed = errors.New("rate limiter disposed")

// Config bounds the number of requests granted within a window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithObserver registers a callback invoked with the queue length whenever
// it changes.
func WithObserver(fn func(queued int)) Option {
	return func(l *Limiter) {
		l.observe = fn
	}
}

type waiter struct {
	ready chan error
}

// Limiter grants request slots under a sliding window.
type Limiter struct {
	cfg     Config
	now     func() time.Time
	observe func(int)

	mu           sync.Mutex
	stamps       []time.Time
	penaltyUntil time.Time
	queue        *list.List
	dispatching  bool
	disposed     bool
	wake         chan struct{}
}

// New creates a Limiter. Non-positive values fall back to one request per
// second.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}

	l := &Limiter{
		cfg:   cfg,
		now:   time.Now,
		queue: list.New(),
		wake:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire returns once a request may be issued. It suspends while the
// window is full, a penalty is active, or earlier callers are still queued.
// After Dispose it returns nil immediately.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return nil
	}

	now := l.now()
	l.pruneLocked(now)
	if l.queue.Len() == 0 && l.availableLocked(now) {
		l.stamps = append(l.stamps, now)
		l.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan error, 1)}
	elem := l.queue.PushBack(w)
	queued := l.queue.Len()
	if !l.dispatching {
		l.dispatching = true
		go l.dispatch()
	}
	l.mu.Unlock()
	l.notify(queued)

	select {
	case err := <-w.ready:
		return err
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case err := <-w.ready:
			// Granted or rejected while we were cancelling.
			l.mu.Unlock()
			return err
		default:
		}
		l.queue.Remove(elem)
		queued := l.queue.Len()
		l.mu.Unlock()
		l.notify(queued)
		return ctx.Err()
	}
}

// Penalize blocks new grants for d. An existing longer penalty is kept.
func (l *Limiter) Penalize(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	until := l.now().Add(d)
	if until.After(l.penaltyUntil) {
		l.penaltyUntil = until
	}
	l.mu.Unlock()
}

// PenaltyUntil returns the current penalty deadline. The zero time means
// no penalty was ever applied.
func (l *Limiter) PenaltyUntil() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.penaltyUntil
}

// Dispose rejects every queued waiter with ErrDisposed and turns later
// Acquire calls into no-ops.
func (l *Limiter) Dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	for e := l.queue.Front(); e != nil; e = e.Next() {
		e.Value.(*waiter).ready <- ErrDisposed
	}
	l.queue.Init()
	l.mu.Unlock()

	l.notify(0)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// QueueLen returns the number of suspended Acquire calls.
func (l *Limiter) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Usage returns the number of grants still inside the window.
func (l *Limiter) Usage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return len(l.stamps)
}

// dispatch grants queued waiters in order until the queue drains.
func (l *Limiter) dispatch() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		l.mu.Lock()
		if l.disposed || l.queue.Len() == 0 {
			l.dispatching = false
			l.mu.Unlock()
			return
		}

		now := l.now()
		l.pruneLocked(now)

		if l.availableLocked(now) {
			front := l.queue.Front()
			l.queue.Remove(front)
			l.stamps = append(l.stamps, now)
			front.Value.(*waiter).ready <- nil
			queued := l.queue.Len()
			l.mu.Unlock()
			l.notify(queued)
			continue
		}

		wait := l.nextSlotLocked(now)
		l.mu.Unlock()

		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-l.wake:
			timer.Stop()
		}
	}
}

func (l *Limiter) availableLocked(now time.Time) bool {
	if now.Before(l.penaltyUntil) {
		return false
	}
	return len(l.stamps) < l.cfg.MaxRequests
}

// nextSlotLocked returns how long until a grant could succeed.
func (l *Limiter) nextSlotLocked(now time.Time) time.Duration {
	var wait time.Duration
	if now.Before(l.penaltyUntil) {
		wait = l.penaltyUntil.Sub(now)
	}
	if len(l.stamps) >= l.cfg.MaxRequests {
		if until := l.stamps[0].Add(l.cfg.Window).Sub(now); until > wait {
			wait = until
		}
	}
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

func (l *Limiter) notify(queued int) {
	if l.observe != nil {
		l.observe(queued)
	}
}
