package reply

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Default admission limits for outbound sends.
const (
	DefaultMaxPerWindow = 40
	DefaultWindow       = 60 * time.Second
	DefaultJitter       = 300 * time.Millisecond
)

// Limiter is a sliding-window admission gate for one bot's outbound sends.
// It holds up to max send timestamps inside the window; an admit past
// capacity blocks until the oldest entry ages out. A small random jitter on
// each admitted send desynchronizes reply bursts.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	jitter time.Duration
	sent   []time.Time
}

// NewLimiter creates a limiter. Non-positive arguments fall back to defaults.
func NewLimiter(max int, window, jitter time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMaxPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{window: window, max: max, jitter: jitter}
}

// Acquire blocks until a send slot is available, records the send, then
// sleeps the jitter. Returns ctx.Err() if cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.prune(now)

		if len(l.sent) < l.max {
			l.sent = append(l.sent, now)
			l.mu.Unlock()
			if l.jitter > 0 {
				d := time.Duration(rand.Int63n(int64(l.jitter)))
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		}

		wait := l.sent[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// prune drops entries older than the window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.sent) && !l.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.sent = append(l.sent[:0], l.sent[i:]...)
	}
}

// Pending returns the number of sends currently inside the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(time.Now())
	return len(l.sent)
}

// LimiterPool creates and caches one Limiter per bot.
type LimiterPool struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	jitter time.Duration
	byApp  map[string]*Limiter
}

// NewLimiterPool creates a pool that builds limiters with the given settings.
func NewLimiterPool(max int, window, jitter time.Duration) *LimiterPool {
	return &LimiterPool{
		max:    max,
		window: window,
		jitter: jitter,
		byApp:  make(map[string]*Limiter),
	}
}

// Get returns the limiter for appID, creating it on first use.
func (p *LimiterPool) Get(appID string) *Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.byApp[appID]
	if !ok {
		l = NewLimiter(p.max, p.window, p.jitter)
		p.byApp[appID] = l
	}
	return l
}
