package adminhttp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-remote-address limiter pool for the admin listener. Entries idle
// longer than the TTL are dropped by a background cleanup loop.
type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

type limiterPool struct {
	mu           sync.Mutex
	m            map[string]*limiterEntry
	rps          rate.Limit
	burst        int
	startCleanup sync.Once
}

const (
	limiterTTL    = 10 * time.Minute
	cleanupPeriod = time.Minute
	defaultRPS    = 10
	defaultBurst  = 20
)

func newLimiterPool() *limiterPool {
	return &limiterPool{m: make(map[string]*limiterEntry), rps: defaultRPS, burst: defaultBurst}
}

// Allow reports whether a request from key may proceed, creating the key's
// limiter on first sight.
func (p *limiterPool) Allow(key string) bool {
	p.startCleanup.Do(func() { go p.cleanupLoop() })

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = time.Now()
		return e.l.Allow()
	}
	l := rate.NewLimiter(p.rps, p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: time.Now()}
	return l.Allow()
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(cleanupPeriod)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-limiterTTL)
		p.mu.Lock()
		for k, e := range p.m {
			if e.lastSeen.Before(cutoff) {
				delete(p.m, k)
			}
		}
		p.mu.Unlock()
	}
}
