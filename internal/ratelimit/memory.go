// Package ratelimit provides the per-caller admission limiters. Memory is
// for single-instance deployments, Redis for shared state across replicas.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Memory is an in-process, per-key token bucket limiter.
type Memory struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemory allows perMinute requests per key, with a burst of the same
// size. A background sweep drops idle keys.
func NewMemory(perMinute int) *Memory {
	m := &Memory{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}
	go m.sweep()
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.rate, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = time.Now()
	m.mu.Unlock()
	return v.limiter.Allow(), nil
}

// sweep drops keys idle for more than three minutes.
func (m *Memory) sweep() {
	for {
		time.Sleep(time.Minute)
		m.mu.Lock()
		for k, v := range m.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(m.visitors, k)
			}
		}
		m.mu.Unlock()
	}
}
