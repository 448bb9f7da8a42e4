// Package ratelimit throttles proof submissions per caller with fixed
// windows, either in process memory or shared through redis.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sparsity-xyz/aws-nitro-enclave-attestation/internal/domain"
)

const defaultMaxCallers = 10000

type memoryLimiter struct {
	mu         sync.Mutex
	now        func() time.Time
	windows    map[string]*window
	maxCallers int
}

type window struct {
	count int
	end   time.Time
}

type MemoryLimiterConfig struct {
	Now        func() time.Time
	MaxCallers int
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) domain.RateLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxCallers <= 0 {
		cfg.MaxCallers = defaultMaxCallers
	}
	return &memoryLimiter{
		now:        cfg.Now,
		windows:    make(map[string]*window),
		maxCallers: cfg.MaxCallers,
	}
}

func (m *memoryLimiter) Allow(_ context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && now.After(w.end) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxCallers {
			m.sweep(now)
		}
		if len(m.windows) >= m.maxCallers {
			return domain.RateLimitDecision{}, errors.New("rate limiter capacity exceeded")
		}
		w = &window{end: now.Add(span)}
		m.windows[key] = w
	}

	if w.count < limit {
		w.count++
		return domain.RateLimitDecision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - w.count,
			ResetAt:   w.end,
		}, nil
	}
	return domain.RateLimitDecision{Allowed: false, Limit: limit, ResetAt: w.end}, nil
}

func (m *memoryLimiter) sweep(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.end) {
			delete(m.windows, key)
		}
	}
}
