package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Policy 一个档位的配额：Window 时间内最多 Requests 次
type Policy struct {
	Requests int
	Window   time.Duration
}

// Tiers 档位表，未知档位按 default
var Tiers = map[string]Policy{
	"default":  {Requests: 100, Window: time.Hour},
	"free":     {Requests: 50, Window: time.Hour},
	"standard": {Requests: 200, Window: time.Hour},
	"premium":  {Requests: 1000, Window: time.Hour},
}

// PolicyFor 查档位，兼容 free_tier 这类带后缀的写法
func PolicyFor(tier string) Policy {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(tier)), "_tier")
	if p, ok := Tiers[name]; ok {
		return p
	}
	return Tiers["default"]
}

// Limiter 滑动窗口限流
type Limiter interface {
	// Allow 未超额时记录本次请求并返回 true；超额时不记录
	Allow(ctx context.Context, key, tier string) bool
	Reset(ctx context.Context, key string) error
	ResetAll(ctx context.Context) error
}

// MemoryLimiter 进程内实现，检查与记录在同一把锁内完成
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string][]time.Time), now: time.Now}
}

// WithClock 替换时钟，方便测试
func (m *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	m.now = now
	return m
}

func (m *MemoryLimiter) Allow(_ context.Context, key, tier string) bool {
	return m.allowPolicy(key, PolicyFor(tier))
}

func (m *MemoryLimiter) allowPolicy(key string, p Policy) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-p.Window)
	kept := m.windows[key][:0]
	for _, t := range m.windows[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= p.Requests {
		m.windows[key] = kept
		return false
	}
	m.windows[key] = append(kept, now)
	return true
}

func (m *MemoryLimiter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, key)
	return nil
}

func (m *MemoryLimiter) ResetAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = make(map[string][]time.Time)
	return nil
}

// Count 当前窗口内已记录的请求数（不做清理）
func (m *MemoryLimiter) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows[key])
}
