package ratelimit

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// slidingWindow 清理窗口外的记录、计数、未超额时写入本次请求，整个过程在 redis 内原子执行
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter 用有序集合保存每个 key 的请求时间（毫秒）。
// 某个 key 一旦遇到 redis 错误，该 key 在本进程剩余生命周期内改用进程内窗口
type RedisLimiter struct {
	rdb redis.UniversalClient
	mem *MemoryLimiter
	now func() time.Time

	mu       sync.Mutex
	fallback map[string]bool
}

func NewRedisLimiter(rdb redis.UniversalClient) *RedisLimiter {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}
	return &RedisLimiter{
		rdb:      rdb,
		mem:      NewMemoryLimiter(),
		now:      time.Now,
		fallback: make(map[string]bool),
	}
}

// WithClock 同时替换 redis 路径与兜底窗口的时钟
func (r *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	r.now = now
	r.mem.WithClock(now)
	return r
}

func (r *RedisLimiter) Allow(ctx context.Context, key, tier string) bool {
	p := PolicyFor(tier)
	if r.isFallback(key) {
		return r.mem.allowPolicy(key, p)
	}

	now := r.now().UnixMilli()
	ok, err := slidingWindow.Run(ctx, r.rdb, []string{keyPrefix + key},
		now, p.Window.Milliseconds(), p.Requests, uuid.NewString()).Int()
	if err != nil {
		// 调用方取消或超时不是存储故障：拒绝本次请求，窗口仍留在 redis
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		log.Printf("ratelimit: redis error for key, using in-process window: %v", err)
		r.markFallback(key)
		return r.mem.allowPolicy(key, p)
	}
	return ok == 1
}

// Reset 同时清理 redis 与进程内的窗口；redis 失败只记日志
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		log.Printf("ratelimit: reset %s in redis failed: %v", key, err)
	}
	return r.mem.Reset(ctx, key)
}

func (r *RedisLimiter) ResetAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			log.Printf("ratelimit: scan failed: %v", err)
			break
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				log.Printf("ratelimit: delete windows failed: %v", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return r.mem.ResetAll(ctx)
}

func (r *RedisLimiter) isFallback(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fallback[key]
}

func (r *RedisLimiter) markFallback(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback[key] = true
}
