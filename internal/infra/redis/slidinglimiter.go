package redis

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sendbridge/core/internal/domain"
	"github.com/sendbridge/core/internal/ratelimit"
)

// checkScript implements a sliding-log check over one ZSET. It prunes entries
// older than the largest window, verifies every (window, limit) pair, and
// records the attempt only when all windows have headroom. Runs as a single
// atomic round trip per key.
//
// ARGV: now_ms, member, max_window_s, then repeated (window_s, limit) pairs.
// Returns {1, remaining} when allowed, {0, retry_after_ms} when denied.
var checkScript = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local member = ARGV[2]
local maxWindow = tonumber(ARGV[3]) * 1000

redis.call("ZREMRANGEBYSCORE", key, 0, now - maxWindow)

local denied = false
local retryAfter = 0
local remaining = -1

local i = 4
while i < #ARGV do
  local window = tonumber(ARGV[i]) * 1000
  local limit = tonumber(ARGV[i + 1])
  local from = now - window + 1
  local count = redis.call("ZCOUNT", key, from, "+inf")

  if count >= limit then
    local oldest = redis.call("ZRANGEBYSCORE", key, from, "+inf", "WITHSCORES", "LIMIT", 0, 1)
    local wait = window
    if oldest[2] then
      wait = tonumber(oldest[2]) + window - now
    end
    if wait < 1 then
      wait = 1
    end
    if not denied or wait < retryAfter then
      retryAfter = wait
    end
    denied = true
  else
    local headroom = limit - count
    if remaining < 0 or headroom < remaining then
      remaining = headroom
    end
  end

  i = i + 2
end

if denied then
  return {0, retryAfter}
end

redis.call("ZADD", key, now, member)
redis.call("PEXPIRE", key, maxWindow)
return {1, remaining - 1}
`)

var _ ratelimit.Limiter = (*SlidingLimiter)(nil)

// SlidingLimiter is a distributed sliding-log rate limiter backed by Redis.
// Each (customer, scope) pair owns one ZSET serving every configured window
// granularity.
type SlidingLimiter struct {
	client *goredis.Client
	now    func() time.Time
	randID func() int64
}

func NewSlidingLimiter(client *goredis.Client) (*SlidingLimiter, error) {
	return newSlidingLimiter(client, time.Now, rand.Int63)
}

func newSlidingLimiter(client *goredis.Client, nowFn func() time.Time, randFn func() int64) (*SlidingLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if randFn == nil {
		randFn = rand.Int63
	}

	return &SlidingLimiter{
		client: client,
		now:    nowFn,
		randID: randFn,
	}, nil
}

// Check verifies the global windows first, then the per-service windows. The
// request is denied when any configured window is exhausted; RetryAfter is
// the soonest time capacity frees up in the denying scope.
func (l *SlidingLimiter) Check(
	ctx context.Context,
	customerID string,
	service domain.ServiceType,
	limits domain.PlanLimits,
) (ratelimit.Decision, error) {
	if l == nil || l.client == nil {
		return ratelimit.Decision{}, fmt.Errorf("rate limiter is not initialized")
	}
	if strings.TrimSpace(customerID) == "" {
		return ratelimit.Decision{}, fmt.Errorf("customer id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	remaining := int64(-1)

	globalDecision, err := l.checkScope(ctx, l.scopeKey(customerID, ratelimit.ScopeGlobal), limits.Global)
	if err != nil {
		return ratelimit.Decision{}, err
	}
	if !globalDecision.Allowed {
		globalDecision.Scope = ratelimit.ScopeGlobal
		return globalDecision, nil
	}
	if globalDecision.Remaining >= 0 {
		remaining = globalDecision.Remaining
	}

	serviceKey := l.scopeKey(customerID, strings.ToLower(service.String()))
	serviceDecision, err := l.checkScope(ctx, serviceKey, limits.ServiceLimits(service))
	if err != nil {
		return ratelimit.Decision{}, err
	}
	if !serviceDecision.Allowed {
		serviceDecision.Scope = ratelimit.ScopeService
		return serviceDecision, nil
	}
	if serviceDecision.Remaining >= 0 && (remaining < 0 || serviceDecision.Remaining < remaining) {
		remaining = serviceDecision.Remaining
	}

	return ratelimit.Decision{Allowed: true, Remaining: remaining}, nil
}

func (l *SlidingLimiter) checkScope(ctx context.Context, key string, windows []domain.WindowLimit) (ratelimit.Decision, error) {
	if len(windows) == 0 {
		return ratelimit.Decision{Allowed: true, Remaining: -1}, nil
	}

	now := l.now().UTC()
	nowMillis := now.UnixMilli()
	member := fmt.Sprintf("%d-%d", now.UnixNano(), l.randID())

	var maxWindow time.Duration
	for _, w := range windows {
		if w.Window > maxWindow {
			maxWindow = w.Window
		}
	}

	args := make([]any, 0, 3+2*len(windows))
	args = append(args, nowMillis, member, int64(maxWindow.Seconds()))
	for _, w := range windows {
		args = append(args, int64(w.Window.Seconds()), w.Limit)
	}

	values, err := checkScript.Run(ctx, l.client, []string{key}, args...).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}
	if len(values) != 2 {
		return ratelimit.Decision{}, fmt.Errorf("unexpected rate limit script reply: %v", values)
	}

	if values[0] == 1 {
		return ratelimit.Decision{Allowed: true, Remaining: values[1]}, nil
	}

	retryAfter := time.Duration(values[1]) * time.Millisecond
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return ratelimit.Decision{Allowed: false, RetryAfter: retryAfter}, nil
}

func (l *SlidingLimiter) scopeKey(customerID, scope string) string {
	return fmt.Sprintf("ratelimit:%s:%s", customerID, scope)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
