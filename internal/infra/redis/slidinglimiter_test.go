package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sendbridge/core/internal/domain"
	"github.com/sendbridge/core/internal/ratelimit"
)

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}

func newTestLimiter(t *testing.T, now *time.Time) *SlidingLimiter {
	t.Helper()

	seq := int64(0)
	limiter, err := newSlidingLimiter(
		newTestRedisClient(t),
		func() time.Time { return *now },
		func() int64 { seq++; return seq },
	)
	if err != nil {
		t.Fatalf("newSlidingLimiter() error = %v", err)
	}
	return limiter
}

func minuteLimits(limit int64) domain.PlanLimits {
	return domain.PlanLimits{
		Global: []domain.WindowLimit{{Window: time.Minute, Limit: limit}},
	}
}

func TestSlidingLimiterDeniesOverLimit(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	limiter := newTestLimiter(t, &now)
	limits := minuteLimits(3)

	for i := 0; i < 3; i++ {
		decision, err := limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
		if err != nil {
			t.Fatalf("Check() #%d error = %v", i+1, err)
		}
		if !decision.Allowed {
			t.Fatalf("request #%d should be allowed", i+1)
		}
	}

	decision, err := limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("request over the limit should be denied")
	}
	if decision.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v, want > 0", decision.RetryAfter)
	}
	if decision.Scope != ratelimit.ScopeGlobal {
		t.Fatalf("scope = %q, want global", decision.Scope)
	}
}

func TestSlidingLimiterWindowSlides(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_100, 0)
	limiter := newTestLimiter(t, &now)
	limits := minuteLimits(1)

	decision, err := limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
	if err != nil || !decision.Allowed {
		t.Fatalf("first request: allowed=%v err=%v, want allowed", decision.Allowed, err)
	}

	decision, err = limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("second request inside the window should be denied")
	}

	now = now.Add(61 * time.Second)
	decision, err = limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !decision.Allowed {
		t.Fatal("request after the window slid past should be allowed")
	}
}

func TestSlidingLimiterPerServiceScope(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_200, 0)
	limiter := newTestLimiter(t, &now)
	limits := domain.PlanLimits{
		Global: []domain.WindowLimit{{Window: time.Minute, Limit: 100}},
		PerService: map[domain.ServiceType][]domain.WindowLimit{
			domain.ServiceSMS: {{Window: time.Minute, Limit: 1}},
		},
	}

	decision, err := limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
	if err != nil || !decision.Allowed {
		t.Fatalf("first sms: allowed=%v err=%v, want allowed", decision.Allowed, err)
	}

	decision, err = limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("second sms should be denied by the service scope")
	}
	if decision.Scope != ratelimit.ScopeService {
		t.Fatalf("scope = %q, want service", decision.Scope)
	}

	decision, err = limiter.Check(context.Background(), "cust-1", domain.ServiceEmail, limits)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !decision.Allowed {
		t.Fatal("email should be unaffected by the sms service counter")
	}
}

func TestSlidingLimiterMultipleWindows(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_300, 0)
	limiter := newTestLimiter(t, &now)
	limits := domain.PlanLimits{
		Global: []domain.WindowLimit{
			{Window: time.Minute, Limit: 10},
			{Window: time.Hour, Limit: 2},
		},
	}

	for i := 0; i < 2; i++ {
		decision, err := limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
		if err != nil || !decision.Allowed {
			t.Fatalf("request #%d: allowed=%v err=%v, want allowed", i+1, decision.Allowed, err)
		}
		now = now.Add(2 * time.Minute)
	}

	// Minute window has headroom but the hour window is exhausted.
	decision, err := limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decision.Allowed {
		t.Fatal("request should be denied by the hourly window")
	}
}

func TestSlidingLimiterRemainingTracksTightestWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_400, 0)
	limiter := newTestLimiter(t, &now)
	limits := minuteLimits(5)

	decision, err := limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, limits)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if decision.Remaining != 4 {
		t.Fatalf("remaining = %d, want 4 after the first of 5", decision.Remaining)
	}
}

func TestSlidingLimiterNoConfiguredWindowsAllows(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_500, 0)
	limiter := newTestLimiter(t, &now)

	decision, err := limiter.Check(context.Background(), "cust-1", domain.ServiceSMS, domain.PlanLimits{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !decision.Allowed {
		t.Fatal("a plan without windows must not be limited")
	}
	if decision.Remaining != -1 {
		t.Fatalf("remaining = %d, want -1 for unlimited", decision.Remaining)
	}
}
