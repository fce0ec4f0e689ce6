package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sendbridge/core/internal/idempotency"
	"go.uber.org/zap"
)

const (
	recordTTL       = 24 * time.Hour
	lockTTL         = 30 * time.Second
	conflictRecheck = time.Second
)

var _ idempotency.Manager = (*IdempotencyManager)(nil)

// IdempotencyManager implements request deduplication on Redis: a stored
// record per finished key (24h TTL) and a SETNX lock per in-flight key (30s
// TTL).
type IdempotencyManager struct {
	client    *goredis.Client
	failOpen  bool
	logger    *zap.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	onDegrade func()
}

func NewIdempotencyManager(client *goredis.Client, failOpen bool, logger *zap.Logger) (*IdempotencyManager, error) {
	return newIdempotencyManager(client, failOpen, logger, time.Now, sleepWithContext)
}

func newIdempotencyManager(
	client *goredis.Client,
	failOpen bool,
	logger *zap.Logger,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*IdempotencyManager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &IdempotencyManager{
		client:   client,
		failOpen: failOpen,
		logger:   logger,
		now:      nowFn,
		sleep:    sleepFn,
	}, nil
}

// SetDegradeHook registers a callback fired whenever the cache is unreachable
// and the fail-open path applies. Used to feed metrics.
func (m *IdempotencyManager) SetDegradeHook(fn func()) {
	if m == nil {
		return
	}
	m.onDegrade = fn
}

func (m *IdempotencyManager) Begin(ctx context.Context, customerID, service, key string) (idempotency.Decision, error) {
	if strings.TrimSpace(key) == "" {
		return idempotency.Decision{Outcome: idempotency.OutcomeProceed}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	recordKey := m.recordKey(customerID, service, key)
	lockKey := m.lockKey(customerID, service, key)

	if record, found, err := m.loadRecord(ctx, recordKey); err != nil {
		return m.degrade(err)
	} else if found {
		return idempotency.Decision{Outcome: idempotency.OutcomeReplay, Record: record}, nil
	}

	holder := strconv.FormatInt(m.now().UnixNano(), 10)
	acquired, err := m.client.SetNX(ctx, lockKey, holder, lockTTL).Result()
	if err != nil {
		return m.degrade(err)
	}
	if acquired {
		return idempotency.Decision{Outcome: idempotency.OutcomeProceed}, nil
	}

	// Another attempt holds the lock. Wait once, then re-check whether it
	// finished and stored a record; never proceed past an active lock.
	if err := m.sleep(ctx, conflictRecheck); err != nil {
		return idempotency.Decision{}, err
	}

	if record, found, err := m.loadRecord(ctx, recordKey); err != nil {
		return m.degrade(err)
	} else if found {
		return idempotency.Decision{Outcome: idempotency.OutcomeReplay, Record: record}, nil
	}

	return idempotency.Decision{Outcome: idempotency.OutcomeConflict}, nil
}

func (m *IdempotencyManager) Complete(ctx context.Context, customerID, service, key string, record idempotency.Record) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if record.StoredAt.IsZero() {
		record.StoredAt = m.now().UTC()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	if err := m.client.Set(ctx, m.recordKey(customerID, service, key), payload, recordTTL).Err(); err != nil {
		// The dispatch already reached a terminal state; losing the record
		// only costs replay protection for this key.
		m.logger.Warn("failed to store idempotency record",
			zap.String("service", service),
			zap.Error(err),
		)
		return nil
	}

	if err := m.client.Del(ctx, m.lockKey(customerID, service, key)).Err(); err != nil {
		m.logger.Warn("failed to release idempotency lock after store",
			zap.String("service", service),
			zap.Error(err),
		)
	}

	return nil
}

func (m *IdempotencyManager) Release(ctx context.Context, customerID, service, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := m.client.Del(ctx, m.lockKey(customerID, service, key)).Err(); err != nil {
		m.logger.Warn("failed to release idempotency lock",
			zap.String("service", service),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (m *IdempotencyManager) loadRecord(ctx context.Context, recordKey string) (*idempotency.Record, bool, error) {
	raw, err := m.client.Get(ctx, recordKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var record idempotency.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("corrupt idempotency record: %w", err)
	}
	return &record, true, nil
}

// degrade applies the configured cache-outage policy: proceed (fail-open) or
// surface the error (fail-closed). Either way the outage is logged.
func (m *IdempotencyManager) degrade(cause error) (idempotency.Decision, error) {
	m.logger.Warn("idempotency cache unavailable",
		zap.Bool("failOpen", m.failOpen),
		zap.Error(cause),
	)
	if m.onDegrade != nil {
		m.onDegrade()
	}

	if m.failOpen {
		return idempotency.Decision{Outcome: idempotency.OutcomeProceed, Degraded: true}, nil
	}
	return idempotency.Decision{}, fmt.Errorf("idempotency cache unavailable: %w", cause)
}

func (m *IdempotencyManager) recordKey(customerID, service, key string) string {
	return fmt.Sprintf("idem:record:%s:%s:%s", customerID, strings.ToLower(service), key)
}

func (m *IdempotencyManager) lockKey(customerID, service, key string) string {
	return fmt.Sprintf("idem:lock:%s:%s:%s", customerID, strings.ToLower(service), key)
}
