package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewTransactionID returns a globally unique transaction id with a coarse
// timestamp prefix for debugging and rough ordering.
func NewTransactionID(now time.Time) string {
	return prefixedID("txn", now)
}

// NewErrorID returns a globally unique error id used to correlate customer
// responses with audit rows and escalation alerts.
func NewErrorID(now time.Time) string {
	return prefixedID("err", now)
}

func prefixedID(prefix string, now time.Time) string {
	stamp := now.UTC().Format("20060102T150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%s_%s", prefix, stamp, suffix)
}
