package classify

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/sendbridge/core/internal/provider"
)

// Severity is the normalized impact level of an upstream failure.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) String() string { return string(s) }

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Classified is the normalized view of one provider failure.
type Classified struct {
	ErrorType string
	Message   string
	Severity  Severity
	Retryable bool
}

// CustomerFacing reports whether the normalized message is safe to return to
// the customer verbatim. Only per-recipient faults qualify; provider and
// account level faults are always replaced with a generic message.
func (c Classified) CustomerFacing() bool {
	return c.Severity == SeverityLow || c.Severity == SeverityMedium
}

// Classifier maps heterogeneous provider errors to the normalized taxonomy.
type Classifier interface {
	Classify(providerName string, err error) Classified
}

// rule is one pattern match. Evaluation order is fixed: most specific rules
// come first in each provider's table, the generic fallback is appended last,
// so the same raw error always classifies identically.
type rule struct {
	code       string   // exact provider error code
	statusCode int      // exact HTTP status
	substrings []string // all must appear (case-insensitive) in the raw message
	result     Classified
}

func (r rule) matches(statusCode int, code, message string) bool {
	if r.code != "" && !strings.EqualFold(r.code, code) {
		return false
	}
	if r.statusCode != 0 && r.statusCode != statusCode {
		return false
	}
	for _, fragment := range r.substrings {
		if !strings.Contains(message, fragment) {
			return false
		}
	}
	return true
}

// TableClassifier classifies by per-provider ordered rule tables.
type TableClassifier struct {
	tables map[string][]rule
}

var _ Classifier = (*TableClassifier)(nil)

// NewTableClassifier builds the classifier with the built-in provider tables.
func NewTableClassifier() *TableClassifier {
	return &TableClassifier{tables: builtinTables()}
}

func (c *TableClassifier) Classify(providerName string, err error) Classified {
	if err == nil {
		return Classified{
			ErrorType: "none",
			Message:   "no error",
			Severity:  SeverityLow,
			Retryable: false,
		}
	}

	// Transport-level failures classify the same way for every provider.
	if errors.Is(err, context.DeadlineExceeded) {
		return Classified{
			ErrorType: "timeout",
			Message:   "provider timed out",
			Severity:  SeverityHigh,
			Retryable: true,
		}
	}

	var statusCode int
	var code string
	message := strings.ToLower(err.Error())

	var provErr *provider.Error
	if errors.As(err, &provErr) {
		statusCode = provErr.StatusCode
		code = provErr.Code
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return Classified{
				ErrorType: "network",
				Message:   "provider unreachable",
				Severity:  SeverityHigh,
				Retryable: true,
			}
		}
	}

	for _, r := range c.tables[strings.ToLower(providerName)] {
		if r.matches(statusCode, code, message) {
			return r.result
		}
	}

	for _, r := range genericRules {
		if r.matches(statusCode, code, message) {
			return r.result
		}
	}

	// Unknown provider faults are treated as transient infrastructure issues
	// so the dispatcher can still try a fallback.
	return Classified{
		ErrorType: "unknown_provider_error",
		Message:   "unclassified provider error",
		Severity:  SeverityHigh,
		Retryable: true,
	}
}
