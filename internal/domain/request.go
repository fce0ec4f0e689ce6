package domain

import (
	"fmt"
	"strings"
)

// Payload limits per service.
const (
	MaxSMSContent     = 1530 // hard cap well past multi-segment territory
	MaxEmailSubject   = 255
	MaxEmailContent   = 100000
	MinAirtimeCents   = 50
	MaxAirtimeCents   = 10_000_00
	maxDestinationLen = 255
)

// DispatchRequest is one customer-initiated send.
type DispatchRequest struct {
	Service        ServiceType
	Destination    string // E.164 number or email address
	Message        string // SMS/email body
	Subject        string // email only
	SenderID       string // optional registered sender/alphanumeric id
	AmountCents    int64  // airtime only
	BundleCode     string // data bundles only
	CallbackURL    string // optional customer webhook
	IdempotencyKey string
}

func (r *DispatchRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: request is required", ErrValidation)
	}
	if !r.Service.IsValid() {
		return fmt.Errorf("%w: invalid service %q", ErrValidation, r.Service)
	}

	r.Destination = strings.TrimSpace(r.Destination)
	if r.Destination == "" {
		return fmt.Errorf("%w: destination is required", ErrValidation)
	}
	if len(r.Destination) > maxDestinationLen {
		return fmt.Errorf("%w: destination exceeds %d characters", ErrValidation, maxDestinationLen)
	}

	switch r.Service {
	case ServiceSMS:
		if !IsE164(r.Destination) {
			return fmt.Errorf("%w: destination must be an E.164 phone number", ErrValidation)
		}
		if strings.TrimSpace(r.Message) == "" {
			return fmt.Errorf("%w: message is required", ErrValidation)
		}
		if n := len([]rune(r.Message)); n > MaxSMSContent {
			return fmt.Errorf("%w: SMS message exceeds %d characters (got %d)", ErrValidation, MaxSMSContent, n)
		}
	case ServiceEmail:
		if !isEmailAddress(r.Destination) {
			return fmt.Errorf("%w: destination must be an email address", ErrValidation)
		}
		if strings.TrimSpace(r.Message) == "" {
			return fmt.Errorf("%w: message is required", ErrValidation)
		}
		if n := len([]rune(r.Subject)); n > MaxEmailSubject {
			return fmt.Errorf("%w: email subject exceeds %d characters (got %d)", ErrValidation, MaxEmailSubject, n)
		}
		if n := len([]rune(r.Message)); n > MaxEmailContent {
			return fmt.Errorf("%w: email body exceeds %d characters (got %d)", ErrValidation, MaxEmailContent, n)
		}
	case ServiceAirtime:
		if !IsE164(r.Destination) {
			return fmt.Errorf("%w: destination must be an E.164 phone number", ErrValidation)
		}
		if r.AmountCents < MinAirtimeCents || r.AmountCents > MaxAirtimeCents {
			return fmt.Errorf("%w: airtime amount must be between %d and %d cents", ErrValidation, MinAirtimeCents, MaxAirtimeCents)
		}
	case ServiceData:
		if !IsE164(r.Destination) {
			return fmt.Errorf("%w: destination must be an E.164 phone number", ErrValidation)
		}
		if strings.TrimSpace(r.BundleCode) == "" {
			return fmt.Errorf("%w: bundle code is required", ErrValidation)
		}
	}

	return nil
}

// IsE164 reports whether s is a plausible E.164 number: leading +,
// a non-zero first digit, 8 to 15 digits total.
func IsE164(s string) bool {
	if len(s) < 9 || len(s) > 16 || s[0] != '+' {
		return false
	}
	digits := s[1:]
	if digits[0] == '0' {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

func isEmailAddress(s string) bool {
	at := strings.IndexByte(s, '@')
	if at < 1 || at == len(s)-1 {
		return false
	}
	host := s[at+1:]
	if strings.IndexByte(host, '.') < 1 || strings.HasSuffix(host, ".") {
		return false
	}
	return !strings.ContainsAny(s, " \t\r\n")
}
