package domain

import (
	"fmt"
	"strings"
)

// ServiceType identifies the outbound communication service.
type ServiceType string

const (
	ServiceSMS     ServiceType = "SMS"
	ServiceEmail   ServiceType = "EMAIL"
	ServiceAirtime ServiceType = "AIRTIME"
	ServiceData    ServiceType = "DATA"
)

func (s ServiceType) String() string { return string(s) }

func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceSMS, ServiceEmail, ServiceAirtime, ServiceData:
		return true
	}
	return false
}

func ParseServiceFromString(s string) (ServiceType, error) {
	st := ServiceType(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid service %q", ErrValidation, s)
	}
	return st, nil
}

// AllServices lists every dispatchable service type.
func AllServices() []ServiceType {
	return []ServiceType{ServiceSMS, ServiceEmail, ServiceAirtime, ServiceData}
}

// DispatchStatus is the lifecycle state of a single dispatch attempt.
type DispatchStatus string

const (
	StatusValidating  DispatchStatus = "VALIDATING"
	StatusDeduped     DispatchStatus = "DEDUPED"
	StatusRateLimited DispatchStatus = "RATE_LIMITED"
	StatusPricing     DispatchStatus = "PRICING"
	StatusSending     DispatchStatus = "SENDING"
	StatusFailedOver  DispatchStatus = "FAILED_OVER"
	StatusSent        DispatchStatus = "SENT"
	StatusFailed      DispatchStatus = "FAILED"
)

func (s DispatchStatus) String() string { return string(s) }

func (s DispatchStatus) IsTerminal() bool {
	switch s {
	case StatusSent, StatusFailed, StatusDeduped, StatusRateLimited:
		return true
	}
	return false
}
