package classify

// Built-in rule tables. Per provider, most specific first; genericRules run
// after the provider table and cover the signals shared by every upstream.

func builtinTables() map[string][]rule {
	return map[string][]rule{
		"savanna": {
			{code: "SAV-401", result: Classified{
				ErrorType: "auth_revoked",
				Message:   "savanna credentials rejected",
				Severity:  SeverityCritical,
				Retryable: false,
			}},
			{code: "SAV-102", result: Classified{
				ErrorType: "account_balance_exhausted",
				Message:   "savanna account balance exhausted",
				Severity:  SeverityCritical,
				Retryable: false,
			}},
			{substrings: []string{"userdata", "blacklist"}, result: Classified{
				ErrorType: "recipient_opted_out",
				Message:   "recipient has opted out of messages",
				Severity:  SeverityLow,
				Retryable: false,
			}},
			{substrings: []string{"invalid phone"}, result: Classified{
				ErrorType: "invalid_destination",
				Message:   "destination number is invalid",
				Severity:  SeverityMedium,
				Retryable: false,
			}},
			{substrings: []string{"unsupported network"}, result: Classified{
				ErrorType: "unsupported_destination",
				Message:   "destination network is not supported",
				Severity:  SeverityMedium,
				Retryable: false,
			}},
			{substrings: []string{"queue full"}, result: Classified{
				ErrorType: "provider_overloaded",
				Message:   "savanna queue overflow",
				Severity:  SeverityHigh,
				Retryable: true,
			}},
		},
		"nexora": {
			{statusCode: 402, result: Classified{
				ErrorType: "account_balance_exhausted",
				Message:   "nexora account credit exhausted",
				Severity:  SeverityCritical,
				Retryable: false,
			}},
			{substrings: []string{"suspended"}, result: Classified{
				ErrorType: "account_suspended",
				Message:   "nexora account suspended",
				Severity:  SeverityCritical,
				Retryable: false,
			}},
			{substrings: []string{"stop list"}, result: Classified{
				ErrorType: "recipient_opted_out",
				Message:   "recipient has opted out of messages",
				Severity:  SeverityLow,
				Retryable: false,
			}},
			{substrings: []string{"unroutable"}, result: Classified{
				ErrorType: "unsupported_destination",
				Message:   "destination is unroutable",
				Severity:  SeverityMedium,
				Retryable: false,
			}},
		},
		"mailbridge": {
			{substrings: []string{"hard bounce"}, result: Classified{
				ErrorType: "invalid_destination",
				Message:   "email address hard-bounced",
				Severity:  SeverityMedium,
				Retryable: false,
			}},
			{substrings: []string{"unsubscribed"}, result: Classified{
				ErrorType: "recipient_opted_out",
				Message:   "recipient has unsubscribed",
				Severity:  SeverityLow,
				Retryable: false,
			}},
			{substrings: []string{"domain not verified"}, result: Classified{
				ErrorType: "auth_revoked",
				Message:   "mailbridge sending domain is not verified",
				Severity:  SeverityCritical,
				Retryable: false,
			}},
		},
		"topupgo": {
			{code: "TG-INSUFFICIENT-FLOAT", result: Classified{
				ErrorType: "account_balance_exhausted",
				Message:   "topupgo float balance exhausted",
				Severity:  SeverityCritical,
				Retryable: false,
			}},
			{substrings: []string{"invalid msisdn"}, result: Classified{
				ErrorType: "invalid_destination",
				Message:   "destination number is invalid",
				Severity:  SeverityMedium,
				Retryable: false,
			}},
			{substrings: []string{"carrier unavailable"}, result: Classified{
				ErrorType: "provider_overloaded",
				Message:   "carrier temporarily unavailable",
				Severity:  SeverityHigh,
				Retryable: true,
			}},
		},
		"airtouch": {
			{substrings: []string{"float"}, result: Classified{
				ErrorType: "account_balance_exhausted",
				Message:   "airtouch float balance exhausted",
				Severity:  SeverityCritical,
				Retryable: false,
			}},
			{substrings: []string{"invalid recipient"}, result: Classified{
				ErrorType: "invalid_destination",
				Message:   "destination number is invalid",
				Severity:  SeverityMedium,
				Retryable: false,
			}},
		},
	}
}

// genericRules cover signals every upstream shares: auth failures, rate
// limits, and 5xx-class outages.
var genericRules = []rule{
	{statusCode: 401, result: Classified{
		ErrorType: "auth_revoked",
		Message:   "provider credentials rejected",
		Severity:  SeverityCritical,
		Retryable: false,
	}},
	{statusCode: 403, result: Classified{
		ErrorType: "auth_revoked",
		Message:   "provider access forbidden",
		Severity:  SeverityCritical,
		Retryable: false,
	}},
	{statusCode: 429, result: Classified{
		ErrorType: "provider_rate_limited",
		Message:   "provider rate limit hit",
		Severity:  SeverityHigh,
		Retryable: true,
	}},
	{substrings: []string{"insufficient balance"}, result: Classified{
		ErrorType: "account_balance_exhausted",
		Message:   "provider account balance exhausted",
		Severity:  SeverityCritical,
		Retryable: false,
	}},
	{substrings: []string{"timeout"}, result: Classified{
		ErrorType: "timeout",
		Message:   "provider timed out",
		Severity:  SeverityHigh,
		Retryable: true,
	}},
	{statusCode: 500, result: Classified{
		ErrorType: "provider_internal_error",
		Message:   "provider internal error",
		Severity:  SeverityHigh,
		Retryable: true,
	}},
	{statusCode: 502, result: Classified{
		ErrorType: "provider_internal_error",
		Message:   "provider gateway error",
		Severity:  SeverityHigh,
		Retryable: true,
	}},
	{statusCode: 503, result: Classified{
		ErrorType: "provider_unavailable",
		Message:   "provider unavailable",
		Severity:  SeverityHigh,
		Retryable: true,
	}},
	{statusCode: 504, result: Classified{
		ErrorType: "timeout",
		Message:   "provider gateway timeout",
		Severity:  SeverityHigh,
		Retryable: true,
	}},
}
