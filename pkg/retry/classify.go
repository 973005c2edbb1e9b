// Package retry decides whether and when a failed payment attempt may
// be re-issued: a classifier over processor error codes, an
// exponential-backoff policy with jitter, and a per-payment
// coordinator tracking attempt history.
package retry

// terminalCodes are permanent declines that will never succeed on
// retry. The set spans machine-style codes and the free-text refusal
// phrases some processors return verbatim. authentication_required is
// deliberately absent: a 3-D Secure challenge can still complete.
var terminalCodes = map[string]struct{}{
	"card_declined":               {},
	"insufficient_funds":          {},
	"expired_card":                {},
	"incorrect_cvc":               {},
	"invalid_cvc":                 {},
	"invalid_number":              {},
	"incorrect_number":            {},
	"invalid_expiry_month":        {},
	"invalid_expiry_year":         {},
	"stolen_card":                 {},
	"lost_card":                   {},
	"pickup_card":                 {},
	"restricted_card":             {},
	"fraudulent":                  {},
	"duplicate_transaction":       {},
	"do_not_honor":                {},
	"card_not_supported":          {},
	"currency_not_supported":      {},
	"revocation_of_authorization": {},
	"Refused":                     {},
	"Blocked Card":                {},
	"Expired Card":                {},
	"Invalid Card Number":         {},
	"Fraud":                       {},
	"Stolen Card":                 {},
	"Restricted Card":             {},
	"Declined Non Generic":        {},
}

// retryableCodes are transient failures that are safe to retry with
// backoff. idempotency_error is deliberately absent: replaying the
// same request cannot fix a key collision.
var retryableCodes = map[string]struct{}{
	"processing_error":     {},
	"rate_limit":           {},
	"api_connection_error": {},
	"api_error":            {},
	"timeout":              {},
	"lock_timeout":         {},
	"try_again_later":      {},
	"issuer_unavailable":   {},
	"Acquirer Error":       {},
	"Issuer Unavailable":   {},
}

// IsTerminalError reports whether code names a permanent decline.
// Empty and unrecognized codes are not terminal.
func IsTerminalError(code string) bool {
	if code == "" {
		return false
	}
	_, terminal := terminalCodes[code]
	return terminal
}

// IsRetryableError reports whether code names a known transient
// failure. Empty and unrecognized codes are not retryable; the two
// catalogues are independent, not complements, and an unclassified
// code still defaults to retry-permitted via Policy.ShouldRetry.
func IsRetryableError(code string) bool {
	if code == "" {
		return false
	}
	_, retryable := retryableCodes[code]
	return retryable
}
