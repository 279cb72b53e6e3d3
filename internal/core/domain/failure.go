package domain

// FailureKind identifies the class of failure injected into a downstream call.
type FailureKind string

const (
	// ServiceUnavailable simulates a 503 from the downstream service.
	ServiceUnavailable FailureKind = "service_unavailable"
	// RateLimited simulates a 429 quota rejection.
	RateLimited FailureKind = "rate_limited"
	// Timeout simulates a request that exceeds its deadline.
	Timeout FailureKind = "timeout"
	// Malformed simulates a 400 permanent error. Not retryable.
	Malformed FailureKind = "malformed"
)

// FailureKinds lists every kind in a fixed order. Weighted selection iterates
// this slice, never a map, so draws stay deterministic for a given seed.
var FailureKinds = []FailureKind{
	ServiceUnavailable,
	RateLimited,
	Timeout,
	Malformed,
}

// StatusCode returns the HTTP-ish status code a real downstream would produce.
func (k FailureKind) StatusCode() int {
	switch k {
	case ServiceUnavailable:
		return 503
	case RateLimited:
		return 429
	case Timeout:
		return 504
	case Malformed:
		return 400
	default:
		return 500
	}
}

// Retryable reports whether a caller may reasonably retry this failure.
func (k FailureKind) Retryable() bool {
	return k != Malformed
}

// Valid reports whether k is a known failure kind.
func (k FailureKind) Valid() bool {
	for _, known := range FailureKinds {
		if k == known {
			return true
		}
	}
	return false
}
