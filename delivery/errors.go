package delivery

import "errors"

var (
	// ErrNotReady means the probe answered but the surface cannot take input yet.
	ErrNotReady = errors.New("destination surface not ready")

	// ErrProbeTimeout means the probe did not answer within ProbeTimeout.
	ErrProbeTimeout = errors.New("readiness probe timed out")

	// ErrChannel wraps persist or navigate failures.
	ErrChannel = errors.New("consumer channel failure")

	// ErrRetriesExhausted is logged when a pending delivery is dropped.
	ErrRetriesExhausted = errors.New("delivery retries exhausted")

	// ErrUnroutable means the target cannot be mapped to a destination route.
	ErrUnroutable = errors.New("target is not routable")
)

// reasonLabel maps an attempt failure to a short label for logs and metrics.
func reasonLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProbeTimeout):
		return "probe_timeout"
	case errors.Is(err, ErrChannel):
		return "channel_error"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	default:
		return "probe_error"
	}
}
