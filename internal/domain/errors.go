package domain

import "github.com/pkg/errors"

// Error taxonomy for resolution outcomes. Every terminal error path surfaces
// one of these sentinels, wrapped with call-site context; callers classify
// with errors.Is.
var (
	// ErrCredentialMissing means no API credential is configured. Checked
	// before any upstream call.
	ErrCredentialMissing = errors.New("api credential missing")

	// ErrQuotaExceeded means the daily upstream call ceiling is reached.
	// Checked before any upstream call.
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrInvalidCredential means the upstream rejected the configured
	// credential. Fatal for the whole session, never cached.
	ErrInvalidCredential = errors.New("invalid api credential")

	// ErrUpstreamTimeout means a single upstream call exceeded its request
	// timeout. Absorbed by the resolver unless it was the last strategy step.
	ErrUpstreamTimeout = errors.New("upstream request timed out")

	// ErrUpstreamUnavailable covers network and response-parse failures.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
