package orbitsync

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed means the client-credentials exchange (or a
	// refresh after 401) failed. Fatal to the calling run; not retried here.
	ErrAuthenticationFailed = errors.New("orbit: authentication failed")

	// ErrRateLimitExceeded means the API kept answering 429 after the bounded
	// backoff-and-retry budget was spent.
	ErrRateLimitExceeded = errors.New("orbit: rate limit exceeded")

	// ErrSyncAlreadyRunning is returned by the tracker when a running row
	// already exists for the same (tenant, entity).
	ErrSyncAlreadyRunning = errors.New("orbit: a sync is already running for this entity")
)

// APIError is any non-2xx Orbit response other than 401/429.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orbit api error %d: %s", e.Status, e.Body)
}
