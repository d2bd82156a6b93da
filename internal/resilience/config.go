package resilience

import "time"

// ConflictRetry builds the policy used around tenant-scoped upserts:
// one first try plus retries further attempts, retrying whatever
// isConflict accepts as well as transient faults.
func ConflictRetry(retries int, isConflict func(error) bool) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 1 + max(retries, 0)
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 250 * time.Millisecond
	cfg.ShouldRetry = func(err error) bool {
		return (isConflict != nil && isConflict(err)) || IsTransient(err)
	}
	return cfg
}
