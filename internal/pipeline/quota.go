package pipeline

import (
	"errors"
	"fmt"
	"sync"
)

// QuotaEnforcer caps the number of jobs one pipeline accepts.
//
// It is checked on every Submit, before the job takes a seq, so a
// rejected submission leaves no trace in the clock or the store.
type QuotaEnforcer struct {
	mu      sync.Mutex
	maxJobs int
	current int
}

// NewQuotaEnforcer creates a quota allowing maxJobs submissions.
// A limit of zero or less disables the quota.
func NewQuotaEnforcer(maxJobs int) *QuotaEnforcer {
	return &QuotaEnforcer{maxJobs: maxJobs}
}

// Check counts one submission and fails once the limit is passed.
// A rejected submission is not counted.
func (q *QuotaEnforcer) Check(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxJobs > 0 && q.current >= q.maxJobs {
		return &QuotaExceededError{
			JobID: jobID,
			Jobs:  q.current + 1,
			Limit: q.maxJobs,
		}
	}
	q.current++
	return nil
}

// Current returns the number of accepted submissions.
func (q *QuotaEnforcer) Current() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}

// MaxJobs returns the limit.
func (q *QuotaEnforcer) MaxJobs() int {
	return q.maxJobs
}

// QuotaExceededError is returned by Submit when the pipeline has accepted
// its maximum number of jobs.
type QuotaExceededError struct {
	JobID string
	Jobs  int
	Limit int
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("job %s exceeded max jobs quota: %d jobs > %d limit",
		e.JobID, e.Jobs, e.Limit)
}

// IsQuotaExceededError reports whether err wraps a QuotaExceededError.
func IsQuotaExceededError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
