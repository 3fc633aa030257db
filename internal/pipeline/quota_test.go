package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(3)

	for i := 0; i < 3; i++ {
		assert.NoError(t, q.Check(fmt.Sprintf("job-%d", i)))
	}
	assert.Equal(t, 3, q.Current())
	assert.Equal(t, 3, q.MaxJobs())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(1)
	require.NoError(t, q.Check("job-1"))

	err := q.Check("job-2")
	require.Error(t, err)

	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "job-2", qe.JobID)
	assert.Equal(t, 2, qe.Jobs)
	assert.Equal(t, 1, qe.Limit)
	assert.Equal(t, 1, q.Current(), "rejected submission not counted")
	assert.Equal(t, "job job-2 exceeded max jobs quota: 2 jobs > 1 limit", err.Error())
}

func TestQuotaEnforcer_Unlimited(t *testing.T) {
	q := NewQuotaEnforcer(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Check("job"))
	}
}

func TestIsQuotaExceededError(t *testing.T) {
	err := fmt.Errorf("submit: %w", &QuotaExceededError{JobID: "j", Jobs: 2, Limit: 1})
	assert.True(t, IsQuotaExceededError(err))
	assert.False(t, IsQuotaExceededError(fmt.Errorf("other")))
}
