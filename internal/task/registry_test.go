package task

import (
	"testing"
	"time"

	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	_, err := r.Lookup(domain.JobTypeAnalysis)
	assert.ErrorIs(t, err, ErrUnknownJobType)

	require.NoError(t, r.Register(domain.JobTypeAnalysis, Handler{
		Work:    succeed(`1`),
		Options: RunOptions{Timeout: time.Minute},
	}))
	h, err := r.Lookup(domain.JobTypeAnalysis)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultMaxRetries, h.Options.MaxRetries)
	assert.Equal(t, time.Minute, h.Options.Timeout)

	assert.ErrorIs(t, r.Register("thumbnail", Handler{Work: succeed(`1`)}), domain.ErrInvalidJobType)
	assert.Error(t, r.Register(domain.JobTypeNameRepair, Handler{}))
}
