package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/fixcampus/go-identity"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	within, err := identity.IsWithinThresholdPeriod(recent, "24h")
	require.NoError(t, err)
	assert.True(t, within)

	stale := time.Now().Add(-48 * time.Hour)
	within, err = identity.IsWithinThresholdPeriod(stale, "24h")
	require.NoError(t, err)
	assert.False(t, within)

	_, err = identity.IsWithinThresholdPeriod(time.Now(), "not-a-duration")
	require.Error(t, err)
}

func TestIsOutsideThresholdPeriod(t *testing.T) {
	stale := time.Now().Add(-48 * time.Hour)
	outside, err := identity.IsOutsideThresholdPeriod(stale, "24h")
	require.NoError(t, err)
	assert.True(t, outside)

	outside, err = identity.IsOutsideThresholdPeriod(time.Now(), "24h")
	require.NoError(t, err)
	assert.False(t, outside)
}
