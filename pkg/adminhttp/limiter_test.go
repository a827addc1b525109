package adminhttp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsBurstThenRejects(t *testing.T) {
	p := newLimiterPool()
	for i := 0; i < defaultBurst; i++ {
		require.Truef(t, p.Allow("10.0.0.1"), "request %d within burst", i)
	}
	require.False(t, p.Allow("10.0.0.1"), "request past the burst must be limited")
}

func TestLimiterIsPerKey(t *testing.T) {
	p := newLimiterPool()
	for i := 0; i < defaultBurst; i++ {
		p.Allow("10.0.0.1")
	}
	require.False(t, p.Allow("10.0.0.1"))
	require.True(t, p.Allow("10.0.0.2"), "a fresh client gets its own bucket")
}
