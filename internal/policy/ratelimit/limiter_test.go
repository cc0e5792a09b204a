package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitEnforcesDelayPerHost(t *testing.T) {
	t.Parallel()

	l := NewFixedDelay(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://codes.example.gov/a"))
	require.NoError(t, l.Wait(ctx, "https://codes.example.gov/b"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "second request to same host must wait")
}

func TestWaitDifferentHostsDoNotBlock(t *testing.T) {
	t.Parallel()

	l := NewFixedDelay(time.Second)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://a.example.gov/"))
	require.NoError(t, l.Wait(ctx, "https://b.example.gov/"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWaitZeroDelayIsUnlimited(t *testing.T) {
	t.Parallel()

	l := NewFixedDelay(0)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(ctx, "https://codes.example.gov/"))
	}
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := NewFixedDelay(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://codes.example.gov/"))
	err := l.Wait(ctx, "https://codes.example.gov/")
	require.Error(t, err)
}
