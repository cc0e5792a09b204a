package fetch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	results []Result
	calls   []Options
	balance int
	hasBal  bool
}

func (c *scriptedClient) Fetch(_ context.Context, _ string, opts Options) Result {
	c.calls = append(c.calls, opts)
	if len(c.results) == 0 {
		return Result{Success: false, Error: "script exhausted"}
	}
	r := c.results[0]
	c.results = c.results[1:]
	return r
}

func (c *scriptedClient) Balance(_ context.Context) (int, error) {
	if !c.hasBal {
		return -1, nil
	}
	return c.balance, nil
}

func testConfig() Config {
	return Config{MaxAttempts: 3, BackoffBase: time.Millisecond, MinViableLength: 500}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{results: []Result{
		{Success: false, Error: "timeout"},
		{Success: true, Body: "<html>ok</html>", StatusCode: 200, CostUnits: 1},
	}}
	f := New(client, testConfig(), nil)

	got := f.Fetch(context.Background(), "https://example.com", Options{Tier: TierLight})
	require.True(t, got.Success)
	assert.Equal(t, 200, got.StatusCode)
	assert.Len(t, client.calls, 2)
}

func TestFetchExhaustsAttempts(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{results: []Result{
		{Success: false, Error: "503"},
		{Success: false, Error: "503"},
		{Success: false, Error: "connection reset"},
	}}
	f := New(client, testConfig(), nil)

	got := f.Fetch(context.Background(), "https://example.com", Options{Tier: TierFull})
	require.False(t, got.Success)
	assert.Len(t, client.calls, 3)
	assert.Contains(t, got.Error, "failed after 3 attempts")
	assert.Contains(t, got.Error, "connection reset")
}

func TestSmartKeepsViableLightResult(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("a", 600)
	client := &scriptedClient{results: []Result{
		{Success: true, Body: body, StatusCode: 200, CostUnits: 1},
	}}
	f := New(client, testConfig(), nil)

	got := f.Smart(context.Background(), "https://example.com", Options{})
	require.True(t, got.Success)
	assert.Equal(t, body, got.Body)
	require.Len(t, client.calls, 1)
	assert.Equal(t, TierLight, client.calls[0].Tier)
}

func TestSmartEscalatesShortLightResult(t *testing.T) {
	t.Parallel()

	rendered := strings.Repeat("b", 2000)
	client := &scriptedClient{results: []Result{
		{Success: true, Body: "stub", StatusCode: 200, CostUnits: 1},
		{Success: true, Body: rendered, StatusCode: 200, CostUnits: 5},
	}}
	f := New(client, testConfig(), nil)

	got := f.Smart(context.Background(), "https://example.com", Options{})
	require.True(t, got.Success)
	assert.Equal(t, rendered, got.Body)
	// exactly one light probe plus one full-tier fetch
	require.Len(t, client.calls, 2)
	assert.Equal(t, TierLight, client.calls[0].Tier)
	assert.Equal(t, TierFull, client.calls[1].Tier)
	assert.Equal(t, 6, got.CostUnits)
}

func TestSmartFallsBackToLightWhenFullFails(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{results: []Result{
		{Success: true, Body: "short but present", StatusCode: 200, CostUnits: 1},
		{Success: false, Error: "render timeout"},
		{Success: false, Error: "render timeout"},
		{Success: false, Error: "render timeout"},
	}}
	f := New(client, testConfig(), nil)

	got := f.Smart(context.Background(), "https://example.com", Options{})
	require.True(t, got.Success)
	assert.Equal(t, "short but present", got.Body)
}

func TestCheckBalance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		balance   int
		hasBal    bool
		estimated int
		want      bool
	}{
		{name: "unmetered backend proceeds", hasBal: false, estimated: 50, want: true},
		{name: "sufficient balance", hasBal: true, balance: 100, estimated: 50, want: true},
		{name: "insufficient balance aborts", hasBal: true, balance: 10, estimated: 50, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := &scriptedClient{balance: tc.balance, hasBal: tc.hasBal}
			f := New(client, testConfig(), nil)
			assert.Equal(t, tc.want, f.CheckBalance(context.Background(), tc.estimated))
		})
	}
}
