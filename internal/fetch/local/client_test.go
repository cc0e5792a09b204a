package local

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/codecrawler/internal/fetch"
)

func TestLightTierFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>static page</body></html>"))
	}))
	defer srv.Close()

	client := New(Config{UserAgent: "codecrawler-test/0.1"})
	defer client.Close()

	got := client.Fetch(context.Background(), srv.URL, fetch.Options{Tier: fetch.TierLight})
	require.True(t, got.Success, "error: %s", got.Error)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Contains(t, got.Body, "static page")
	assert.Zero(t, got.CostUnits)
}

func TestLightTierFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Config{})
	defer client.Close()

	got := client.Fetch(context.Background(), srv.URL, fetch.Options{Tier: fetch.TierLight})
	require.False(t, got.Success)
	assert.NotEmpty(t, got.Error)
}

func TestBalanceIsUnmetered(t *testing.T) {
	t.Parallel()

	client := New(Config{})
	defer client.Close()

	remaining, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Negative(t, remaining)
}
