package renderapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/codecrawler/internal/fetch"
)

func TestFetchFullTierPassesRenderParams(t *testing.T) {
	t.Parallel()

	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Spb-Cost", "5")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>rendered</html>"))
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL, APIKey: "key"}, nil)
	require.NoError(t, err)

	got := client.Fetch(context.Background(), "https://codes.example.gov/toc", fetch.Options{
		Tier: fetch.TierFull,
		Wait: 3 * time.Second,
	})
	require.True(t, got.Success)
	assert.Equal(t, "<html>rendered</html>", got.Body)
	assert.Equal(t, 5, got.CostUnits)
	assert.Equal(t, "true", gotQuery["render_js"][0])
	assert.Equal(t, "3000", gotQuery["wait"][0])
	assert.Equal(t, "https://codes.example.gov/toc", gotQuery["url"][0])
	assert.Equal(t, "us", gotQuery["country_code"][0])
}

func TestFetchLightTierSkipsRender(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("render_js"))
		assert.Empty(t, r.URL.Query().Get("wait"))
		_, _ = w.Write([]byte("plain"))
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL, APIKey: "key"}, nil)
	require.NoError(t, err)

	got := client.Fetch(context.Background(), "https://example.com", fetch.Options{Tier: fetch.TierLight})
	require.True(t, got.Success)
	// no cost header: default applies
	assert.Equal(t, 1, got.CostUnits)
}

func TestFetchNon2xxIsTaggedFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream blocked"))
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL, APIKey: "key"}, nil)
	require.NoError(t, err)

	got := client.Fetch(context.Background(), "https://example.com", fetch.Options{Tier: fetch.TierFull})
	require.False(t, got.Success)
	assert.Equal(t, http.StatusServiceUnavailable, got.StatusCode)
	assert.Contains(t, got.Error, "503")
	assert.Contains(t, got.Error, "upstream blocked")
}

func TestBalance(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"credits_remaining": 420}`))
	}))
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL, UsageEndpoint: srv.URL + "/usage", APIKey: "key"}, nil)
	require.NoError(t, err)

	remaining, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 420, remaining)
}

func TestBalanceUnmeteredWithoutUsageEndpoint(t *testing.T) {
	t.Parallel()

	client, err := New(Config{Endpoint: "https://render.example.com", APIKey: "key"}, nil)
	require.NoError(t, err)

	remaining, err := client.Balance(context.Background())
	require.NoError(t, err)
	assert.Negative(t, remaining)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{APIKey: "key"}, nil)
	require.Error(t, err)
	_, err = New(Config{Endpoint: "https://render.example.com"}, nil)
	require.Error(t, err)
}
