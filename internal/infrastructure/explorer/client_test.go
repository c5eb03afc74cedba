package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_FetchPage(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"hash":"0x1","value":"123456789012345678901234567890","block":123456789012345678}],"next_page_params":{"index":3}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL + "/api/v2/"})
	require.NoError(t, err)

	payload, err := client.FetchPage(context.Background(), "/addresses/0xabc/transactions", url.Values{"items_count": {"50"}, "index": {"3"}})
	require.NoError(t, err)
	require.Equal(t, "/api/v2/addresses/0xabc/transactions", gotPath)
	require.Equal(t, "index=3&items_count=50", gotQuery)

	envelope, ok := payload.(map[string]any)
	require.True(t, ok)
	items := envelope["items"].([]any)
	item := items[0].(map[string]any)
	require.Equal(t, json.Number("123456789012345678"), item["block"], "numbers keep full precision")
	require.Equal(t, "123456789012345678901234567890", item["value"])
}

func TestClient_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)
	_, err = client.FetchPage(context.Background(), "/x", nil)
	require.ErrorContains(t, err, "429")
}

func TestClient_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)
	_, err = client.FetchPage(context.Background(), "/x", nil)
	require.Error(t, err)
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)

	_, err = client.FetchPage(context.Background(), "/x", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.FetchPage(ctx, "/x", nil)
	require.Error(t, err)
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}
