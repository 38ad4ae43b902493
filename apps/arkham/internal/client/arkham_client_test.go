package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arkham/apps/arkham/internal/config"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		BaseURL:        baseURL,
		Payload:        "test-payload",
		Timestamp:      "1746752706",
		Session:        "test-session",
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		RequestTimeout: time.Second,
		RequestDelay:   0,
		RateLimitDelay: time.Millisecond,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*ArkhamClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger, _ := zap.NewDevelopment()
	return NewArkhamClient(testConfig(server.URL), logger), server
}

func TestFetchTagPage(t *testing.T) {
	var gotPath, gotPayload string
	var gotCookies []*http.Cookie

	arkhamClient, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotPayload = r.Header.Get("x-payload")
		gotCookies = r.Cookies()
		w.Write([]byte(`{
			"addresses": [
				{"address": "0xabc", "chain": "ethereum", "entityName": "Binance", "entityType": "cex",
				 "tags": [{"id": "binance", "label": "Binance"}]}
			],
			"hasMore": true
		}`))
	})

	page, err := arkhamClient.FetchTagPage(context.Background(), "binance", 2)
	require.NoError(t, err)

	assert.Equal(t, "/tag/top?tag=binance&page=2", gotPath)
	assert.Equal(t, "test-payload", gotPayload)
	require.Len(t, gotCookies, 2)

	assert.True(t, page.HasMore)
	require.Len(t, page.Addresses, 1)
	record := page.Addresses[0]
	assert.Equal(t, "0xabc", record.Address)
	assert.Equal(t, "ethereum", record.Chain)
	assert.Equal(t, "Binance", record.EntityName)
	assert.Equal(t, "cex", record.EntityType)
	require.Len(t, record.Tags, 1)
	assert.Equal(t, "binance", record.Tags[0].ID)
}

func TestFetchTagPageNestedEntity(t *testing.T) {
	arkhamClient, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"addresses": [{"address": "0xabc", "chain": "ethereum", "entity": {"name": "Binance", "type": "cex"}}],
			"hasMore": false
		}`))
	})

	page, err := arkhamClient.FetchTagPage(context.Background(), "binance", 1)
	require.NoError(t, err)
	require.Len(t, page.Addresses, 1)
	assert.Equal(t, "Binance", page.Addresses[0].Entity.Name)
	assert.Equal(t, "cex", page.Addresses[0].Entity.Type)
}

func TestFetchTagPageRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	arkhamClient, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"addresses": [], "hasMore": false}`))
	})

	page, err := arkhamClient.FetchTagPage(context.Background(), "binance", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.False(t, page.HasMore)
}

func TestFetchTagPageRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	arkhamClient, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"addresses": [], "hasMore": false}`))
	})

	_, err := arkhamClient.FetchTagPage(context.Background(), "binance", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestFetchTagPageExhaustsRetries(t *testing.T) {
	attempts := 0
	arkhamClient, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := arkhamClient.FetchTagPage(context.Background(), "binance", 1)
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestFetchTagPageInvalidJSON(t *testing.T) {
	arkhamClient, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{broken`))
	})

	_, err := arkhamClient.FetchTagPage(context.Background(), "binance", 1)
	require.Error(t, err)
}

func TestFetchTagPageCancelledContext(t *testing.T) {
	arkhamClient, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := arkhamClient.FetchTagPage(ctx, "binance", 1)
	require.Error(t, err)
}
