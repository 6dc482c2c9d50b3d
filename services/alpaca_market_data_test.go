package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallBoundedReturnsResult(t *testing.T) {
	value, err := callBounded(context.Background(), func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	wantErr := errors.New("upstream down")
	_, err = callBounded(context.Background(), func() (int, error) {
		return 0, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestCallBoundedHonorsDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	start := time.Now()
	_, err := callBounded(ctx, func() (int, error) {
		<-release
		return 0, nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second, "must not wait for the stalled call")
}

func newChainTestService(serverURL string) *AlpacaMarketDataService {
	service := NewAlpacaMarketDataService("key", "secret")
	service.baseURL = serverURL
	return service
}

func TestFetchChainSnapshotsFollowsPagination(t *testing.T) {
	var requestedTokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedTokens = append(requestedTokens, r.URL.Query().Get("page_token"))
		assert.Equal(t, "2025-04-18", r.URL.Query().Get("expiration_date"))
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page_token") == "" {
			fmt.Fprint(w, `{"snapshots":{"AAPL250418C00150000":{"impliedVolatility":0.3}},"next_page_token":"page-2"}`)
			return
		}
		fmt.Fprint(w, `{"snapshots":{"AAPL250418C00155000":{"impliedVolatility":0.32}},"next_page_token":null}`)
	}))
	defer server.Close()

	service := newChainTestService(server.URL)
	contracts, err := service.fetchChainSnapshots(context.Background(), "AAPL", "2025-04-18")
	require.NoError(t, err)

	assert.Equal(t, []string{"", "page-2"}, requestedTokens)
	require.Len(t, contracts, 2)
	assert.Contains(t, contracts, "AAPL250418C00150000")
	assert.Contains(t, contracts, "AAPL250418C00155000")
}

func TestFetchChainSnapshotsStatusMapping(t *testing.T) {
	status := http.StatusNotFound
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	service := newChainTestService(server.URL)

	_, err := service.fetchChainSnapshots(context.Background(), "AAPL", "")
	var notFound *DataNotFoundError
	assert.ErrorAs(t, err, &notFound)

	status = http.StatusInternalServerError
	_, err = service.fetchChainSnapshots(context.Background(), "AAPL", "")
	var gateway *GatewayError
	assert.ErrorAs(t, err, &gateway)
}
