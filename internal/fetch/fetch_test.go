package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"P3Recon/internal/errs"
)

func newTestGate(server *httptest.Server, policy SourcePolicy) *Gate {
	return NewGate(server.Client(), map[string]SourcePolicy{"test-source": policy}, nil)
}

func TestFetchCachesWithinFreshnessWindow(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	gate := newTestGate(server, SourcePolicy{FreshFor: time.Hour})
	ctx := context.Background()

	first, err := gate.Fetch(ctx, "test-source", server.URL+"/feed?q=depot")
	require.NoError(t, err)
	second, err := gate.Fetch(ctx, "test-source", server.URL+"/feed?q=depot")
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load(), "second fetch must be served from cache")
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
}

func TestFetchNormalizesQueryOrder(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	gate := newTestGate(server, SourcePolicy{FreshFor: time.Hour})
	ctx := context.Background()

	_, err := gate.Fetch(ctx, "test-source", server.URL+"/feed?a=1&b=2")
	require.NoError(t, err)
	_, err = gate.Fetch(ctx, "test-source", server.URL+"/feed?b=2&a=1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load(), "param order must not change the fingerprint")
}

func TestFetchSingleFlight(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte("slow"))
	}))
	defer server.Close()

	gate := newTestGate(server, SourcePolicy{FreshFor: time.Hour})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := gate.Fetch(ctx, "test-source", server.URL+"/feed")
			assert.NoError(t, err)
			assert.Equal(t, []byte("slow"), res.Body)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), hits.Load(), "concurrent callers must share one in-flight request")
}

func TestFetchFailureIsDegradedAndCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	gate := newTestGate(server, SourcePolicy{FreshFor: time.Hour})
	ctx := context.Background()

	res, err := gate.Fetch(ctx, "test-source", server.URL+"/feed")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindSourceUnavailable))
	assert.True(t, res.Failed)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)

	res, err = gate.Fetch(ctx, "test-source", server.URL+"/feed")
	require.Error(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, int64(1), hits.Load(), "failures must be cached, not re-fetched immediately")
}

func TestFetchTransportErrorIsDegraded(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	gate := NewGate(nil, nil, nil)
	res, err := gate.Fetch(context.Background(), "test-source", url)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindSourceUnavailable))
	assert.True(t, res.Failed)
	assert.NotEmpty(t, res.FailureReason)
}

func TestFetchHonorsCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	gate := newTestGate(server, SourcePolicy{FreshFor: time.Hour, Politeness: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	// First fetch consumes the limiter burst; the second would wait an
	// hour, so cancellation must release it.
	_, err := gate.Fetch(ctx, "test-source", server.URL+"/a")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := gate.Fetch(ctx, "test-source", server.URL+"/b")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not observe cancellation")
	}
}
