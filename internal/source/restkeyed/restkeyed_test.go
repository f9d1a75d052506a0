package restkeyed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketsnap/internal/errs"
	"marketsnap/internal/httpx"
	"marketsnap/internal/logger"
)

func testClient() *httpx.Client {
	return httpx.New(5 * time.Second)
}

// quoteServer serves /quote-style responses and fails the symbols in
// the fail set with HTTP 500.
func quoteServer(t *testing.T, fail map[string]bool, hits *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		sym := r.URL.Query().Get("symbol")
		if fail[sym] {
			http.Error(w, "upstream unavailable", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"symbol":        sym,
			"name":          sym + " Ltd",
			"price":         1234.5,
			"previousClose": 1200,
		})
	}))
}

func TestNew_MissingCredentialFailsBeforeNetwork(t *testing.T) {
	var hits int64
	srv := quoteServer(t, nil, &hits)
	defer srv.Close()

	_, err := New(Config{
		Endpoint: srv.URL,
		Symbols:  []string{"TCS"},
	}, testClient(), logger.Nop())
	require.Error(t, err)
	require.Equal(t, errs.KindConfiguration, errs.KindOf(err))
	require.Zero(t, atomic.LoadInt64(&hits), "no network call may happen without a credential")
}

func TestNew_RejectsUnknownCredentialPlacement(t *testing.T) {
	_, err := New(Config{
		Endpoint:     "http://example.invalid",
		APIKey:       "k",
		Symbols:      []string{"TCS"},
		CredentialIn: "body",
	}, testClient(), logger.Nop())
	require.Equal(t, errs.KindConfiguration, errs.KindOf(err))
}

func TestFetch_CredentialInQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sekrit", r.URL.Query().Get("apikey"))
		require.Empty(t, r.Header.Get("X-Api-Key"))
		fmt.Fprintf(w, `{"symbol":%q,"price":10}`, r.URL.Query().Get("symbol"))
	}))
	defer srv.Close()

	a, err := New(Config{Endpoint: srv.URL, APIKey: "sekrit", Symbols: []string{"TCS"}}, testClient(), logger.Nop())
	require.NoError(t, err)
	recs, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "TCS", recs[0].Symbol)
}

func TestFetch_CredentialInHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sekrit", r.Header.Get("X-Api-Key"))
		require.Empty(t, r.URL.Query().Get("apikey"))
		fmt.Fprintf(w, `{"symbol":%q,"price":10}`, r.URL.Query().Get("symbol"))
	}))
	defer srv.Close()

	a, err := New(Config{
		Endpoint:     srv.URL,
		APIKey:       "sekrit",
		Symbols:      []string{"TCS"},
		CredentialIn: CredentialInHeader,
	}, testClient(), logger.Nop())
	require.NoError(t, err)
	_, err = a.Fetch(context.Background())
	require.NoError(t, err)
}

func TestFetch_PartialFailureIsolation(t *testing.T) {
	var hits int64
	srv := quoteServer(t, map[string]bool{"FAIL1": true, "FAIL2": true}, &hits)
	defer srv.Close()

	a, err := New(Config{
		Endpoint: srv.URL,
		APIKey:   "k",
		Symbols:  []string{"RELIANCE", "FAIL1", "TCS", "FAIL2", "INFY"},
	}, testClient(), logger.Nop())
	require.NoError(t, err)

	recs, err := a.Fetch(context.Background())
	require.NoError(t, err, "partial success must not fail the batch")
	require.Len(t, recs, 3)
	require.Equal(t, "RELIANCE", recs[0].Symbol)
	require.Equal(t, "TCS", recs[1].Symbol)
	require.Equal(t, "INFY", recs[2].Symbol)
	require.EqualValues(t, 5, atomic.LoadInt64(&hits), "every symbol gets its own attempt")
}

func TestFetch_MalformedBodySkipsSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BROKEN" {
			fmt.Fprint(w, `{"symbol": "BROKEN", "price": `)
			return
		}
		fmt.Fprintf(w, `{"symbol":%q,"price":10}`, r.URL.Query().Get("symbol"))
	}))
	defer srv.Close()

	a, err := New(Config{Endpoint: srv.URL, APIKey: "k", Symbols: []string{"BROKEN", "TCS"}}, testClient(), logger.Nop())
	require.NoError(t, err)

	recs, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "TCS", recs[0].Symbol)
}

func TestFetch_TotalFailureIsEmptyResult(t *testing.T) {
	var hits int64
	srv := quoteServer(t, map[string]bool{"A": true, "B": true}, &hits)
	defer srv.Close()

	a, err := New(Config{Endpoint: srv.URL, APIKey: "k", Symbols: []string{"A", "B"}}, testClient(), logger.Nop())
	require.NoError(t, err)

	_, err = a.Fetch(context.Background())
	require.Error(t, err)
	require.Equal(t, errs.KindEmptyResult, errs.KindOf(err))
}

func TestFetch_TokenBucketPacesRequests(t *testing.T) {
	var hits int64
	srv := quoteServer(t, nil, &hits)
	defer srv.Close()

	// 20 tokens/s with burst 1: the first request spends the initial
	// token, the next two wait ~50ms each for a refill.
	a, err := New(Config{
		Endpoint:   srv.URL,
		APIKey:     "k",
		Symbols:    []string{"A", "B", "C"},
		RatePerSec: 20,
		Burst:      1,
	}, testClient(), logger.Nop())
	require.NoError(t, err)

	start := time.Now()
	recs, err := a.Fetch(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.GreaterOrEqual(t, elapsed, 80*time.Millisecond, "refills must pace the batch")
}

func TestFetch_TokenBucketBurstOutranksMinInterval(t *testing.T) {
	var hits int64
	srv := quoteServer(t, nil, &hits)
	defer srv.Close()

	// A full burst-3 bucket admits the whole batch at once. Were the
	// 400ms fixed gap in effect instead, three requests would need
	// upwards of 800ms.
	a, err := New(Config{
		Endpoint:    srv.URL,
		APIKey:      "k",
		Symbols:     []string{"A", "B", "C"},
		RatePerSec:  1,
		Burst:       3,
		MinInterval: 400 * time.Millisecond,
	}, testClient(), logger.Nop())
	require.NoError(t, err)

	start := time.Now()
	recs, err := a.Fetch(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Less(t, elapsed, 500*time.Millisecond, "token bucket takes precedence over the fixed gap")
}

func TestFetch_BoundedWorkerPoolKeepsOrderAndAccounting(t *testing.T) {
	var hits int64
	srv := quoteServer(t, map[string]bool{"FAIL": true}, &hits)
	defer srv.Close()

	a, err := New(Config{
		Endpoint:       srv.URL,
		APIKey:         "k",
		Symbols:        []string{"E", "D", "FAIL", "B", "A"},
		MaxConcurrency: 3,
	}, testClient(), logger.Nop())
	require.NoError(t, err)

	recs, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 4)
	// Output follows request order regardless of completion order.
	require.Equal(t, "E", recs[0].Symbol)
	require.Equal(t, "D", recs[1].Symbol)
	require.Equal(t, "B", recs[2].Symbol)
	require.Equal(t, "A", recs[3].Symbol)
}
