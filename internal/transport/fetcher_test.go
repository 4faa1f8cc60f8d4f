package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/internal/auth"
	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/pkg/clock"
	"github.com/developkariyer/IWApim/pkg/pacing"
)

func newTestFetcher(t *testing.T, srv *httptest.Server, clk *clock.Fake, policy pacing.Policy) *Fetcher {
	t.Helper()
	return New(Config{
		Marketplace: "test",
		BaseURL:     srv.URL,
		Pacer:       pacing.New(policy, clk),
		Client:      srv.Client(),
		Auth:        auth.NewBearerAuth("secret"),
		UserAgent:   "iwapim-test",
	})
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "iwapim-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	clk := clock.NewFake(time.Now())
	f := newTestFetcher(t, srv, clk, pacing.Policy{BackoffStep: time.Second})

	var out struct{ OK bool }
	err := f.JSON(context.Background(), Request{Operation: "products", Path: "/products", Query: url.Values{"page": {"2"}}}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clk.Sleeps())
	assert.Equal(t, 2, f.Pacer().Failures())
}

func TestFetcher_ClientErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{name: "not found is data", status: http.StatusNotFound, target: core.ErrData},
		{name: "bad request is data", status: http.StatusBadRequest, target: core.ErrData},
		{name: "unauthorized is auth", status: http.StatusUnauthorized, target: core.ErrAuth},
		{name: "forbidden is auth", status: http.StatusForbidden, target: core.ErrAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			clk := clock.NewFake(time.Now())
			_, err := newTestFetcher(t, srv, clk, pacing.Policy{}).Do(context.Background(), Request{Path: "/x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, int32(1), calls.Load())
			assert.Empty(t, clk.Sleeps())
		})
	}
}

func TestFetcher_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	clk := clock.NewFake(time.Now())
	f := newTestFetcher(t, srv, clk, pacing.Policy{MaxRetries: 2, BackoffStep: time.Second, MaxBackoff: 10 * time.Second})
	_, err := f.Do(context.Background(), Request{Path: "/orders"})

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRateLimit)
	assert.True(t, core.IsFatal(err))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clk.Sleeps())
}

func TestFetcher_AbsoluteAndAnonymous(t *testing.T) {
	doc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte("a\tb\n"))
	}))
	defer doc.Close()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("base url must not be used, got %s", r.URL)
	}))
	defer api.Close()

	f := newTestFetcher(t, api, clock.NewFake(time.Now()), pacing.Policy{})
	resp, err := f.Do(context.Background(), Request{Path: doc.URL + "/report.tsv", Anonymous: true, Accept: "*/*"})
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n", string(resp.Body))
}

func TestFetcher_DecodeErrorIsData(t *testing.T) {
	resp := &Response{StatusCode: 200, Body: []byte("<html>")}
	var v map[string]interface{}
	assert.ErrorIs(t, resp.Decode(&v), core.ErrData)
}
