package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Guard = Guard{AllowHTTP: true, AllowPrivate: true}
	cfg.Retry = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	return cfg
}

func TestFetcher_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/turtle", r.Header.Get("Accept"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/turtle; charset=utf-8")
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Write([]byte("<http://ex.org/a> <http://ex.org/b> <http://ex.org/c> ."))
	}))
	defer server.Close()

	f := New(testConfig())
	resp, err := f.Get(context.Background(), server.URL, "text/turtle")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"v1"`, resp.ETag)
	assert.Equal(t, "text/turtle; charset=utf-8", resp.ContentType)
	assert.Equal(t, 2006, resp.LastModified.Year())
	assert.Contains(t, string(resp.Body), "http://ex.org/a")
}

func TestFetcher_NotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte("body"))
	}))
	defer server.Close()

	f := New(testConfig())
	resp, err := f.Do(context.Background(), Request{URL: server.URL, ETag: `"v1"`})
	require.NoError(t, err)
	assert.True(t, resp.NotModified())
	assert.Empty(t, resp.Body)
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := New(testConfig())
	resp, err := f.Get(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetcher_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := New(testConfig())
	_, err := f.Get(context.Background(), server.URL, "")
	require.Error(t, err)

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusNotFound, serr.Code)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetcher_ContentTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxContentSize = 10
	f := New(cfg)
	_, err := f.Get(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetcher_BlockedByGuard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Guard = Guard{AllowHTTP: true}
	f := New(cfg, WithMetrics(metric.NewMetricsRegistry()))
	_, err := f.Get(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlockedURL)
}

func TestFetcher_RedirectCap(t *testing.T) {
	var hits atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, server.URL+"/next", http.StatusFound)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRedirects = 2
	cfg.Retry.MaxAttempts = 1
	f := New(cfg)
	_, err := f.Get(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many redirects")
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcher_PostBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ASK {}", r.PostForm.Get("query"))
		w.Write([]byte("true"))
	}))
	defer server.Close()

	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	f := New(testConfig())
	resp, err := f.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    server.URL,
		Header: h,
		Body:   []byte("query=ASK+%7B%7D"),
	})
	require.NoError(t, err)
	assert.Equal(t, "true", string(resp.Body))
}
