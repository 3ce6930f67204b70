package drive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

type staticToken string

func (t staticToken) Token() (string, error) {
	return string(t), nil
}

type failingToken struct{}

func (failingToken) Token() (string, error) {
	return "", errors.New("token error")
}

func newTestHTTPClient(url string) *httpClient {
	c := newHTTPClient(url, url, http.DefaultClient, staticToken("test-token"), slog.Default())
	c.sleepFunc = noopSleep

	return c
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	client := newTestHTTPClient(srv.URL)
	resp, err := client.do(context.Background(), http.MethodGet, srv.URL, "/files", nil, "")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"value":"ok"}`, string(body))
}

func TestDo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"bad request", http.StatusBadRequest, ErrBadRequest},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrForbidden},
		{"not found", http.StatusNotFound, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"something"}`))
			}))
			defer srv.Close()

			client := newTestHTTPClient(srv.URL)
			_, err := client.do(context.Background(), http.MethodGet, srv.URL, "/files", nil, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestDo_RetryOn5xx(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	client := newTestHTTPClient(srv.URL)
	resp, err := client.do(context.Background(), http.MethodGet, srv.URL, "/files", nil, "")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_RetryOn429RespectsRetryAfter(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestHTTPClient(srv.URL)
	resp, err := client.do(context.Background(), http.MethodGet, srv.URL, "/files", nil, "")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_ExhaustsRetriesOnPersistent5xx(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestHTTPClient(srv.URL)
	_, err := client.do(context.Background(), http.MethodGet, srv.URL, "/files", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestDo_TokenErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newHTTPClient(srv.URL, srv.URL, http.DefaultClient, failingToken{}, slog.Default())
	client.sleepFunc = noopSleep

	_, err := client.do(context.Background(), http.MethodGet, srv.URL, "/files", nil, "")
	require.Error(t, err)
}

func TestDo_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestHTTPClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.do(ctx, http.MethodGet, srv.URL, "/files", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(http.StatusTooManyRequests))
	assert.True(t, isRetryable(http.StatusServiceUnavailable))
	assert.True(t, isRetryable(http.StatusBadGateway))
	assert.False(t, isRetryable(http.StatusBadRequest))
	assert.False(t, isRetryable(http.StatusNotFound))
}

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, classifyStatus(http.StatusUnauthorized), ErrUnauthorized)
	assert.ErrorIs(t, classifyStatus(http.StatusInternalServerError), ErrServerError)
	assert.NoError(t, classifyStatus(http.StatusOK))
}
