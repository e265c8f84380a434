package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/types"
)

func noWait(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	t.Helper()
	opts = append([]BaseClientOption{WithWaitFunc(noWait)}, opts...)
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-breaker", policy, "Courier-Test/1.0", opts...)
}

func newRequest(t *testing.T, ctx context.Context, url string, body string) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, rd)
	require.NoError(t, err)
	return req
}

func TestDo_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, DefaultRetryPolicy())
	resp, err := client.Do(newRequest(t, context.Background(), server.URL, ""))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"status":"ok"}`, string(body))
}

func TestDo_InjectsTraceIDAndUserAgent(t *testing.T) {
	var gotTrace, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get("X-B3-TraceId")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx := types.WithRequestID(context.Background(), "req-42")
	resp, err := newTestClient(t, DefaultRetryPolicy()).Do(newRequest(t, ctx, server.URL, ""))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-42", gotTrace)
	assert.Equal(t, "Courier-Test/1.0", gotUA)
}

func TestDo_RetriesOn500AndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	var lastBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody = string(b)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, RetryPolicy{MaxRetries: 3, MinWait: time.Millisecond, MaxWait: time.Millisecond})
	resp, err := client.Do(newRequest(t, context.Background(), server.URL, `{"to":"+15550001"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, `{"to":"+15550001"}`, lastBody)
}

func TestDo_DoesNotRetry4xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	resp, err := newTestClient(t, DefaultRetryPolicy()).Do(newRequest(t, context.Background(), server.URL, ""))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ExhaustedRetries(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		opts     []BaseClientOption
		wantCode types.ErrorCode
	}{
		{name: "5xx default code", status: http.StatusBadGateway, wantCode: types.ErrCodeUpstreamUnavailable},
		{name: "5xx client code", status: http.StatusInternalServerError, opts: []BaseClientOption{WithUpstreamCode(types.ErrCodeUpstreamSMSGateway)}, wantCode: types.ErrCodeUpstreamSMSGateway},
		{name: "429", status: http.StatusTooManyRequests, wantCode: types.ErrCodeUpstreamRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(t, RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: time.Millisecond}, tt.opts...)
			_, err := client.Do(newRequest(t, context.Background(), server.URL, ""))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.CodeOf(err))
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestDo_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "trip-fast",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	client := NewBaseClientWithBreaker(&http.Client{}, breaker, RetryPolicy{MaxRetries: 0}, "", WithWaitFunc(noWait))

	for i := 0; i < 2; i++ {
		_, err := client.Do(newRequest(t, context.Background(), server.URL, ""))
		require.Error(t, err)
	}
	_, err := client.Do(newRequest(t, context.Background(), server.URL, ""))
	require.Error(t, err)

	assert.Equal(t, types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestDo_StopsWhenWaitIsCancelled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cancelled := func(context.Context, time.Duration) error { return context.Canceled }
	client := newTestClient(t, RetryPolicy{MaxRetries: 5, MinWait: time.Millisecond, MaxWait: time.Millisecond}, WithWaitFunc(cancelled))

	_, err := client.Do(newRequest(t, context.Background(), server.URL, ""))
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, types.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestComputeBackoff_RetryAfter(t *testing.T) {
	client := newTestClient(t, RetryPolicy{MaxRetries: 1, MinWait: 100 * time.Millisecond, MaxWait: 3 * time.Second})

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"2"}}}
	assert.Equal(t, 2*time.Second, client.computeBackoff(0, resp))

	resp.Header.Set("Retry-After", "60")
	assert.Equal(t, 3*time.Second, client.computeBackoff(0, resp), "clamped to MaxWait")

	got := client.computeBackoff(3, nil)
	assert.GreaterOrEqual(t, got, 100*time.Millisecond)
	assert.LessOrEqual(t, got, 3*time.Second)
}
