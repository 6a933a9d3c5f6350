package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewClientLimiter(60, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst used up")
	assert.True(t, l.Allow("10.0.0.2"), "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one token refills per second at 60/min")

	now = now.Add(time.Hour)
	l.Allow("10.0.0.3")
	l.mu.Lock()
	_, kept := l.clients["10.0.0.1"]
	l.mu.Unlock()
	assert.False(t, kept, "idle buckets are swept")
}

func newLimitedRequest(remote, forwarded string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/events/ev-1/registrations", nil)
	req.RemoteAddr = remote
	if forwarded != "" {
		req.Header.Set("X-Forwarded-For", forwarded)
	}
	return req
}

func TestRateLimit(t *testing.T) {
	limiter := NewClientLimiter(1, 1)
	calls := 0
	handler := RateLimit(limiter)(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	rr := httptest.NewRecorder()
	handler(rr, newLimitedRequest("192.0.2.1:5000", ""))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	handler(rr, newLimitedRequest("192.0.2.1:5001", ""))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// Without a trusted proxy a forged header does not buy a new bucket.
	for _, forged := range []string{"203.0.113.9", "203.0.113.10, 198.51.100.7"} {
		rr = httptest.NewRecorder()
		handler(rr, newLimitedRequest("192.0.2.1:5002", forged))
		require.Equal(t, http.StatusTooManyRequests, rr.Code, forged)
	}
	assert.Equal(t, 1, calls)
}

func TestRateLimit_TrustedProxy(t *testing.T) {
	limiter := NewClientLimiter(1, 1).TrustForwardedFor(true)
	calls := 0
	handler := RateLimit(limiter)(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	rr := httptest.NewRecorder()
	handler(rr, newLimitedRequest("10.0.0.5:4000", "203.0.113.9"))
	require.Equal(t, http.StatusCreated, rr.Code)

	// A client prepending its own hop is still keyed by the hop the proxy appended.
	rr = httptest.NewRecorder()
	handler(rr, newLimitedRequest("10.0.0.5:4001", "198.51.100.1, 203.0.113.9"))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	handler(rr, newLimitedRequest("10.0.0.5:4002", "203.0.113.77"))
	require.Equal(t, http.StatusCreated, rr.Code, "another client behind the proxy has its own bucket")

	rr = httptest.NewRecorder()
	handler(rr, newLimitedRequest("10.0.0.6:4003", ""))
	require.Equal(t, http.StatusCreated, rr.Code, "falls back to the connection address")
	assert.Equal(t, 3, calls)
}
