package postcodes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sitesurvey-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func newTestClient(srv *httptest.Server, opts ...Option) Client {
	base := []Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRateLimit(1000), WithRetryConfig(fastRetry())}
	return NewClient(append(base, opts...)...)
}

func TestLookup_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/postcodes/BB1 1AA", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": 200,
			"result": {
				"postcode": "BB1 1AA",
				"latitude": 53.7486,
				"longitude": -2.4823,
				"admin_district": "Blackburn with Darwen",
				"region": "North West"
			}
		}`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Lookup(context.Background(), " BB1 1AA ")
	require.NoError(t, err)
	assert.Equal(t, "BB1 1AA", res.Postcode)
	assert.InDelta(t, 53.7486, res.Latitude, 1e-6)
	assert.InDelta(t, -2.4823, res.Longitude, 1e-6)
	assert.Equal(t, "Blackburn with Darwen", res.AdminDistrict)
}

func TestLookup_NotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status": 404, "error": "Postcode not found"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Lookup(context.Background(), "ZZ9 9ZZ")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestLookup_NullCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": 200, "result": {"postcode": "GY1 1AA", "latitude": null, "longitude": null}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Lookup(context.Background(), "GY1 1AA")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_Blank(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:0"))
	_, err := c.Lookup(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"status": 200, "result": {"postcode": "SW1A 1AA", "latitude": 51.501, "longitude": -0.141}}`)
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Lookup(context.Background(), "SW1A 1AA")
	require.NoError(t, err)
	assert.InDelta(t, 51.501, res.Latitude, 1e-6)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookup_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Lookup(context.Background(), "SW1A 1AA")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookup_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Lookup(context.Background(), "???")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookup_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Lookup(context.Background(), "SW1A 1AA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestLookup_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		ShouldTrip:       resilience.IsTransient,
	})
	c := newTestClient(srv, WithCircuitBreaker(cb))

	_, err := c.Lookup(context.Background(), "SW1A 1AA")
	require.Error(t, err)
	assert.Equal(t, resilience.CircuitOpen, cb.State())

	before := calls.Load()
	_, err = c.Lookup(context.Background(), "SW1A 1AA")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, calls.Load())
}
