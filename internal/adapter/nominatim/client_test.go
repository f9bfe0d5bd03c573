package nominatim

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

	"github.com/couchcryptid/place-planner/internal/domain"
	"github.com/couchcryptid/place-planner/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(baseURL, "planner-test/1.0", 5*time.Second, observability.NewMetricsForTesting(), testLogger())
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func requireUpstream(t *testing.T, err error) *domain.UpstreamError {
	t.Helper()
	var ue *domain.UpstreamError
	require.True(t, errors.As(err, &ue), "expected *domain.UpstreamError, got %T: %v", err, err)
	return ue
}

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Paris", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("key"))
		assert.Equal(t, "planner-test/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "en", r.Header.Get("Accept-Language"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[{"lat":"48.8588897","lon":"2.3200410","display_name":"Paris, Île-de-France, France"}]`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.Search(context.Background(), "Paris")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 48.8588897, got[0].Lat, 1e-9)
	assert.InDelta(t, 2.3200410, got[0].Lon, 1e-9)
	assert.Equal(t, "Paris, Île-de-France, France", got[0].DisplayName)
	assert.Equal(t, "nominatim", c.Name())
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("nominatim", "success")), 0)
}

func TestClient_Search_Empty(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `[]`))
	defer srv.Close()

	got, err := testClient(srv.URL).Search(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClient_Search_RateLimited(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(status, `{"error":"slow down"}`))
			defer srv.Close()

			_, err := testClient(srv.URL).Search(context.Background(), "Paris")
			ue := requireUpstream(t, err)
			assert.Equal(t, domain.ClassRateLimited, ue.Class)
			assert.Equal(t, status, ue.StatusCode)
			assert.Equal(t, "nominatim", ue.Provider)
		})
	}
}

func TestClient_Search_ServerErrorIsHard(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusInternalServerError, `boom`))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), "Paris")
	ue := requireUpstream(t, err)
	assert.Equal(t, domain.ClassHard, ue.Class)
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_Search_MalformedJSONIsHard(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `{not json`))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), "Paris")
	ue := requireUpstream(t, err)
	assert.Equal(t, domain.ClassHard, ue.Class)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Search_BadCoordinateIsHard(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `[{"lat":"north","lon":"2.3"}]`))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), "Paris")
	ue := requireUpstream(t, err)
	assert.Equal(t, domain.ClassHard, ue.Class)
}

func TestClient_Search_TimeoutIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 50*time.Millisecond, observability.NewMetricsForTesting(), testLogger())
	_, err := c.Search(context.Background(), "Paris")
	ue := requireUpstream(t, err)
	assert.Equal(t, domain.ClassConnectivity, ue.Class)
	assert.True(t, ue.Class.Transient())
}

func TestClient_Search_ConnectionRefusedIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `[]`))
	url := srv.URL
	srv.Close()

	_, err := testClient(url).Search(context.Background(), "Paris")
	ue := requireUpstream(t, err)
	assert.Equal(t, domain.ClassConnectivity, ue.Class)
	assert.Zero(t, ue.StatusCode)
}

func TestClient_Search_DefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, observability.NewMetricsForTesting(), testLogger())
	_, err := c.Search(context.Background(), "x")
	require.NoError(t, err)
}

func TestClient_Search_RateLimiterHonoursContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, observability.NewMetricsForTesting(), testLogger(), WithRateLimit(0.001))
	_, err := c.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "second")
	ue := requireUpstream(t, err)
	assert.Equal(t, domain.ClassConnectivity, ue.Class)
	assert.Equal(t, int32(1), calls.Load(), "paced request must not reach the server")
}

func TestLocationIQClient_SendsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "Lima", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"lat":"-12.0621065","lon":"-77.0365256","display_name":"Lima, Peru"}]`))
	}))
	defer srv.Close()

	c := NewLocationIQClient(srv.URL, "secret", "", time.Second, observability.NewMetricsForTesting(), testLogger())
	got, err := c.Search(context.Background(), "Lima")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "locationiq", c.Name())
	assert.Equal(t, domain.LocationRecord{Lat: -12.0621065, Lon: -77.0365256, DisplayName: "Lima, Peru"}, got[0].Record())
}

func TestLocationIQClient_NotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusNotFound, `{"error":"Unable to geocode"}`))
	defer srv.Close()

	c := NewLocationIQClient(srv.URL, "secret", "", time.Second, observability.NewMetricsForTesting(), testLogger())
	got, err := c.Search(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_Search_NominatimNotFoundIsHard(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusNotFound, `nope`))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), "Paris")
	ue := requireUpstream(t, err)
	assert.Equal(t, domain.ClassHard, ue.Class)
}
