package geoclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

func TestIPClientLocate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"latitude": 38.7223, "longitude": -9.1393, "city": "Lisbon", "country_name": "Portugal"}`)
	}))
	defer server.Close()

	c := NewIPClient(server.URL, time.Second, nil)
	coord, err := c.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 38.7223, coord.Latitude)
	assert.Equal(t, -9.1393, coord.Longitude)
	require.NotNil(t, coord.AccuracyMeters)
}

func TestIPClientBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewIPClient(server.URL, time.Second, nil)
	_, err := c.Locate(context.Background())
	assert.True(t, errors.Is(err, models.ErrNetworkError))
}

func TestIPClientMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{not json`)
	}))
	defer server.Close()

	c := NewIPClient(server.URL, time.Second, nil)
	_, err := c.Locate(context.Background())
	assert.True(t, errors.Is(err, models.ErrParse))
}

func TestIPClientRejectsNullIsland(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"latitude": 0, "longitude": 0}`)
	}))
	defer server.Close()

	c := NewIPClient(server.URL, time.Second, nil)
	_, err := c.Locate(context.Background())
	assert.True(t, errors.Is(err, models.ErrParse))
}

func TestReverseGeocoderPrefersMostLocalArea(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"address": {"suburb": "Shibuya", "city": "Tokyo", "country": "Japan", "country_code": "jp"}}`)
	}))
	defer server.Close()

	g := NewReverseGeocoder(server.URL, time.Second, nil)
	info, err := g.Reverse(context.Background(), models.Coordinate{Latitude: 35.6762, Longitude: 139.6503})
	require.NoError(t, err)
	assert.Equal(t, "Shibuya, Japan", info.DisplayName)
	assert.Equal(t, "JP", info.CountryCode)
	assert.Equal(t, "Japan", info.CountryName)
}

func TestReverseGeocoderFallsBackToCity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"address": {"city": "Lisboa", "country": "Portugal", "country_code": "pt"}}`)
	}))
	defer server.Close()

	g := NewReverseGeocoder(server.URL, time.Second, nil)
	info, err := g.Reverse(context.Background(), models.Coordinate{Latitude: 38.7223, Longitude: -9.1393})
	require.NoError(t, err)
	assert.Equal(t, "Lisboa, Portugal", info.DisplayName)
}

func TestReverseGeocoderCachesResponses(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"address": {"town": "Sintra", "country": "Portugal", "country_code": "pt"}}`)
	}))
	defer server.Close()

	g := NewReverseGeocoder(server.URL, time.Second, nil)
	coord := models.Coordinate{Latitude: 38.8029, Longitude: -9.3817}

	_, err := g.Reverse(context.Background(), coord)
	require.NoError(t, err)
	_, err = g.Reverse(context.Background(), coord)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReverseGeocoderMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	defer server.Close()

	g := NewReverseGeocoder(server.URL, time.Second, nil)
	_, err := g.Reverse(context.Background(), models.Coordinate{Latitude: 1, Longitude: 1})
	assert.True(t, errors.Is(err, models.ErrParse))
}

const overpassBody = `{"elements": [
	{"type": "node", "id": 1, "lat": 35.6764, "lon": 139.6505,
	 "tags": {"name": "Meiji Shrine", "tourism": "attraction"}},
	{"type": "way", "id": 2, "center": {"lat": 35.6790, "lon": 139.6520},
	 "tags": {"name:en": "Yoyogi Park", "leisure": "park"}},
	{"type": "node", "id": 3, "lat": 0, "lon": 0, "tags": {"name": "ghost"}}
]}`

func TestOverpassFetchCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.Form.Get("data"), "around:2000")
		fmt.Fprint(w, overpassBody)
	}))
	defer server.Close()

	c := NewOverpassClient([]string{server.URL}, nil)
	origin := models.Coordinate{Latitude: 35.6762, Longitude: 139.6503}
	places, err := c.FetchCategory(context.Background(), origin, 2000, models.CategoryAttraction)
	require.NoError(t, err)
	// The zero-coordinate element is dropped.
	require.Len(t, places, 2)
	assert.Equal(t, "node/1", places[0].SourceID)
	assert.Equal(t, "Meiji Shrine", places[0].Names["name"])
	assert.Equal(t, "way/2", places[1].SourceID)
	assert.Equal(t, "Yoyogi Park", places[1].Names["name:en"])
	assert.Equal(t, 35.6790, places[1].Latitude)
}

func TestOverpassMirrorFailover(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer bad.Close()

	var goodCalls int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&goodCalls, 1)
		fmt.Fprint(w, overpassBody)
	}))
	defer good.Close()

	c := NewOverpassClient([]string{bad.URL, good.URL}, nil)
	origin := models.Coordinate{Latitude: 35.6762, Longitude: 139.6503}
	places, err := c.FetchCategory(context.Background(), origin, 2000, models.CategoryAttraction)
	require.NoError(t, err)
	assert.Len(t, places, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&goodCalls))
}

func TestOverpassAllMirrorsExhausted(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c := NewOverpassClient([]string{bad.URL, bad.URL}, nil)
	origin := models.Coordinate{Latitude: 35.6762, Longitude: 139.6503}
	_, err := c.FetchCategory(context.Background(), origin, 2000, models.CategoryFood)
	assert.True(t, errors.Is(err, models.ErrNetworkError))
}

func TestTomTomDisabledWithoutKey(t *testing.T) {
	c := NewTomTomClient("http://example.invalid", "", nil)
	assert.False(t, c.Enabled())
	_, err := c.FetchCategory(context.Background(), models.Coordinate{Latitude: 1, Longitude: 1}, 1000, models.CategoryFood)
	assert.True(t, errors.Is(err, models.ErrUnsupported))
}

func TestTomTomFetchCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.NotEmpty(t, r.URL.Query().Get("categorySet"))
		fmt.Fprint(w, `{"results": [
			{"id": "abc", "poi": {"name": "Central Station", "categories": ["railway station"]},
			 "position": {"lat": 35.681, "lon": 139.767}}
		]}`)
	}))
	defer server.Close()

	c := NewTomTomClient(server.URL, "k", nil)
	places, err := c.FetchCategory(context.Background(), models.Coordinate{Latitude: 35.68, Longitude: 139.76}, 1500, models.CategoryTransit)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "tomtom/abc", places[0].SourceID)
	assert.Equal(t, "Central Station", places[0].Names["name"])
}
