package postcode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citylistings/listing-service/internal/platform/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger()
}

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/postcodes/SW1A1AA":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"status": 200,
				"result": {
					"postcode": "SW1A 1AA",
					"outcode": "SW1A",
					"incode": "1AA",
					"region": "London",
					"admin_district": "Westminster",
					"longitude": -0.141588,
					"latitude": 51.501009
				}
			}`))
		case "/postcodes/ZZ99ZZ":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":404,"error":"Postcode not found"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())

	t.Run("resolves a valid postcode", func(t *testing.T) {
		result, err := client.Lookup(context.Background(), "sw1a 1aa")
		require.NoError(t, err)
		assert.Equal(t, "SW1A 1AA", result.Postcode)
		assert.Equal(t, "SW1A", result.Outcode)
		assert.Equal(t, "1AA", result.Incode)
		assert.Equal(t, "London", result.Region)
		assert.Equal(t, "Westminster", result.AdminDistrict)
	})

	t.Run("unknown postcode maps to ErrNotFound", func(t *testing.T) {
		_, err := client.Lookup(context.Background(), "ZZ9 9ZZ")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("garbage input is rejected before any network call", func(t *testing.T) {
		_, err := client.Lookup(context.Background(), "not-a-postcode")
		assert.ErrorIs(t, err, ErrInvalidPostcode)
	})
}

func TestRandom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/random/postcodes", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":200,"result":{"postcode":"M1 1AE","outcode":"M1","incode":"1AE","region":null,"admin_district":"Manchester"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())
	result, err := client.Random(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "M1 1AE", result.Postcode)
	assert.Empty(t, result.Region)
	assert.Equal(t, "Manchester", result.AdminDistrict)
}

func TestUpstreamFailures(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>gateway error</html>`))
		}))
		defer server.Close()

		client := NewClient(server.URL, testLogger())
		_, err := client.Random(context.Background())
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("missing result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":200}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, testLogger())
		_, err := client.Random(context.Background())
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("connection refused", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", testLogger())
		_, err := client.Random(context.Background())
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		client := NewClient(server.URL, testLogger())
		client.httpClient.Timeout = 10 * time.Millisecond
		_, err := client.Random(context.Background())
		assert.ErrorIs(t, err, ErrTimeout)
	})
}
