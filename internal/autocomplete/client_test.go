package autocomplete

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLookupSendsQueryAndDecodesArray(t *testing.T) {
	var gotQuery, gotExtra string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotExtra = r.URL.Query().Get("lang")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"Москва","admin1":"Москва","country":"Россия","country_code":"RU","latitude":55.75,"longitude":37.62}]`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/search-field/?lang=ru")
	require.NoError(t, err)

	records, err := c.Lookup(context.Background(), "  Моск ")
	require.NoError(t, err)

	assert.Equal(t, "Моск", gotQuery)
	assert.Equal(t, "ru", gotExtra)
	require.Len(t, records, 1)
	assert.Equal(t, "Москва", records[0].Name)
	require.NotNil(t, records[0].Latitude)
	assert.InDelta(t, 55.75, *records[0].Latitude, 1e-9)
}

func TestClientLookupNon2xxIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "Paris")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote), "expected *RemoteError, got %v", err)
	assert.Equal(t, http.StatusInternalServerError, remote.StatusCode)
}

func TestClientLookupMalformedBodyIsDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "Paris")
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr), "expected *DecodeError, got %v", err)
	assert.Equal(t, "response", decodeErr.Source)
}

func TestClientLookupBlankQuerySkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	records, err := c.Lookup(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Zero(t, hits.Load())
}

func TestNewClientRejectsNonHTTPEndpoint(t *testing.T) {
	_, err := NewClient("ftp://example.com/search")
	assert.Error(t, err)
}
