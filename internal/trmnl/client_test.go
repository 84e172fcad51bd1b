package trmnl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://localhost"})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "ftp://localhost", APIKey: "k"})
	assert.Error(t, err)

	c, err := NewClient(Config{BaseURL: "http://localhost/", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, c.userAgent)
}

func TestFetchDirective_SendsHeaders(t *testing.T) {
	var gotPath, gotToken, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("access-token")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"status":0}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret", UserAgent: "byod-test"})
	require.NoError(t, err)

	resp, err := c.FetchDirective(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/display", gotPath)
	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "byod-test", gotUA)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":0}`, string(resp.Body))
}

func TestFetchDirective_NonOKStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":500,"error":"maintenance"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	resp, err := c.FetchDirective(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestFetchDirective_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url, APIKey: "k"})
	require.NoError(t, err)

	_, err = c.FetchDirective(context.Background())
	assert.Error(t, err)
}

func TestFetchImage_ResolvesRelativeURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/images/a.bmp" {
			w.Write([]byte("BMDATA"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	data, err := c.FetchImage(context.Background(), "/images/a.bmp")
	require.NoError(t, err)
	assert.Equal(t, "BMDATA", string(data))

	data, err = c.FetchImage(context.Background(), srv.URL+"/images/a.bmp")
	require.NoError(t, err)
	assert.Equal(t, "BMDATA", string(data))
}
