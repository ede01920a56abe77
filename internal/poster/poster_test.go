package poster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tmdb(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNew_NoKeyDisables(t *testing.T) {
	c := New(Config{})
	assert.Nil(t, c)
	_, err := c.Lookup(context.Background(), "Up")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestLookup_FirstResultAndCache(t *testing.T) {
	srv, hits := tmdb(t, http.StatusOK, `{"results":[{"poster_path":"/up.jpg"},{"poster_path":"/other.jpg"}]}`)
	c := New(Config{APIKey: "k", BaseURL: srv.URL, CacheTTL: time.Minute})

	u, err := c.Lookup(context.Background(), "Up")
	require.NoError(t, err)
	assert.Equal(t, DefaultImageURL+"/up.jpg", u)

	u, err = c.Lookup(context.Background(), " up ")
	require.NoError(t, err)
	assert.Equal(t, DefaultImageURL+"/up.jpg", u)
	assert.EqualValues(t, 1, hits.Load())
}

func TestLookup_NoPoster(t *testing.T) {
	for _, body := range []string{`{"results":[]}`, `{"results":[{"poster_path":null}]}`, `{}`} {
		srv, _ := tmdb(t, http.StatusOK, body)
		c := New(Config{APIKey: "k", BaseURL: srv.URL})
		u, err := c.Lookup(context.Background(), "Nothing")
		require.NoError(t, err, body)
		assert.Empty(t, u, body)
	}
}

func TestLookup_ErrorsAreNotCached(t *testing.T) {
	srv, hits := tmdb(t, http.StatusUnauthorized, `{"status_message":"Invalid API key"}`)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})

	_, err := c.Lookup(context.Background(), "Up")
	assert.Error(t, err)
	_, err = c.Lookup(context.Background(), "Up")
	assert.Error(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestLookup_BlankTitle(t *testing.T) {
	srv, hits := tmdb(t, http.StatusOK, `{}`)
	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	u, err := c.Lookup(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, u)
	assert.Zero(t, hits.Load())
}
