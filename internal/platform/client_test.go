package platform

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobstore/internal/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func platformServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestResolveUserID(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "auth0|abc", r.URL.Query().Get("externalId"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		io.WriteString(w, `[{"id":"u-123","externalId":"auth0|abc"}]`)
	})

	c := NewHTTPClient(ts.URL, "secret", 5*time.Second)
	id, err := c.ResolveUserID(context.Background(), "auth0|abc")
	require.NoError(t, err)
	assert.Equal(t, "u-123", id)
}

func TestResolveUserID_Unknown(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})

	c := NewHTTPClient(ts.URL, "", 5*time.Second)
	_, err := c.ResolveUserID(context.Background(), "nobody")
	assert.ErrorIs(t, err, access.ErrUnknownUser)
}

func TestResolveUserID_ServerError(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c := NewHTTPClient(ts.URL, "", 5*time.Second)
	_, err := c.ResolveUserID(context.Background(), "x")
	assert.ErrorIs(t, err, ErrPlatformQueryError)
}

func TestIsMember(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/projects/7/members/alice":
			w.WriteHeader(http.StatusOK)
		case "/projects/7/members/bob":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	c := NewHTTPClient(ts.URL, "", 5*time.Second)
	ctx := context.Background()

	ok, err := c.IsMember(ctx, "alice", 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsMember(ctx, "bob", 7)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.IsMember(ctx, "carol", 8)
	assert.ErrorIs(t, err, ErrPlatformQueryError)
}

func TestSkillExists(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/skills/s1" {
			io.WriteString(w, `{"id":"s1","name":"Go"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	c := NewHTTPClient(ts.URL, "", 5*time.Second)
	ctx := context.Background()

	ok, err := c.SkillExists(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SkillExists(ctx, "s2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewHTTPClient(url, "", 5*time.Second)
	_, err := c.SkillExists(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrPlatformUnreachable)
}

func TestTimeout(t *testing.T) {
	ts := platformServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	c := NewHTTPClient(ts.URL, "", 50*time.Millisecond)
	_, err := c.SkillExists(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrPlatformTimeout)
}
