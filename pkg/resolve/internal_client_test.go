package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInternalClientResolve(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Query().Get("raw") {
		case "991130":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"uuid":"` + convUUID + `"}`))
		case "missing":
			w.WriteHeader(http.StatusNotFound)
		case "forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewInternalClient(srv.URL, "shh", time.Second)

	u, err := c.Resolve(context.Background(), "991130")
	require.NoError(t, err)
	require.Equal(t, convUUID, u)
	require.Equal(t, "Bearer shh", gotAuth)

	u, err = c.Resolve(context.Background(), "missing")
	require.NoError(t, err)
	require.Empty(t, u, "404 is an authoritative miss, not an error")

	_, err = c.Resolve(context.Background(), "forbidden")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.True(t, isTerminal(err))

	_, err = c.Resolve(context.Background(), "flaky")
	require.Error(t, err)
	require.False(t, isTerminal(err), "5xx stays retryable")
}

func TestInternalClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewInternalClient(srv.URL, "", 20*time.Millisecond)
	_, err := c.Resolve(context.Background(), "991130")
	require.Error(t, err)
	require.False(t, isTerminal(err))
}

func TestInternalClientConfigured(t *testing.T) {
	require.False(t, NewInternalClient("", "", 0).Configured())
	require.False(t, (*InternalClient)(nil).Configured())
	require.True(t, NewInternalClient("http://resolver.internal", "", 0).Configured())
}
