package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/pkg/code"

	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	token     string
	refreshes atomic.Int32
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	return f.token, nil
}

func (f *fakeTokens) ForceRefresh(ctx context.Context) (string, error) {
	f.refreshes.Add(1)
	f.token = "refreshed-token"
	return f.token, nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *fakeTokens, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tokens := &fakeTokens{token: "initial-token"}
	c := NewClient(Options{
		BaseURL:       srv.URL + "/approot",
		ItemsURL:      srv.URL + "/items",
		ProfileURL:    srv.URL + "/me",
		Tokens:        tokens,
		HTTPClient:    srv.Client(),
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		RatePerSecond: 1000,
	})
	return c, tokens, srv
}

func TestListFiltersNoteFiles(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/approot/children", r.URL.Path)
		require.Equal(t, "Bearer initial-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"value":[
			{"id":"i1","name":"a.json","lastModifiedDateTime":"2023-11-14T22:15:00Z"},
			{"id":"i2","name":"photo.png","lastModifiedDateTime":"2023-11-14T22:15:00Z"},
			{"id":"i3","name":"b.json","fileSystemInfo":{"lastModifiedDateTime":"2023-11-14T10:00:00Z"}}
		]}`))
	}))

	summaries, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "i1", summaries[0].RemoteID)
	require.Equal(t, int64(1700000100), summaries[0].ModifiedAt)
	// The stamped filesystem timestamp wins over the upload time.
	require.Equal(t, int64(1699956000), summaries[1].ModifiedAt)
}

func TestRefreshOnceAfterUnauthorized(t *testing.T) {
	var calls atomic.Int32
	c, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer refreshed-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"value":[]}`))
	}))

	_, err := c.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), tokens.refreshes.Load())
	require.Equal(t, int32(2), calls.Load())
}

func TestUnauthorizedAfterRefreshSurfaces(t *testing.T) {
	c, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.List(context.Background())
	require.ErrorIs(t, err, code.ErrUnauthorized)
	require.Equal(t, int32(1), tokens.refreshes.Load())
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"value":[]}`))
	}))

	_, err := c.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhaustedBecomeUnavailable(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.List(context.Background())
	require.ErrorIs(t, err, code.ErrUnavailable)
}

func TestCreateUsesIdempotentName(t *testing.T) {
	var uploadPath, patchPath string
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			uploadPath = r.URL.Path
			w.Write([]byte(`{"id":"item42","name":"n1-1700000000.json"}`))
		case http.MethodPatch:
			patchPath = r.URL.Path
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))

	n := &domain.Note{ID: "n1", Body: "hello", CreatedAt: 1700000000, ModifiedAt: 1700000100}
	remoteID, err := c.Create(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, "item42", remoteID)
	require.True(t, strings.Contains(uploadPath, "n1-1700000000.json"), "path %s", uploadPath)
	require.Equal(t, "/items/item42", patchPath)
}

func TestDeleteMissingItemSucceeds(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	require.NoError(t, c.Delete(context.Background(), "gone"))
}

func TestFetchMissingItemIsUnavailable(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.Fetch(context.Background(), "gone")
	require.ErrorIs(t, err, code.ErrUnavailable)
}

func TestProfileFallsBackToPrincipalName(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"displayName":"Sam","userPrincipalName":"sam@example.com"}`))
	}))

	p, err := c.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Sam", p.Name)
	require.Equal(t, "sam@example.com", p.Email)
}

func TestRetryDelayHonorsRetryAfter(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://x", Tokens: &fakeTokens{}})

	require.Equal(t, 2*time.Second, c.retryDelay(1, "2"))
	require.Equal(t, 30*time.Second, c.retryDelay(1, "300"))
	require.Equal(t, time.Second, c.retryDelay(1, ""))
	require.Equal(t, 2*time.Second, c.retryDelay(2, ""))
	require.Equal(t, 10*time.Second, c.retryDelay(9, ""))
}
