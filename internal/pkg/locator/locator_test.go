package locator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getFunc(path string) RequestFunc {
	return func(ctx context.Context, base string) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	}
}

// closedURL returns the address of a server that is no longer listening.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestDo_FirstCandidateAnswers(t *testing.T) {
	var directHits int32
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer registry.Close()
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&directHits, 1)
	}))
	defer direct.Close()

	loc := New(http.DefaultClient, Service{Name: "catalog", Candidates: []string{registry.URL, direct.URL}})

	resp, err := loc.Do(context.Background(), "catalog", getFunc("/item/1"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&directHits))
}

func TestDo_ApplicationErrorDoesNotFallBack(t *testing.T) {
	var directHits int32
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer registry.Close()
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&directHits, 1)
	}))
	defer direct.Close()

	loc := New(http.DefaultClient, Service{Name: "catalog", Candidates: []string{registry.URL, direct.URL}})

	resp, err := loc.Do(context.Background(), "catalog", getFunc("/item/1"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, atomic.LoadInt32(&directHits))
}

func TestDo_FallsBackOnConnectionRefused(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer direct.Close()

	loc := New(http.DefaultClient, Service{Name: "catalog", Candidates: []string{closedURL(t), direct.URL}})

	resp, err := loc.Do(context.Background(), "catalog", getFunc("/item/1"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestDo_FallsBackWhenRegistryTimesOut(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer direct.Close()

	client := NewHTTPClient(time.Second, 50*time.Millisecond)
	loc := New(client, Service{Name: "reviews", Candidates: []string{slow.URL, direct.URL}})

	resp, err := loc.Do(context.Background(), "reviews", getFunc("/rating/7"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDo_AllCandidatesFail(t *testing.T) {
	loc := New(http.DefaultClient, Service{Name: "identity", Candidates: []string{closedURL(t), closedURL(t)}})

	_, err := loc.Do(context.Background(), "identity", getFunc("/user/1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))

	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "identity", unavailable.Service)
	assert.Len(t, unavailable.Tried, 2)
	assert.Contains(t, err.Error(), "identity")
}

func TestDo_CancelledContextStops(t *testing.T) {
	var directHits int32
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&directHits, 1)
	}))
	defer direct.Close()

	loc := New(http.DefaultClient, Service{Name: "catalog", Candidates: []string{closedURL(t), direct.URL}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loc.Do(ctx, "catalog", getFunc("/item/1"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&directHits))
}

func TestResolve(t *testing.T) {
	loc := New(http.DefaultClient,
		Service{Name: "library", Candidates: []string{"http://library/ ", "", "http://127.0.0.1:8085/"}},
		Service{Name: "empty"},
	)

	cands, err := loc.Resolve("library")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://library", "http://127.0.0.1:8085"}, cands)

	cands[0] = "mutated"
	again, _ := loc.Resolve("library")
	assert.Equal(t, "http://library", again[0])

	_, err = loc.Resolve("empty")
	assert.ErrorIs(t, err, ErrUnknownService)
	_, err = loc.Resolve("missing")
	assert.ErrorIs(t, err, ErrUnknownService)
}
