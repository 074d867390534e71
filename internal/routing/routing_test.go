package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string, retries int) *Client {
	return NewClient(Config{URL: url, Timeout: time.Second, Retries: retries, Backoff: time.Millisecond}, discardLogger())
}

func TestRouteSendsPayload(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"path": [4, 9, 12]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 0).Route(context.Background(), Request{StartID: 4, GoalID: 12, Profile: ProfileWheelchair})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 9, 12}, res.Nodes)

	assert.Equal(t, float64(4), got["start_id"])
	assert.Equal(t, float64(12), got["goal_id"])
	assert.Equal(t, []any{}, got["interest_nodes"])
	assert.Equal(t, "wheelchair", got["footprint_type"])
}

func TestRouteEmptyPathIsNotAnError(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"path": []}`, `{}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		res, err := newTestClient(srv.URL, 0).Route(context.Background(), Request{StartID: 1, GoalID: 2})
		srv.Close()

		require.NoError(t, err, body)
		assert.True(t, res.Empty(), body)
		assert.NotNil(t, res.Nodes, body)
	}
}

func TestRouteRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"path": [1, 2]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 2).Route(context.Background(), Request{StartID: 1, GoalID: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Nodes)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRouteUnavailable(t *testing.T) {
	t.Parallel()

	t.Run("client error is not retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL, 3).Route(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("transport failure", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newTestClient(url, 1).Route(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("garbage body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL, 0).Route(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestParseProfile(t *testing.T) {
	t.Parallel()

	p, err := ParseProfile("")
	require.NoError(t, err)
	assert.Equal(t, ProfileDefault, p)

	for _, want := range Profiles() {
		got, err := ParseProfile(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ParseProfile("skateboard")
	assert.Error(t, err)
}

type fakeRouter struct {
	res  Result
	err  error
	last Request
}

func (f *fakeRouter) Route(_ context.Context, req Request) (Result, error) {
	f.last = req
	return f.res, f.err
}

func TestNavigatorSelection(t *testing.T) {
	t.Parallel()

	nav := NewNavigator(&fakeRouter{})
	require.NoError(t, nav.Pick(3))
	require.NoError(t, nav.Pick(8))
	assert.ErrorIs(t, nav.Pick(9), ErrSelectionFull)
	assert.Equal(t, []int{3, 8}, nav.Selection().Picks)

	nav.Reset()
	assert.Empty(t, nav.Selection().Picks)
	require.NoError(t, nav.Pick(9))
}

func TestNavigatorSubmit(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{res: Result{Nodes: []int{3, 5, 8}}}
	nav := NewNavigator(router)

	_, err := nav.Submit(context.Background())
	assert.ErrorIs(t, err, ErrIncompleteSelection)

	nav.SetProfile(ProfileCrutches)
	require.NoError(t, nav.Pick(3))
	require.NoError(t, nav.Pick(8))

	res, err := nav.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 8}, res.Nodes)
	assert.Equal(t, Request{StartID: 3, GoalID: 8, Profile: ProfileCrutches}, router.last)
	assert.Equal(t, []int{3, 5, 8}, nav.Selection().Route.Nodes)

	// a failing service leaves the drawn route alone
	router.err = errors.Join(ErrUnavailable, errors.New("boom"))
	_, err = nav.Submit(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, []int{3, 5, 8}, nav.Selection().Route.Nodes)

	// an empty path clears it
	router.err = nil
	router.res = Result{Nodes: []int{}}
	res, err = nav.Submit(context.Background())
	assert.ErrorIs(t, err, ErrEmptyRoute)
	assert.True(t, res.Empty())
	assert.Empty(t, nav.Selection().Route.Nodes)

	nav.Reset()
	assert.Empty(t, nav.Selection().Picks)
}

// blockingRouter holds every request until release is closed.
type blockingRouter struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRouter) Route(ctx context.Context, _ Request) (Result, error) {
	close(b.entered)
	<-b.release
	return Result{Nodes: []int{1, 2, 3}}, nil
}

func TestNavigatorResetDuringSubmitDropsRoute(t *testing.T) {
	t.Parallel()

	router := &blockingRouter{entered: make(chan struct{}), release: make(chan struct{})}
	nav := NewNavigator(router)
	require.NoError(t, nav.Pick(1))
	require.NoError(t, nav.Pick(3))

	errc := make(chan error, 1)
	go func() {
		_, err := nav.Submit(context.Background())
		errc <- err
	}()

	<-router.entered
	nav.Reset()
	close(router.release)

	assert.ErrorIs(t, <-errc, ErrSelectionChanged)
	sel := nav.Selection()
	assert.Empty(t, sel.Picks)
	assert.Empty(t, sel.Route.Nodes)
}

func TestRouteLogsTruncatedErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "64")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error"`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient(Config{URL: srv.URL, Timeout: time.Second, Backoff: time.Millisecond}, log)

	_, err := client.Route(context.Background(), Request{StartID: 1, GoalID: 2})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, logs.String(), "draining route response")
	assert.Contains(t, logs.String(), "status=400")
}
