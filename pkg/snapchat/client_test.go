package snapchat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/logger"
	"snapdl/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/add/alice/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, testPage(testPageProps(srv.URL)))
	})
	mux.HandleFunc("/add/ghost/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/add/busy/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/add/broken/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/add/garbage/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	})
	mux.HandleFunc("/media/s1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "video-bytes")
	})
	mux.HandleFunc("/media/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *logger.TestLogger) {
	log := logger.NewTestLogger()
	client := NewClient(5*time.Second, "", nil, log)
	client.SetBaseURL(srv.URL)
	return client, log
}

func TestNewClient(t *testing.T) {
	client := NewClient(30*time.Second, "custom-agent", nil, logger.NewTestLogger())

	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Equal(t, "custom-agent", client.headers["User-Agent"])
	assert.Equal(t, BaseURL, client.baseURL)

	client.SetHeader("X-Test", "1")
	assert.Equal(t, "1", client.headers["X-Test"])
}

func TestClientFetch(t *testing.T) {
	srv := newTestServer(t)
	client, log := newTestClient(t, srv)

	res, err := client.Fetch(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count(models.CategoryStory))
	assert.Equal(t, 3, res.Count(models.CategoryCurated))
	assert.Equal(t, 1, res.Count(models.CategorySpotlight))
	assert.Equal(t, srv.URL+"/media/avatar.jpg", res.Profile.AvatarURL)
	assert.True(t, log.HasMessage("profile fetched"))
}

func TestClientFetchErrors(t *testing.T) {
	srv := newTestServer(t)
	client, _ := newTestClient(t, srv)
	ctx := context.Background()

	tests := []struct {
		account   string
		errType   errs.ErrorType
		retryable bool
	}{
		{"ghost", errs.ErrorTypeNotFound, false},
		{"busy", errs.ErrorTypeRateLimit, true},
		{"broken", errs.ErrorTypeTransientFetch, true},
		{"garbage", errs.ErrorTypeTransientFetch, true},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			_, err := client.Fetch(ctx, tt.account, nil)
			require.Error(t, err)
			assert.Equal(t, tt.errType, errs.TypeOf(err))
			assert.Equal(t, tt.retryable, errs.IsRetryableError(err))
		})
	}
}

func TestClientFetchNetworkError(t *testing.T) {
	srv := newTestServer(t)
	client, _ := newTestClient(t, srv)
	srv.Close()

	_, err := client.Fetch(context.Background(), "alice", nil)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeTransientFetch, errs.TypeOf(err))
	assert.True(t, errs.IsRetryableError(err))
}

type countingLimiter struct{ waits int }

func (c *countingLimiter) Allow() bool { return true }
func (c *countingLimiter) Wait(ctx context.Context) error {
	c.waits++
	return ctx.Err()
}

func TestClientUsesLimiterForPages(t *testing.T) {
	srv := newTestServer(t)
	limiter := &countingLimiter{}
	client := NewClient(5*time.Second, "", limiter, logger.NewTestLogger())
	client.SetBaseURL(srv.URL)

	_, err := client.Fetch(context.Background(), "alice", nil)
	require.NoError(t, err)
	body, _, err := client.OpenMedia(context.Background(), srv.URL+"/media/s1")
	require.NoError(t, err)
	body.Close()

	assert.Equal(t, 1, limiter.waits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Fetch(ctx, "alice", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientOpenMedia(t *testing.T) {
	srv := newTestServer(t)
	client, _ := newTestClient(t, srv)

	body, size, err := client.OpenMedia(context.Background(), srv.URL+"/media/s1")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
	assert.Equal(t, int64(len("video-bytes")), size)

	_, _, err = client.OpenMedia(context.Background(), srv.URL+"/media/gone")
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeItemDownload, errs.TypeOf(err))
	assert.False(t, errs.IsRetryableError(err))
}
