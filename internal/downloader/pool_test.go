package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/ledger"
	"snapdl/pkg/logger"
	"snapdl/pkg/models"
	"snapdl/pkg/retry"
	"snapdl/pkg/storage"
)

// mockFetcher serves bodies from memory
type mockFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	failures map[string]int // transient failures before success
	missing  map[string]bool
	broken   map[string]bool // body fails half way
	calls    map[string]int
	delay    time.Duration
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{
		bodies:   make(map[string]string),
		failures: make(map[string]int),
		missing:  make(map[string]bool),
		broken:   make(map[string]bool),
		calls:    make(map[string]int),
	}
}

func (m *mockFetcher) OpenMedia(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	m.calls[url]++
	failing := m.failures[url] > 0
	if failing {
		m.failures[url]--
	}
	body := m.bodies[url]
	missing := m.missing[url]
	broken := m.broken[url]
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if missing {
		return nil, 0, errs.NewItemDownloadError("", 404, "unexpected status code: 404", nil)
	}
	if failing {
		return nil, 0, errs.NewItemDownloadError("", 503, "unexpected status code: 503", nil)
	}
	if broken {
		return io.NopCloser(&failingReader{data: body}), int64(len(body)) * 2, nil
	}
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

func (m *mockFetcher) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

type failingReader struct {
	data string
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, errors.New("connection reset")
	}
	f.done = true
	return copy(p, f.data), nil
}

type failingRecorder struct{}

func (failingRecorder) Record(models.MediaItem, string) error {
	return errs.NewLedgerIOError("alice", "failed to append ledger entry", errors.New("disk full"))
}

type testEnv struct {
	root    string
	store   *storage.Manager
	ledger  *ledger.Ledger
	fetcher *mockFetcher
	log     *logger.TestLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewManager(root, time.UTC)
	require.NoError(t, err)
	log := logger.NewTestLogger()
	l, err := ledger.NewStore(root, log).Load("alice")
	require.NoError(t, err)
	return &testEnv{root: root, store: store, ledger: l, fetcher: newMockFetcher(), log: log}
}

func (e *testEnv) items(n int) []models.MediaItem {
	items := make([]models.MediaItem, n)
	for i := range items {
		id := fmt.Sprintf("snap-%d", i)
		url := "http://cdn/" + id
		e.fetcher.bodies[url] = "body of " + id
		items[i] = models.MediaItem{
			ID:        id,
			Account:   "alice",
			Category:  models.CategoryStory,
			Timestamp: 1700000000 + int64(i),
			MediaURL:  url,
			Extension: "jpg",
		}
	}
	return items
}

func (e *testEnv) pool(opts Options) *WorkerPool {
	if opts.Retry == nil {
		opts.Retry = retry.NewPolicy(3, 0, e.log)
	}
	return NewWorkerPool(opts, e.fetcher, e.store, e.ledger, e.log)
}

func countStatus(records []models.DownloadRecord, status models.Status) int {
	n := 0
	for _, r := range records {
		if r.Status == status {
			n++
		}
	}
	return n
}

func assertLedgerMatchesDone(t *testing.T, l *ledger.Ledger, records []models.DownloadRecord) {
	t.Helper()
	for _, r := range records {
		assert.Equal(t, r.Status == models.StatusDone, l.Contains(r.Item), "item %s (%s)", r.Item.ID, r.Status)
	}
}

func TestRunDownloadsAll(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(6)

	records, err := env.pool(Options{MaxWorkers: 3}).Run(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, records, 6)

	for i, rec := range records {
		assert.Equal(t, items[i].ID, rec.Item.ID, "records keep input order")
		assert.Equal(t, models.StatusDone, rec.Status)
		assert.False(t, rec.Existing)
		assert.Equal(t, 1, rec.Attempts)

		data, err := os.ReadFile(rec.LocalPath)
		require.NoError(t, err)
		assert.Equal(t, "body of "+items[i].ID, string(data))
		assert.Equal(t, int64(len(data)), rec.Bytes)
	}
	assert.Equal(t, 6, env.ledger.Len())
}

func TestRunPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(5)
	env.fetcher.missing[items[2].MediaURL] = true

	records, err := env.pool(Options{MaxWorkers: 2}).Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 4, countStatus(records, models.StatusDone))
	assert.Equal(t, 1, countStatus(records, models.StatusFailed))
	assert.Equal(t, models.StatusFailed, records[2].Status)
	assert.Equal(t, 1, records[2].Attempts, "404 is not retried")
	assert.Equal(t, 4, env.ledger.Len())
	assertLedgerMatchesDone(t, env.ledger, records)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(2)
	env.fetcher.failures[items[0].MediaURL] = 2
	env.fetcher.failures[items[1].MediaURL] = 5

	records, err := env.pool(Options{MaxWorkers: 1}).Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDone, records[0].Status)
	assert.Equal(t, 3, records[0].Attempts)

	assert.Equal(t, models.StatusFailed, records[1].Status)
	assert.Equal(t, 3, records[1].Attempts)
	var exhausted *retry.ExhaustedError
	assert.ErrorAs(t, records[1].Err, &exhausted)
	assertLedgerMatchesDone(t, env.ledger, records)
}

func TestRunInterruptedWriteLeavesNoFile(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(1)
	env.fetcher.broken[items[0].MediaURL] = true

	records, err := env.pool(Options{MaxWorkers: 1, Retry: retry.NewPolicy(1, 0, env.log)}).Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, records[0].Status)

	_, statErr := os.Stat(records[0].LocalPath)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(filepath.Dir(records[0].LocalPath))
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file is removed")
	assert.Equal(t, 0, env.ledger.Len())
}

func TestRunExistingFiles(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(2)

	for _, item := range items {
		path := env.store.Path(item)
		_, err := env.store.Save(path, strings.NewReader(env.fetcher.bodies[item.MediaURL]))
		require.NoError(t, err)
	}
	// same name, different size: downloaded again
	_, err := env.store.Save(env.store.Path(items[1]), strings.NewReader("stale"))
	require.NoError(t, err)

	records, err := env.pool(Options{MaxWorkers: 1}).Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDone, records[0].Status)
	assert.True(t, records[0].Existing)
	assert.Equal(t, models.StatusDone, records[1].Status)
	assert.False(t, records[1].Existing)

	data, err := os.ReadFile(records[1].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "body of snap-1", string(data))
	assertLedgerMatchesDone(t, env.ledger, records)
}

func TestRunFastModeSkipsRequest(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(1)
	_, err := env.store.Save(env.store.Path(items[0]), strings.NewReader("anything"))
	require.NoError(t, err)

	records, err := env.pool(Options{MaxWorkers: 1, Fast: true}).Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDone, records[0].Status)
	assert.True(t, records[0].Existing)
	assert.Equal(t, 0, env.fetcher.Calls(items[0].MediaURL))
	assert.True(t, env.ledger.Contains(items[0]))
}

func TestRunEmptyBodyIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(1)
	env.fetcher.bodies[items[0].MediaURL] = ""

	records, err := env.pool(Options{MaxWorkers: 1}).Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, models.StatusSkipped, records[0].Status)
	assert.False(t, env.store.Exists(records[0].LocalPath))
	assert.Equal(t, 0, env.ledger.Len())
}

func TestRunThrottlesEachWorker(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(4)
	interval := 30 * time.Millisecond

	start := time.Now()
	records, err := env.pool(Options{MaxWorkers: 1, SleepInterval: interval}).Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 4, countStatus(records, models.StatusDone))
	// one sleep between each pair of consecutive items
	assert.GreaterOrEqual(t, time.Since(start), time.Duration(len(items)-1)*interval)
}

func TestRunNoSleepAfterLastItem(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(1)

	start := time.Now()
	records, err := env.pool(Options{MaxWorkers: 1, SleepInterval: time.Hour}).Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, models.StatusDone, records[0].Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunCancelledLeavesPending(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := env.pool(Options{MaxWorkers: 2}).Run(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 5, countStatus(records, models.StatusPending))
	assert.Equal(t, 0, env.ledger.Len())
}

func TestRunCancelDuringSleepFinishesInFlight(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(3)
	env.fetcher.delay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	records, err := env.pool(Options{MaxWorkers: 1, SleepInterval: time.Hour}).Run(ctx, items)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, models.StatusDone, records[0].Status)
	assert.Equal(t, 2, countStatus(records, models.StatusPending))
	assertLedgerMatchesDone(t, env.ledger, records)
}

func TestRunLedgerFailureStopsPool(t *testing.T) {
	env := newTestEnv(t)
	items := env.items(4)

	pool := NewWorkerPool(Options{MaxWorkers: 1, Retry: retry.NewPolicy(1, 0, env.log)}, env.fetcher, env.store, failingRecorder{}, env.log)
	records, err := pool.Run(context.Background(), items)

	require.Error(t, err)
	assert.True(t, errs.IsLedgerIO(err))
	assert.Equal(t, models.StatusFailed, records[0].Status)
	assert.Equal(t, 0, countStatus(records, models.StatusDone))
	assert.Equal(t, 3, countStatus(records, models.StatusPending))
}

func TestRunNoItems(t *testing.T) {
	env := newTestEnv(t)
	records, err := env.pool(Options{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}
