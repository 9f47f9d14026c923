package metadata

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapdl/pkg/logger"
	"snapdl/pkg/models"
	"snapdl/pkg/storage"
)

type failingWriter struct{}

func (failingWriter) WriteFile(string, []byte, os.FileMode) error {
	return errors.New("read-only file system")
}

func doneRecord(t *testing.T, store *storage.Manager) models.DownloadRecord {
	t.Helper()
	item := models.MediaItem{
		ID:        "snap-1",
		Account:   "alice",
		Category:  models.CategoryStory,
		Sequence:  models.IntPtr(2),
		Timestamp: 1700000000,
		MediaURL:  "http://cdn/snap-1",
		MediaType: 1,
		Extension: "mp4",
		Raw:       json.RawMessage(`{"snapId":{"value":"snap-1"}}`),
	}
	path := store.Path(item)
	n, err := store.Save(path, strings.NewReader("video"))
	require.NoError(t, err)
	return models.DownloadRecord{Item: item, LocalPath: path, Status: models.StatusDone, Bytes: n}
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, "/a/b/2023_alice_part-1_abc.json", PathFor("/a/b/2023_alice_part-1_abc.mp4"))
	assert.Equal(t, "/a/b/noext.json", PathFor("/a/b/noext"))
}

func TestRecordAll(t *testing.T) {
	store, err := storage.NewManager(t.TempDir(), time.UTC)
	require.NoError(t, err)
	rec := doneRecord(t, store)
	failed := rec
	failed.Status = models.StatusFailed
	failed.LocalPath = filepath.Join(filepath.Dir(rec.LocalPath), "failed.mp4")

	r := NewRecorder(store, true, logger.NewTestLogger())
	profile := json.RawMessage(`{"username":"alice"}`)
	assert.Equal(t, 1, r.RecordAll([]models.DownloadRecord{rec, failed}, profile))

	assert.True(t, Exists(rec.LocalPath))
	assert.False(t, Exists(failed.LocalPath))

	meta, err := Load(rec.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", meta.ID)
	assert.Equal(t, models.CategoryStory, meta.Category)
	require.NotNil(t, meta.Sequence)
	assert.Equal(t, 2, *meta.Sequence)
	assert.Equal(t, int64(5), meta.FileSize)
	assert.Equal(t, int64(1700000000), meta.TakenAt.Unix())
	assert.JSONEq(t, `{"snapId":{"value":"snap-1"}}`, string(meta.Raw))
	assert.JSONEq(t, `{"username":"alice"}`, string(meta.SnapUser))
}

func TestRecorderDisabled(t *testing.T) {
	store, err := storage.NewManager(t.TempDir(), time.UTC)
	require.NoError(t, err)
	rec := doneRecord(t, store)

	r := NewRecorder(store, false, logger.NewTestLogger())
	assert.False(t, r.Enabled())
	assert.Equal(t, 0, r.RecordAll([]models.DownloadRecord{rec}, nil))
	assert.False(t, Exists(rec.LocalPath))
}

func TestRecordFailureIsLoggedOnly(t *testing.T) {
	store, err := storage.NewManager(t.TempDir(), time.UTC)
	require.NoError(t, err)
	rec := doneRecord(t, store)

	log := logger.NewTestLogger()
	r := NewRecorder(failingWriter{}, true, log)
	assert.False(t, r.Record(rec, nil))
	assert.True(t, log.HasMessage("failed to write metadata"))
}

func TestDumpAccount(t *testing.T) {
	store, err := storage.NewManager(t.TempDir(), time.UTC)
	require.NoError(t, err)
	dir := store.AccountDir("alice")

	r := NewRecorder(store, false, logger.NewTestLogger())
	n := r.DumpAccount(dir, "alice", AccountDump{
		Page:        json.RawMessage(`{"props":{}}`),
		UserProfile: json.RawMessage(`{"username":"alice"}`),
		Stories:     json.RawMessage(`[]`),
		Spotlight:   json.RawMessage(`null`),
	})
	assert.Equal(t, 3, n)

	for _, name := range []string{"alice.json", "alice_user.json", "alice_stories.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(dir, "alice_curated.json"))
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(dir, "alice_user.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"username\"")
}
