package accounts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapdl/pkg/logger"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"alice", true},
		{"a.b-c_d", true},
		{"ab", false},
		{"sixteen-chars-xx", false},
		{"bad name", false},
		{"", false},
		{"semi;colon", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidateUsername(tt.name), tt.name)
	}
}

func TestSearchUsernames(t *testing.T) {
	text := `look https://story.snapchat.com/s/zoe and https://www.snapchat.com/add/bob
	again https://www.snapchat.com/add/bob?share=1 plus https://www.snapchat.com/@carol
	not https://example.com/add/mallory`

	assert.Equal(t, []string{"bob", "carol", "zoe"}, SearchUsernames(text))
	assert.Empty(t, SearchUsernames("nothing here"))
}

func TestFromBatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	require.NoError(t, os.WriteFile(path, []byte("alice\n\n bob \nx\nalice\ncarol\n"), 0644))

	names, err := FromBatchFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)

	_, err = FromBatchFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFromRootFolder(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"zed", "alice", ".snapdl-cache", "no"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, dir), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0644))

	names, err := FromRootFolder(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "zed"}, names)
}

func TestMerge(t *testing.T) {
	assert.Equal(t,
		[]string{"b", "a", "c"},
		Merge([]string{"b", "a"}, []string{"a", " c ", ""}, nil, []string{"b"}),
	)
}

type fakeClipboard struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeClipboard) read() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(f.texts) == 0 {
		return "", nil
	}
	text := f.texts[0]
	if len(f.texts) > 1 {
		f.texts = f.texts[1:]
	}
	return text, nil
}

func TestClipboardPollKeepsHistory(t *testing.T) {
	clip := &fakeClipboard{texts: []string{
		"https://www.snapchat.com/add/alice",
		"https://www.snapchat.com/add/alice https://www.snapchat.com/add/bob",
	}}
	w := NewClipboardWatcher(clip.read, time.Millisecond, logger.NewTestLogger())

	names, err := w.Poll()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names)

	names, err = w.Poll()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, names)
	assert.True(t, w.Seen("alice"))

	names, err = w.Poll()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestClipboardWatch(t *testing.T) {
	clip := &fakeClipboard{texts: []string{
		"https://www.snapchat.com/add/alice",
		"https://www.snapchat.com/add/bob",
	}}
	w := NewClipboardWatcher(clip.read, time.Millisecond, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var batches [][]string
	err := w.Watch(ctx, func(_ context.Context, names []string) error {
		batches = append(batches, names)
		if len(batches) == 2 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"alice"}, {"bob"}}, batches)
}

func TestClipboardWatchErrors(t *testing.T) {
	clip := &fakeClipboard{err: errors.New("no clipboard utility")}
	w := NewClipboardWatcher(clip.read, time.Millisecond, logger.NewTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, w.Watch(ctx, func(context.Context, []string) error {
		t.Fatal("no names expected")
		return nil
	}))

	clip.mu.Lock()
	clip.err = nil
	clip.texts = []string{"https://www.snapchat.com/add/alice"}
	clip.mu.Unlock()
	stop := errors.New("stop")
	err := w.Watch(context.Background(), func(context.Context, []string) error { return stop })
	assert.ErrorIs(t, err, stop)
}
