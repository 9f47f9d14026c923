package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapdl/pkg/config"
	"snapdl/pkg/models"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"quiet debug", &config.LoggingConfig{Level: "debug", Quiet: true}, false},
		{"invalid level", &config.LoggingConfig{Level: "verbose"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "snapdl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "disabled", ""} {
		_, err := parseLogLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := parseLogLevel("chatty")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "warn")
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	l.Error("also shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["message"])
	assert.Equal(t, "snapdl", lines[0]["app"])
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	l.WithField("account", "someone").
		WithFields(map[string]interface{}{"category": "STORY"}).
		WithError(errors.New("boom")).
		InfoWithFields("done", map[string]interface{}{"bytes": int64(42), "took": time.Second})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "someone", lines[0]["account"])
	assert.Equal(t, "STORY", lines[0]["category"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.EqualValues(t, 42, lines[0]["bytes"])
}

func TestWithFieldDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewWithWriter(&buf, "info")
	require.NoError(t, err)

	_ = base.WithField("account", "a")
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["account"]
	assert.False(t, ok)
}

func TestFilteredWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &filteredWriter{w: &buf, min: 3}

	n, err := w.WriteLevel(1, []byte("low"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, buf.String())

	_, err = w.WriteLevel(3, []byte("high"))
	require.NoError(t, err)
	assert.Equal(t, "high", buf.String())
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	WithField("k", "v").Info("global")
	assert.True(t, tl.HasMessage("global"))
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogDownload(tl, models.DownloadRecord{
		Item:   models.MediaItem{ID: "x", Account: "someone", Category: models.CategoryStory},
		Status: models.StatusFailed,
		Err:    errors.New("timeout"),
	})
	LogAccountSummary(tl, models.PassSummary{Account: "someone", Found: 3, Downloaded: 3})
	LogAccountSummary(tl, models.PassSummary{Account: "other", Found: 3, Failed: 1})

	errorsLogged := tl.GetMessagesByLevel("ERROR")
	require.Len(t, errorsLogged, 1)
	assert.Equal(t, "Download failed", errorsLogged[0].Message)
	assert.Equal(t, "someone", errorsLogged[0].Fields["account"])
	assert.EqualError(t, errorsLogged[0].Error, "timeout")

	assert.True(t, tl.HasMessage("Account pass finished"))
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).ErrorWithFields("nothing", nil)
}
