package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"snapdl/pkg/logger"
)

// Reader returns the current clipboard text
type Reader func() (string, error)

// SystemClipboard reads the system clipboard
func SystemClipboard() (string, error) {
	return clipboard.ReadAll()
}

// ClipboardWatcher polls the clipboard for story links and reports every
// account name once
type ClipboardWatcher struct {
	read     Reader
	interval time.Duration
	logger   logger.Logger

	mu      sync.Mutex
	history map[string]bool
}

// NewClipboardWatcher creates a watcher. read defaults to the system clipboard.
func NewClipboardWatcher(read Reader, interval time.Duration, log logger.Logger) *ClipboardWatcher {
	if read == nil {
		read = SystemClipboard
	}
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &ClipboardWatcher{
		read:     read,
		interval: interval,
		logger:   log.WithField("component", "clipboard"),
		history:  make(map[string]bool),
	}
}

// Poll reads the clipboard once and returns the names not seen before
func (w *ClipboardWatcher) Poll() ([]string, error) {
	text, err := w.read()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	var fresh []string
	for _, name := range SearchUsernames(text) {
		if !w.history[name] {
			w.history[name] = true
			fresh = append(fresh, name)
		}
	}
	return fresh, nil
}

// Seen reports whether name was already handed out
func (w *ClipboardWatcher) Seen(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history[name]
}

// Watch polls until ctx is cancelled and calls fn with every new batch of
// names. Clipboard errors are logged and polling continues.
func (w *ClipboardWatcher) Watch(ctx context.Context, fn func(context.Context, []string) error) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		names, err := w.Poll()
		if err != nil {
			w.logger.WithError(err).Debug("failed to read clipboard")
		} else if len(names) > 0 {
			w.logger.InfoWithFields("new accounts on clipboard", map[string]interface{}{
				"accounts": names,
			})
			if err := fn(ctx, names); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
