package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/logger"
	"snapdl/pkg/models"
	"snapdl/pkg/storage"
)

// FileName is the ledger file kept in every account folder
const FileName = ".snapdl-ledger.jsonl"

// Entry is one line of the ledger file
type Entry struct {
	ID         string          `json:"id"`
	Category   models.Category `json:"category"`
	Path       string          `json:"path,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Key returns the lookup key of the entry
func (e Entry) Key() string {
	return models.ItemKey(e.Category, e.ID)
}

// Store hands out one Ledger per account folder. Ledgers are cached so that
// every writer of a ledger file shares the same mutex.
type Store struct {
	root    string
	logger  logger.Logger
	mu      sync.Mutex
	ledgers map[string]*Ledger
}

// NewStore creates a store rooted at the download root folder
func NewStore(root string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		root:    root,
		logger:  log.WithField("component", "ledger"),
		ledgers: make(map[string]*Ledger),
	}
}

// Path returns the ledger file of an account. It lives in the same folder
// as the account's media.
func (s *Store) Path(account string) string {
	return filepath.Join(s.root, storage.SanitizeSegment(account, "unknown"), FileName)
}

// Load reads the ledger of account from disk. An account without a ledger file
// yields an empty ledger.
func (s *Store) Load(account string) (*Ledger, error) {
	path := s.Path(account)
	s.mu.Lock()
	l, ok := s.ledgers[path]
	if !ok {
		l = &Ledger{account: account, path: path, logger: s.logger, now: time.Now}
		s.ledgers[path] = l
	}
	s.mu.Unlock()

	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Ledger is the persisted set of item keys of one account
type Ledger struct {
	account string
	path    string
	logger  logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

func (l *Ledger) reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]Entry)

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.NewLedgerIOError(l.account, "failed to read ledger", err)
	}
	if len(data) == 0 {
		return nil
	}

	// a crash mid-append leaves a fragment after the last newline
	if data[len(data)-1] != '\n' {
		data, err = l.repairTail(data)
		if err != nil {
			return err
		}
	}

	lines := bytes.Split(data[:len(data)-1], []byte("\n"))
	for i, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" {
			if err == nil {
				err = fmt.Errorf("entry without id")
			}
			return errs.NewLedgerIOError(l.account, fmt.Sprintf("corrupt ledger line %d", i+1), err)
		}
		l.entries[e.Key()] = e
	}
	return nil
}

// repairTail makes the file end on a newline again. A complete entry that only
// lost its newline is terminated; anything else is cut off so the item is
// fetched again. The returned data always ends with a newline.
func (l *Ledger) repairTail(data []byte) ([]byte, error) {
	cut := bytes.LastIndexByte(data, '\n') + 1
	tail := data[cut:]

	var e Entry
	if json.Unmarshal(tail, &e) == nil && e.ID != "" {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errs.NewLedgerIOError(l.account, "failed to open ledger", err)
		}
		_, err = f.Write([]byte{'\n'})
		if err == nil {
			err = f.Sync()
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, errs.NewLedgerIOError(l.account, "failed to terminate ledger line", err)
		}
		return append(data, '\n'), nil
	}

	l.logger.WarnWithFields("Dropping torn ledger line", map[string]interface{}{
		"account": l.account,
		"bytes":   len(tail),
	})
	if err := os.Truncate(l.path, int64(cut)); err != nil {
		return nil, errs.NewLedgerIOError(l.account, "failed to drop torn ledger line", err)
	}
	if cut == 0 {
		return []byte{'\n'}, nil
	}
	return data[:cut], nil
}

// Path returns the ledger file path
func (l *Ledger) Path() string {
	return l.path
}

// Has reports whether key is recorded
func (l *Ledger) Has(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	return ok
}

// Contains reports whether item is recorded
func (l *Ledger) Contains(item models.MediaItem) bool {
	return l.Has(item.Key())
}

// Len returns the number of recorded items
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Keys returns the recorded keys in sorted order
func (l *Ledger) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Filter splits items into those not yet recorded and a count of those that were
func (l *Ledger) Filter(items []models.MediaItem) ([]models.MediaItem, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := make([]models.MediaItem, 0, len(items))
	skipped := 0
	for _, item := range items {
		if _, ok := l.entries[item.Key()]; ok {
			skipped++
			continue
		}
		pending = append(pending, item)
	}
	return pending, skipped
}

// Record appends item to the ledger and fsyncs the file before returning.
// Recording an item twice is a no-op.
func (l *Ledger) Record(item models.MediaItem, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[item.Key()]; ok {
		return nil
	}

	entry := Entry{ID: item.ID, Category: item.Category, Path: path, RecordedAt: l.now().UTC()}
	line, err := json.Marshal(entry)
	if err != nil {
		return errs.NewLedgerIOError(l.account, "failed to encode ledger entry", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return errs.NewLedgerIOError(l.account, "failed to create account folder", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errs.NewLedgerIOError(l.account, "failed to open ledger", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return errs.NewLedgerIOError(l.account, "failed to append to ledger", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.NewLedgerIOError(l.account, "failed to sync ledger", err)
	}
	if err := f.Close(); err != nil {
		return errs.NewLedgerIOError(l.account, "failed to close ledger", err)
	}

	l.entries[item.Key()] = entry
	return nil
}
