// Package storage lays out downloaded media on disk and writes files atomically.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"snapdl/pkg/models"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02_15-04-05"
	tempMarker      = ".part"
)

// ErrEmpty is returned by Save when the reader produced no bytes. Nothing is
// left at the final path.
var ErrEmpty = errors.New("empty media body")

// Manager maps items to paths under the root folder and performs atomic writes
type Manager struct {
	root string
	loc  *time.Location
}

// NewManager creates a new storage manager
func NewManager(root string, loc *time.Location) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root folder: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Manager{root: root, loc: loc}, nil
}

// Root returns the root folder
func (m *Manager) Root() string {
	return m.root
}

// AccountDir returns the folder that holds everything of one account
func (m *Manager) AccountDir(account string) string {
	return filepath.Join(m.root, SanitizeSegment(account, "unknown"))
}

// Path returns the final location of an item
func (m *Manager) Path(item models.MediaItem) string {
	t := time.Unix(item.Timestamp, 0).In(m.loc)
	ts := t.Format(timestampLayout)
	account := SanitizeSegment(item.Account, "unknown")
	sid := ShortID(item.ID)
	base := filepath.Join(m.AccountDir(item.Account), item.Category.Folder())

	switch item.Category {
	case models.CategoryCurated:
		title := SanitizeSegment(item.Group, fmt.Sprintf("Highlight-%d", item.Index))
		name := fmt.Sprintf("%s_%s_curated_snap-%d_%s.%s", ts, account, item.Index, sid, item.Extension)
		return filepath.Join(base, title, name)
	case models.CategorySpotlight:
		name := fmt.Sprintf("%s_%s_spotlight_%s.%s", ts, account, sid, item.Extension)
		return filepath.Join(base, t.Format(dateLayout), name)
	default:
		part := ""
		if item.Sequence != nil {
			part = fmt.Sprintf("_part-%d", *item.Sequence)
		}
		name := fmt.Sprintf("%s_%s%s_%s.%s", ts, account, part, sid, item.Extension)
		return filepath.Join(base, t.Format(dateLayout), name)
	}
}

// GroupPath returns the target of a combined multipart story
func (m *Manager) GroupPath(account string, timestamp int64, ext string) string {
	t := time.Unix(timestamp, 0).In(m.loc)
	name := fmt.Sprintf("%s_%s.%s", t.Format(timestampLayout), SanitizeSegment(account, "unknown"), ext)
	return filepath.Join(m.AccountDir(account), models.CategoryStory.Folder(), t.Format(dateLayout), name)
}

// AvatarPath returns where the profile picture (or hero image) is stored
func (m *Manager) AvatarPath(account, displayName string, hero bool) string {
	name := SanitizeSegment(displayName, account)
	if hero {
		name += " (Hero)"
	}
	return filepath.Join(m.AccountDir(account), name+".jpg")
}

// Size returns the size of the file at path and whether it exists
func (m *Manager) Size(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

// Exists reports whether a regular file exists at path
func (m *Manager) Exists(path string) bool {
	_, ok := m.Size(path)
	return ok
}

// TempPath returns a unique sibling of path used while writing. The extension
// is kept so tools that sniff it (ffmpeg) still work.
func TempPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, "."+stem+"."+uuid.NewString()+tempMarker+ext)
}

// IsTempFile reports whether name was produced by TempPath
func IsTempFile(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, tempMarker)
}

// Save streams r into path through a temporary file, fsyncs it, then renames
// it into place. It returns the number of bytes written.
func (m *Manager) Save(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := TempPath(path)
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	if err == nil && n == 0 {
		err = ErrEmpty
	}
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		if errors.Is(err, ErrEmpty) {
			return 0, ErrEmpty
		}
		return n, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return n, nil
}

// WriteFile atomically replaces path with data
func (m *Manager) WriteFile(path string, data []byte, perm os.FileMode) error {
	if _, err := m.Save(path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

// CleanStaleTemp removes temporary files left behind by an interrupted run
func (m *Manager) CleanStaleTemp(dir string) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && IsTempFile(d.Name()) {
			if err := os.Remove(path); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// ShortID is a stable 8 hex digit digest of an item id used in file names
func ShortID(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	return fmt.Sprintf("%08x", h.Sum32())
}

// SanitizeSegment makes s safe as a single path element
func SanitizeSegment(s, fallback string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(strings.TrimSpace(s), ".")
	if s == "" {
		return fallback
	}
	return s
}
