// Package metadata writes JSON sidecars for downloaded media and the raw
// account dumps.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"snapdl/pkg/logger"
	"snapdl/pkg/models"
)

// ItemMetadata is the sidecar written next to a media file
type ItemMetadata struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Category  models.Category `json:"category"`
	Sequence  *int            `json:"sequence,omitempty"`
	Group     string          `json:"group,omitempty"`
	Index     int             `json:"index,omitempty"`
	MediaURL  string          `json:"media_url"`
	MediaType int             `json:"media_type"`
	Extension string          `json:"extension"`
	FileSize  int64           `json:"file_size,omitempty"`

	TakenAt      time.Time `json:"taken_at"`
	DownloadedAt time.Time `json:"downloaded_at"`

	// Raw is the service object of the entry
	Raw json.RawMessage `json:"raw,omitempty"`
	// SnapUser is the profile of the account the entry belongs to
	SnapUser json.RawMessage `json:"snapUser,omitempty"`
}

// FromRecord builds the sidecar of a finished download
func FromRecord(rec models.DownloadRecord, profile json.RawMessage) *ItemMetadata {
	item := rec.Item
	return &ItemMetadata{
		ID:           item.ID,
		Account:      item.Account,
		Category:     item.Category,
		Sequence:     item.Sequence,
		Group:        item.Group,
		Index:        item.Index,
		MediaURL:     item.MediaURL,
		MediaType:    item.MediaType,
		Extension:    item.Extension,
		FileSize:     rec.Bytes,
		TakenAt:      item.Time().UTC(),
		DownloadedAt: time.Now().UTC(),
		Raw:          item.Raw,
		SnapUser:     profile,
	}
}

// PathFor returns the sidecar path of a media file: same stem, .json extension
func PathFor(mediaPath string) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".json"
}

// Load reads the sidecar of a media file
func Load(mediaPath string) (*ItemMetadata, error) {
	data, err := os.ReadFile(PathFor(mediaPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta ItemMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// Exists checks if a sidecar exists for a media file
func Exists(mediaPath string) bool {
	_, err := os.Stat(PathFor(mediaPath))
	return err == nil
}

// Writer performs atomic file writes
type Writer interface {
	WriteFile(path string, data []byte, perm os.FileMode) error
}

// Recorder writes sidecars and dumps. Failures are logged and never returned
// to the download path.
type Recorder struct {
	writer  Writer
	logger  logger.Logger
	enabled bool
}

// NewRecorder creates a recorder. A disabled recorder does nothing.
func NewRecorder(w Writer, enabled bool, log logger.Logger) *Recorder {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Recorder{
		writer:  w,
		logger:  log.WithField("component", "metadata"),
		enabled: enabled,
	}
}

// Enabled reports whether sidecars are written
func (r *Recorder) Enabled() bool {
	return r.enabled
}

// RecordAll writes the sidecar of every DONE record and returns how many were written
func (r *Recorder) RecordAll(records []models.DownloadRecord, profile json.RawMessage) int {
	if !r.enabled {
		return 0
	}
	written := 0
	for _, rec := range records {
		if rec.Status != models.StatusDone {
			continue
		}
		if r.Record(rec, profile) {
			written++
		}
	}
	return written
}

// Record writes the sidecar of one record
func (r *Recorder) Record(rec models.DownloadRecord, profile json.RawMessage) bool {
	if !r.enabled {
		return false
	}
	path := PathFor(rec.LocalPath)
	data, err := json.MarshalIndent(FromRecord(rec, profile), "", "  ")
	if err == nil {
		err = r.writer.WriteFile(path, data, 0644)
	}
	if err != nil {
		r.logger.WithError(err).WarnWithFields("failed to write metadata", map[string]interface{}{
			"account": rec.Item.Account,
			"item":    rec.Item.Key(),
			"path":    path,
		})
		return false
	}
	return true
}

// AccountDump holds the raw documents of one profile page
type AccountDump struct {
	Page        json.RawMessage
	UserProfile json.RawMessage
	Stories     json.RawMessage
	Curated     json.RawMessage
	Spotlight   json.RawMessage
}

// DumpAccount writes <account>.json, <account>_user.json and one file per
// category into dir. Empty documents are skipped.
func (r *Recorder) DumpAccount(dir, account string, dump AccountDump) int {
	files := []struct {
		suffix string
		data   json.RawMessage
	}{
		{"", dump.Page},
		{"_user", dump.UserProfile},
		{"_stories", dump.Stories},
		{"_curated", dump.Curated},
		{"_spotlight", dump.Spotlight},
	}

	written := 0
	for _, f := range files {
		if len(f.data) == 0 || string(f.data) == "null" {
			continue
		}
		path := filepath.Join(dir, account+f.suffix+".json")
		var buf bytes.Buffer
		err := json.Indent(&buf, f.data, "", "  ")
		if err == nil {
			err = r.writer.WriteFile(path, buf.Bytes(), 0644)
		}
		if err != nil {
			r.logger.WithError(err).WarnWithFields("failed to write account dump", map[string]interface{}{
				"account": account,
				"path":    path,
			})
			continue
		}
		written++
	}
	return written
}
