package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category is one of the three independent content streams of an account.
type Category string

const (
	CategoryStory     Category = "STORY"
	CategoryCurated   Category = "CURATED"
	CategorySpotlight Category = "SPOTLIGHT"
)

// AllCategories returns the categories in the order they are processed.
func AllCategories() []Category {
	return []Category{CategoryStory, CategoryCurated, CategorySpotlight}
}

// Folder returns the directory name the category is stored under.
func (c Category) Folder() string {
	switch c {
	case CategoryStory:
		return "Public Stories"
	case CategoryCurated:
		return "Curated Highlights"
	case CategorySpotlight:
		return "Spotlight Highlights"
	default:
		return "Other"
	}
}

// Noun is the plural used in user-facing summaries.
func (c Category) Noun() string {
	switch c {
	case CategoryStory:
		return "stories"
	case CategoryCurated:
		return "curated highlights"
	case CategorySpotlight:
		return "spotlight highlights"
	default:
		return strings.ToLower(string(c))
	}
}

// ParseCategory accepts the category names case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STORY", "STORIES":
		return CategoryStory, nil
	case "CURATED":
		return CategoryCurated, nil
	case "SPOTLIGHT":
		return CategorySpotlight, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// CategorySet selects which categories a fetch should return.
type CategorySet map[Category]bool

// NewCategorySet builds a set from the given categories.
func NewCategorySet(categories ...Category) CategorySet {
	set := make(CategorySet, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return set
}

// Has reports whether c is selected. A nil set selects everything.
func (s CategorySet) Has(c Category) bool {
	if s == nil {
		return true
	}
	return s[c]
}

// MediaItem is one downloadable entry of an account.
type MediaItem struct {
	ID        string          `json:"id"`
	Account   string          `json:"account"`
	Category  Category        `json:"category"`
	Sequence  *int            `json:"sequence,omitempty"`
	Timestamp int64           `json:"timestamp"`
	MediaURL  string          `json:"media_url"`
	Extension string          `json:"extension"`
	MediaType int             `json:"media_type"`
	Group     string          `json:"group,omitempty"`
	Index     int             `json:"index"`
	Raw       json.RawMessage `json:"-"`
}

// Key identifies the item inside its account. Ids are only unique per category.
func (m MediaItem) Key() string {
	return ItemKey(m.Category, m.ID)
}

// Time returns the item timestamp as a time.Time.
func (m MediaItem) Time() time.Time {
	return time.Unix(m.Timestamp, 0)
}

// IsMultipart reports whether the item is one chunk of a multipart story.
func (m MediaItem) IsMultipart() bool {
	return m.Category == CategoryStory && m.Sequence != nil
}

// ItemKey builds the ledger key of an item.
func ItemKey(category Category, id string) string {
	return string(category) + ":" + id
}

// IntPtr is a small helper for optional sequences.
func IntPtr(v int) *int {
	return &v
}

// Status is the lifecycle state of a DownloadRecord.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
	StatusSkipped    Status = "SKIPPED"
)

// DownloadRecord tracks one item through the scheduler for a single run.
type DownloadRecord struct {
	Item      MediaItem `json:"item"`
	LocalPath string    `json:"local_path"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	Bytes     int64     `json:"bytes"`
	Existing  bool      `json:"existing"`
	Err       error     `json:"-"`
}

// StoryGroup is an ordered run of chunks that form one logical story.
type StoryGroup struct {
	Key   string      `json:"key"`
	Items []MediaItem `json:"items"`
}

// Extensions returns the distinct extensions of the group in chunk order.
func (g StoryGroup) Extensions() []string {
	var exts []string
	seen := make(map[string]bool)
	for _, item := range g.Items {
		if !seen[item.Extension] {
			seen[item.Extension] = true
			exts = append(exts, item.Extension)
		}
	}
	return exts
}

// Profile is the public profile information of an account.
type Profile struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	HeroURL     string `json:"hero_url,omitempty"`
}

// CategoryCount holds per-category totals of a pass.
type CategoryCount struct {
	Found      int `json:"found"`
	Downloaded int `json:"downloaded"`
	Existing   int `json:"existing"`
}

// PassSummary is the per-account outcome of one pass.
type PassSummary struct {
	Account          string                     `json:"account"`
	Found            int                        `json:"found"`
	Downloaded       int                        `json:"downloaded"`
	SkippedDuplicate int                        `json:"skipped_duplicate"`
	SkippedExisting  int                        `json:"skipped_existing"`
	Failed           int                        `json:"failed"`
	Combined         int                        `json:"combined"`
	NotFound         bool                       `json:"not_found"`
	Categories       map[Category]CategoryCount `json:"categories,omitempty"`
	Err              error                      `json:"-"`
}

// Add folds a record into the summary.
func (s *PassSummary) Add(rec DownloadRecord) {
	if s.Categories == nil {
		s.Categories = make(map[Category]CategoryCount)
	}
	c := s.Categories[rec.Item.Category]
	switch rec.Status {
	case StatusDone:
		if rec.Existing {
			s.SkippedExisting++
			c.Existing++
		} else {
			s.Downloaded++
			c.Downloaded++
		}
	case StatusFailed:
		s.Failed++
	}
	s.Categories[rec.Item.Category] = c
}

// CountFound records the number of items a category returned.
func (s *PassSummary) CountFound(category Category, n int) {
	if s.Categories == nil {
		s.Categories = make(map[Category]CategoryCount)
	}
	c := s.Categories[category]
	c.Found += n
	s.Categories[category] = c
	s.Found += n
}
