package snapchat

import (
	"encoding/json"
	"fmt"
	"strconv"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/models"
)

// Result is everything a profile page yields
type Result struct {
	Profile models.Profile
	Items   []models.MediaItem

	// Raw JSON kept for the account dumps
	Page        json.RawMessage
	UserProfile json.RawMessage
	Stories     json.RawMessage
	Curated     json.RawMessage
	Spotlight   json.RawMessage
}

// Count returns the number of items of one category
func (r *Result) Count(c models.Category) int {
	n := 0
	for _, item := range r.Items {
		if item.Category == c {
			n++
		}
	}
	return n
}

// ParsePage extracts the profile and the media items from a profile page
func ParsePage(account, html string, categories models.CategorySet) (*Result, error) {
	match := nextDataPattern.FindStringSubmatch(html)
	if match == nil || match[1] == "" {
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Message: "page state not found", Account: account}
	}
	return ParseNextData(account, []byte(match[1]), categories)
}

// ParseNextData normalizes the embedded page state into media items
func ParseNextData(account string, data []byte, categories models.CategorySet) (*Result, error) {
	var page nextData
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Message: "invalid page state", Account: account, Err: err}
	}
	props := page.Props.PageProps

	rawProfile, err := profileCase(props.UserProfile)
	if err != nil {
		return nil, errs.NewNotFoundError(account)
	}
	var up userProfile
	if err := json.Unmarshal(rawProfile, &up); err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Message: "invalid user profile", Account: account, Err: err}
	}

	res := &Result{
		Page:        json.RawMessage(data),
		UserProfile: rawProfile,
		Profile: models.Profile{
			Username:    account,
			DisplayName: displayName(up),
			AvatarURL:   props.LinkPreview.FacebookImage.URL,
			HeroURL:     up.SquareHeroImageURL,
		},
	}
	if up.Username != "" {
		res.Profile.Username = up.Username
	}

	if categories.Has(models.CategoryStory) && props.Story != nil {
		res.Stories, _ = json.Marshal(props.Story.SnapList)
		items, err := storyItems(account, props.Story.SnapList)
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, items...)
	}
	if categories.Has(models.CategoryCurated) {
		res.Curated, _ = json.Marshal(props.CuratedHighlights)
		items, err := highlightItems(account, models.CategoryCurated, props.CuratedHighlights)
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, items...)
	}
	if categories.Has(models.CategorySpotlight) {
		res.Spotlight, _ = json.Marshal(props.SpotlightHighlights)
		items, err := highlightItems(account, models.CategorySpotlight, props.SpotlightHighlights)
		if err != nil {
			return nil, err
		}
		res.Items = append(res.Items, items...)
	}
	return res, nil
}

// profileCase unwraps the tagged union {"$case": name, name: {...}}
func profileCase(up map[string]json.RawMessage) (json.RawMessage, error) {
	rawCase, ok := up["$case"]
	if !ok {
		return nil, fmt.Errorf("user profile missing")
	}
	var name string
	if err := json.Unmarshal(rawCase, &name); err != nil {
		return nil, err
	}
	profile, ok := up[name]
	if !ok || len(profile) == 0 || string(profile) == "null" {
		return nil, fmt.Errorf("user profile case %q missing", name)
	}
	return profile, nil
}

func displayName(up userProfile) string {
	if up.DisplayName != "" {
		return up.DisplayName
	}
	return up.Title
}

func decodeSnap(account string, raw json.RawMessage) (snap, error) {
	var s snap
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, &errs.Error{Type: errs.ErrorTypeParsing, Message: "invalid snap", Account: account, Err: err}
	}
	return s, nil
}

// storyItems assigns sequences to consecutive snaps sharing a timestamp. A run
// of one keeps a nil sequence.
func storyItems(account string, list []json.RawMessage) ([]models.MediaItem, error) {
	var items []models.MediaItem
	runs := make(map[int64]int)

	flush := func(run []models.MediaItem) {
		if len(run) > 1 {
			ts := run[0].Timestamp
			runs[ts]++
			key := strconv.FormatInt(ts, 10)
			if runs[ts] > 1 {
				key = fmt.Sprintf("%s-%d", key, runs[ts])
			}
			for i := range run {
				run[i].Sequence = models.IntPtr(i + 1)
				run[i].Group = key
			}
		}
		items = append(items, run...)
	}

	var run []models.MediaItem
	for i, raw := range list {
		s, err := decodeSnap(account, raw)
		if err != nil {
			return nil, err
		}
		if s.SnapURLs.MediaURL == "" {
			continue
		}
		id := s.SnapID.Value
		if id == "" {
			id = fmt.Sprintf("story-%d-%d", int64(s.TimestampInSec.Value), i+1)
		}
		item := models.MediaItem{
			ID:        id,
			Account:   account,
			Category:  models.CategoryStory,
			Timestamp: int64(s.TimestampInSec.Value),
			MediaURL:  s.SnapURLs.MediaURL,
			MediaType: s.SnapMediaType,
			Extension: extensionFor(s.SnapMediaType, s.SnapURLs.MediaURL),
			Index:     i + 1,
			Raw:       raw,
		}
		if len(run) > 0 && run[len(run)-1].Timestamp != item.Timestamp {
			flush(run)
			run = nil
		}
		run = append(run, item)
	}
	if len(run) > 0 {
		flush(run)
	}
	return items, nil
}

// highlightItems flattens curated or spotlight highlights. Curated highlights
// keep their title as group; untitled ones are numbered.
func highlightItems(account string, category models.Category, highlights []highlight) ([]models.MediaItem, error) {
	var items []models.MediaItem
	untitled := 0
	prefix := "curated"
	if category == models.CategorySpotlight {
		prefix = "spotlight"
	}

	for g, h := range highlights {
		group := strconv.Itoa(g + 1)
		if category == models.CategoryCurated {
			group = h.StoryTitle.Value
			if group == "" {
				untitled++
				group = fmt.Sprintf("Highlight-%d", untitled)
			}
		}

		n := 0
		for _, raw := range h.SnapList {
			s, err := decodeSnap(account, raw)
			if err != nil {
				return nil, err
			}
			if s.SnapURLs.MediaURL == "" {
				continue
			}
			n++
			id := s.SnapID.Value
			if id == "" {
				id = fmt.Sprintf("%s-%s-%d", prefix, group, n)
			}
			items = append(items, models.MediaItem{
				ID:        id,
				Account:   account,
				Category:  category,
				Timestamp: int64(s.TimestampInSec.Value),
				MediaURL:  s.SnapURLs.MediaURL,
				MediaType: s.SnapMediaType,
				Extension: extensionFor(s.SnapMediaType, s.SnapURLs.MediaURL),
				Group:     group,
				Index:     n,
				Raw:       raw,
			})
		}
	}
	return items, nil
}
