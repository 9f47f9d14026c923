package multipart

import (
	"fmt"
	"sort"
	"strconv"

	"snapdl/pkg/models"
)

// Group collects the sequenced story chunks of items into story groups.
// Chunks are keyed by their group key (the shared timestamp when absent),
// ordered by sequence with ties broken by timestamp then id, and split
// wherever the sequence is not contiguous. Split runs get a suffixed key.
func Group(items []models.MediaItem) []models.StoryGroup {
	buckets := make(map[string][]models.MediaItem)
	var order []string
	for _, item := range items {
		if !item.IsMultipart() {
			continue
		}
		key := item.Group
		if key == "" {
			key = strconv.FormatInt(item.Timestamp, 10)
		}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], item)
	}

	var groups []models.StoryGroup
	for _, key := range order {
		chunks := buckets[key]
		sort.SliceStable(chunks, func(i, j int) bool {
			a, b := chunks[i], chunks[j]
			if *a.Sequence != *b.Sequence {
				return *a.Sequence < *b.Sequence
			}
			if a.Timestamp != b.Timestamp {
				return a.Timestamp < b.Timestamp
			}
			return a.ID < b.ID
		})

		run := []models.MediaItem{chunks[0]}
		n := 1
		emit := func() {
			k := key
			if n > 1 {
				k = fmt.Sprintf("%s-%d", key, n)
			}
			groups = append(groups, models.StoryGroup{Key: k, Items: run})
		}
		for _, chunk := range chunks[1:] {
			if *chunk.Sequence != *run[len(run)-1].Sequence+1 {
				emit()
				n++
				run = nil
			}
			run = append(run, chunk)
		}
		emit()
	}
	return groups
}
