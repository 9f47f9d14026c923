// Package snapchat reads public profile pages and turns them into media items.
//
// A profile page embeds its state as JSON in a __NEXT_DATA__ script element.
// ParsePage extracts stories, curated highlights and spotlight highlights
// from it; Client adds the HTTP side with request pacing and error
// classification.
package snapchat
