// Package ratelimit paces requests to the profile pages with a token bucket.
package ratelimit
