// Package fetcher downloads provider pages and reads tabular and embedded
// payloads out of them.
package fetcher

import "context"

// Fetcher downloads a remote document.
type Fetcher interface {
	// Fetch returns the body of a successful GET of url.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
