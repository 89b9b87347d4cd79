// Package assets turns transient image references into durable ones.
//
// A Store uploads blobs and returns absolute URLs. Transient references are
// either "blob:" ids held in a Blobs registry or inline "data:" URLs; a
// Fetcher resolves both, plus plain http(s) URLs, to bytes.
package assets

import (
	"context"
)

const (
	FolderImages     = "whiteboards/images"
	FolderThumbnails = "whiteboards/thumbnails"
)

type Store interface {
	// Upload stores blob under folder and returns a durable http(s) URL.
	Upload(ctx context.Context, blob []byte, contentType string, folder string) (string, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}
