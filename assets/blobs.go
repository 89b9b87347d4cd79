package assets

import (
	"strings"
	"sync"

	"github.com/zlnvch/whiteboard/models"
)

const blobScheme = "blob:"

type blob struct {
	data        []byte
	contentType string
}

// Blobs is an in-process registry of uploaded-but-not-yet-persisted files.
// It stands in for the browser's object URLs.
type Blobs struct {
	mu    sync.RWMutex
	items map[string]blob
}

func NewBlobs() *Blobs {
	return &Blobs{items: make(map[string]blob)}
}

// Register stores data and returns its transient "blob:" reference.
func (b *Blobs) Register(data []byte, contentType string) string {
	url := blobScheme + models.NewId()
	b.mu.Lock()
	b.items[url] = blob{data: data, contentType: contentType}
	b.mu.Unlock()
	return url
}

func (b *Blobs) Get(url string) ([]byte, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item, ok := b.items[url]
	return item.data, item.contentType, ok
}

func (b *Blobs) Release(url string) {
	b.mu.Lock()
	delete(b.items, url)
	b.mu.Unlock()
}

func (b *Blobs) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

func IsBlobURL(url string) bool {
	return strings.HasPrefix(url, blobScheme)
}
