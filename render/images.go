package render

import (
	"bytes"
	"context"
	"image"
	"log"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/zlnvch/whiteboard/apperr"
)

// Loader fetches the encoded bytes behind an image URL.
type Loader func(ctx context.Context, url string) ([]byte, error)

// Decoded reports a finished decode. Err is set when the URL was evicted.
type Decoded struct {
	URL string
	Err error
}

// ImageCache decodes image URLs in the background and caches the result by
// URL. Lookups never block: an undecoded URL is reported as absent and a
// Decoded notice is sent on Done once it resolves. A URL that fails to load
// or decode is evicted and not retried.
type ImageCache struct {
	ctx  context.Context
	load Loader

	mu      sync.RWMutex
	ready   map[string]image.Image
	pending map[string]struct{}
	failed  map[string]struct{}

	done chan Decoded
}

func NewImageCache(ctx context.Context, load Loader) *ImageCache {
	return &ImageCache{
		ctx:     ctx,
		load:    load,
		ready:   make(map[string]image.Image),
		pending: make(map[string]struct{}),
		failed:  make(map[string]struct{}),
		done:    make(chan Decoded, 64),
	}
}

func (c *ImageCache) Done() <-chan Decoded {
	return c.done
}

// Get returns the decoded image for url, starting a decode on first use.
func (c *ImageCache) Get(url string) (image.Image, bool) {
	c.mu.RLock()
	img, ok := c.ready[url]
	c.mu.RUnlock()
	if ok {
		return img, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.ready[url]; ok {
		return img, true
	}
	if _, ok := c.pending[url]; ok {
		return nil, false
	}
	if _, ok := c.failed[url]; ok {
		return nil, false
	}
	if url == "" || c.load == nil {
		return nil, false
	}
	c.pending[url] = struct{}{}
	go c.decode(url)
	return nil, false
}

// Resolve returns the decoded image for url, loading it on the caller's
// goroutine when no decode has finished yet. It is for offscreen renders that
// cannot wait for Done. A URL that already failed stays evicted.
func (c *ImageCache) Resolve(ctx context.Context, url string) (image.Image, bool) {
	c.mu.RLock()
	img, ok := c.ready[url]
	_, failed := c.failed[url]
	c.mu.RUnlock()
	if ok {
		return img, true
	}
	if failed || url == "" || c.load == nil {
		return nil, false
	}

	data, err := c.load(ctx, url)
	if err == nil {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		log.Printf("Failed to resolve image %s: %v", url, err)
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.ready[url]; ok {
		return cached, true
	}
	c.ready[url] = img
	return img, true
}

// Put seeds the cache with an already decoded image.
func (c *ImageCache) Put(url string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready[url] = img
	delete(c.failed, url)
}

// Alias makes url resolve to whatever from resolves to. It is used when a
// transient reference is rewritten to its durable upload.
func (c *ImageCache) Alias(url, from string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.ready[from]; ok {
		c.ready[url] = img
		delete(c.failed, url)
	}
}

func (c *ImageCache) decode(url string) {
	img, err := c.fetch(url)

	c.mu.Lock()
	delete(c.pending, url)
	if err != nil {
		c.failed[url] = struct{}{}
		log.Printf("Failed to decode image %s: %v", url, err)
	} else {
		c.ready[url] = img
	}
	c.mu.Unlock()

	select {
	case c.done <- Decoded{URL: url, Err: err}:
	case <-c.ctx.Done():
	}
}

func (c *ImageCache) fetch(url string) (image.Image, error) {
	data, err := c.load(c.ctx, url)
	if err != nil {
		return nil, apperr.NewDecode("image could not be loaded", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.NewDecode("image could not be decoded", err)
	}
	return img, nil
}
