package ingest

import (
	"context"
	"sync"
)

// Page is one rasterized PDF page, PNG-encoded.
type Page struct {
	Number int
	Image  []byte
	Width  int
	Height int
}

// Rasterizer renders the first maxPages pages of a PDF in order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte, maxPages int) ([]Page, error)
}

// LazyRasterizer defers construction of an expensive Rasterizer until the
// first call and shares it afterwards. A failed construction is remembered
// and returned to every caller.
type LazyRasterizer struct {
	once sync.Once
	init func() (Rasterizer, error)
	r    Rasterizer
	err  error
}

func NewLazyRasterizer(init func() (Rasterizer, error)) *LazyRasterizer {
	return &LazyRasterizer{init: init}
}

func (l *LazyRasterizer) get() (Rasterizer, error) {
	l.once.Do(func() {
		l.r, l.err = l.init()
	})
	return l.r, l.err
}

func (l *LazyRasterizer) Rasterize(ctx context.Context, pdf []byte, maxPages int) ([]Page, error) {
	r, err := l.get()
	if err != nil {
		return nil, err
	}
	return r.Rasterize(ctx, pdf, maxPages)
}
