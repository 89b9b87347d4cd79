package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/zlnvch/whiteboard/board"
	"github.com/zlnvch/whiteboard/models"
)

const (
	ThumbnailWidth   = 720
	ThumbnailHeight  = 432
	thumbnailPadding = 24.0
	thumbnailMaxZoom = 2.0
)

// ThumbnailViewport fits the elements' combined bounds into a w × h box,
// centred, preserving aspect ratio. An empty board gets the default viewport.
func ThumbnailViewport(elements models.Elements, w, h float64) models.Viewport {
	var (
		bounds board.Bounds
		found  bool
	)
	for _, el := range elements {
		b := board.ElementBounds(el)
		if !found {
			bounds, found = b, true
			continue
		}
		bounds = bounds.Union(b)
	}
	if !found {
		return models.DefaultViewport()
	}

	bounds = bounds.Expand(thumbnailPadding)
	zoom := math.Min(w/bounds.W, h/bounds.H)
	zoom = math.Min(zoom, thumbnailMaxZoom)
	return models.Viewport{
		PanX: (w-bounds.W*zoom)/2 - bounds.X*zoom,
		PanY: (h-bounds.H*zoom)/2 - bounds.Y*zoom,
		Zoom: zoom,
	}
}

// Thumbnail renders elements into a fixed-size image letterboxed against the
// background colour. Images are resolved before drawing instead of waiting
// for the background decode. complete is false when an image could not be
// drawn.
func (r *Renderer) Thumbnail(ctx context.Context, elements models.Elements) (thumb *image.RGBA, complete bool) {
	if r.images != nil {
		for _, el := range elements {
			if img, ok := el.(*models.Image); ok {
				r.images.Resolve(ctx, img.URL)
			}
		}
	}

	s := NewSurface(ThumbnailWidth, ThumbnailHeight, 1)
	vp := ThumbnailViewport(elements, ThumbnailWidth, ThumbnailHeight)
	missing := r.Render(s, Scene{Elements: elements, Viewport: vp})
	return s.Image(), !missing
}

// EncodePNG encodes img for transport. Frames favour speed over size.
func EncodePNG(img image.Image, fast bool) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if fast {
		enc.CompressionLevel = png.BestSpeed
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
