// Package ingest turns user files into insertable image assets.
//
// Files are checked for size and type before anything else happens, so a
// rejected file never touches the board. Accepted files are registered as
// transient blob references; they become durable only when a Save
// normalizes the board.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/assets"
)

const (
	DefaultMaxImageBytes = 10 << 20
	DefaultMaxPDFBytes   = 25 << 20
	DefaultMaxPDFPages   = 20
	DefaultMaxWidth      = 480.0
)

var imageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp"}

type Limits struct {
	MaxImageBytes int64
	MaxPDFBytes   int64
	MaxPDFPages   int

	// MaxWidth is the widest an inserted image may be, in world units.
	MaxWidth float64
}

func DefaultLimits() Limits {
	return Limits{
		MaxImageBytes: DefaultMaxImageBytes,
		MaxPDFBytes:   DefaultMaxPDFBytes,
		MaxPDFPages:   DefaultMaxPDFPages,
		MaxWidth:      DefaultMaxWidth,
	}
}

// Asset is an image ready to be placed on the board. Width and Height are
// the natural pixel size; W and H the insertion size.
type Asset struct {
	URL         string  `json:"url"`
	ContentType string  `json:"contentType"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	W           float64 `json:"w"`
	H           float64 `json:"h"`
	Page        int     `json:"page,omitempty"`
}

type Importer struct {
	blobs  *assets.Blobs
	raster Rasterizer
	limits Limits
}

func NewImporter(blobs *assets.Blobs, raster Rasterizer, limits Limits) *Importer {
	return &Importer{blobs: blobs, raster: raster, limits: limits}
}

// ImportImage validates an image file and registers it as a blob.
func (i *Importer) ImportImage(data []byte) (Asset, error) {
	if int64(len(data)) > i.limits.MaxImageBytes {
		return Asset{}, apperr.NewValidation(fmt.Sprintf("image is larger than %d MB", i.limits.MaxImageBytes>>20))
	}
	if len(data) == 0 {
		return Asset{}, apperr.NewValidation("image is empty")
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), imageTypes...) {
		return Asset{}, apperr.NewValidation(fmt.Sprintf("unsupported file type %s", mtype.String()))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Asset{}, apperr.NewDecode("image could not be read", err)
	}
	return i.register(data, mtype.String(), cfg.Width, cfg.Height, 0), nil
}

// ImportPDF rasterizes up to MaxPDFPages pages and registers each as a blob.
// The result is in page order.
func (i *Importer) ImportPDF(ctx context.Context, data []byte) ([]Asset, error) {
	if int64(len(data)) > i.limits.MaxPDFBytes {
		return nil, apperr.NewValidation(fmt.Sprintf("PDF is larger than %d MB", i.limits.MaxPDFBytes>>20))
	}
	if !mimetype.Detect(data).Is("application/pdf") {
		return nil, apperr.NewValidation("file is not a PDF")
	}
	if i.raster == nil {
		return nil, apperr.NewDecode("PDF import is not available", nil)
	}

	pages, err := i.raster.Rasterize(ctx, data, i.limits.MaxPDFPages)
	if err != nil {
		return nil, apperr.NewDecode("PDF could not be rendered", err)
	}
	if len(pages) > i.limits.MaxPDFPages {
		pages = pages[:i.limits.MaxPDFPages]
	}

	out := make([]Asset, 0, len(pages))
	for _, p := range pages {
		out = append(out, i.register(p.Image, "image/png", p.Width, p.Height, p.Number))
	}
	return out, nil
}

func (i *Importer) register(data []byte, contentType string, width, height, page int) Asset {
	w, h := FitWidth(float64(width), float64(height), i.limits.MaxWidth)
	return Asset{
		URL:         i.blobs.Register(data, contentType),
		ContentType: contentType,
		Width:       width,
		Height:      height,
		W:           w,
		H:           h,
		Page:        page,
	}
}

// FitWidth scales (w, h) down so w does not exceed maxWidth, preserving the
// aspect ratio. Smaller sizes are returned unchanged.
func FitWidth(w, h, maxWidth float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if maxWidth <= 0 || w <= maxWidth {
		return w, h
	}
	return maxWidth, h * maxWidth / w
}
