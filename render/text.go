package render

import (
	"image"
	"image/color"
	"log"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/zlnvch/whiteboard/models"
)

var (
	regularOnce sync.Once
	regular     *opentype.Font
)

func regularFont() *opentype.Font {
	regularOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			log.Printf("Failed to parse embedded font: %v", err)
			return
		}
		regular = f
	})
	return regular
}

// faceCache holds one face per half-pixel size. Faces are not safe for
// concurrent use, so each Surface keeps its own cache.
type faceCache struct {
	faces map[int]font.Face
}

func newFaceCache() *faceCache {
	return &faceCache{faces: make(map[int]font.Face)}
}

func (c *faceCache) face(px float64) font.Face {
	key := int(math.Round(px * 2))
	if f, ok := c.faces[key]; ok {
		return f
	}
	f := regularFont()
	if f == nil {
		return nil
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(key) / 2,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		log.Printf("Failed to create font face at %.1fpx: %v", px, err)
		return nil
	}
	c.faces[key] = face
	return face
}

// drawString draws s with the top of its line box at origin.
func drawString(dst *image.RGBA, face font.Face, s string, origin models.Point, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(origin.X * 64),
			Y: fixed.Int26_6(origin.Y*64) + face.Metrics().Ascent,
		},
	}
	d.DrawString(s)
}
