package render

import (
	"image/color"
	"strconv"
	"strings"
)

var (
	Background  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	GridColor   = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	AccentColor = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	black       = color.RGBA{A: 0xff}
)

// ParseHex parses #rgb, #rgba, #rrggbb and #rrggbbaa. Anything else is black.
func ParseHex(s string) color.RGBA {
	s = strings.TrimPrefix(s, "#")

	var short bool
	switch len(s) {
	case 3, 4:
		short = true
	case 6, 8:
	default:
		return black
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return black
	}

	if short {
		if len(s) == 3 {
			v = v<<4 | 0xf
		}
		r, g, b, a := uint8(v>>12&0xf), uint8(v>>8&0xf), uint8(v>>4&0xf), uint8(v&0xf)
		return premultiply(r*17, g*17, b*17, a*17)
	}

	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return premultiply(uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v))
}

func premultiply(r, g, b, a uint8) color.RGBA {
	if a == 0xff {
		return color.RGBA{R: r, G: g, B: b, A: a}
	}
	return color.RGBA{
		R: uint8(uint32(r) * uint32(a) / 0xff),
		G: uint8(uint32(g) * uint32(a) / 0xff),
		B: uint8(uint32(b) * uint32(a) / 0xff),
		A: a,
	}
}
