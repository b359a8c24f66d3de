package model

// This module defines the 24 bit RGB pixel representation used by the
// rendering surfaces and the wire codec

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Pixel is a single 24 bit RGB LED value
type Pixel struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
}

var (
	Black = Pixel{0x00, 0x00, 0x00}
	White = Pixel{0xFF, 0xFF, 0xFF}
	Red   = Pixel{0xFF, 0x00, 0x00}
	Green = Pixel{0x00, 0xFF, 0x00}
	Blue  = Pixel{0x00, 0x00, 0xFF}
)

func satAdd(a, b uint8) uint8 {
	sum := uint16(a) + uint16(b)
	if sum > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(sum)
}

// Add combines two pixels using per channel saturating addition
func (p Pixel) Add(o Pixel) Pixel {
	return Pixel{
		R: satAdd(p.R, o.R),
		G: satAdd(p.G, o.G),
		B: satAdd(p.B, o.B),
	}
}

// FadeBy scales every channel by (1 - f), with f clamped to the unit
// interval.  FadeBy(0) is the identity, FadeBy(1) is black.
func (p Pixel) FadeBy(f float64) Pixel {
	if f <= 0 {
		return p
	}
	if f >= 1 {
		return Black
	}
	scale := 1.0 - f
	return Pixel{
		R: uint8(float64(p.R) * scale),
		G: uint8(float64(p.G) * scale),
		B: uint8(float64(p.B) * scale),
	}
}

// HSV converts a hue, saturation, value triple into an RGB pixel.  The hue
// is in degrees and is reduced modulo 360 into [0,360) before conversion so
// that accumulating hues never fall outside the color space.  Saturation and
// value are clamped to [0,1].
func HSV(hue, sat, val float64) Pixel {
	hue = math.Mod(hue, 360.0)
	if hue < 0 {
		hue += 360.0
	}
	sat = clampUnit(sat)
	val = clampUnit(val)

	r, g, b := colorful.Hsv(hue, sat, val).RGB255()
	return Pixel{R: r, G: g, B: b}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
