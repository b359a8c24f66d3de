package nightdriver

// This module implements the drawing surface that effects render onto.  A
// surface wraps the pixel buffer owned by a site and is only ever touched by
// that site's render goroutine.

import (
	"math"

	"github.com/ledgrid/nightdriver/model"
)

// Surface is a one dimensional drawable over a site's pixel buffer.  All
// operations silently clip indices that fall outside the buffer.
type Surface struct {
	pixels  []model.Pixel
	scratch []model.Pixel
}

// NewSurface wraps the supplied pixel buffer.  The surface never grows or
// shrinks the buffer.
func NewSurface(pixels []model.Pixel) (s *Surface) {
	return &Surface{
		pixels:  pixels,
		scratch: make([]model.Pixel, len(pixels)),
	}
}

// Len returns the number of pixels on the surface
func (s *Surface) Len() int {
	return len(s.pixels)
}

// FillSolid sets every pixel to the supplied color
func (s *Surface) FillSolid(c model.Pixel) {
	for i := range s.pixels {
		s.pixels[i] = c
	}
}

// DrawPixel overwrites the pixel at the supplied index
func (s *Surface) DrawPixel(i int, c model.Pixel) {
	if i < 0 || i >= len(s.pixels) {
		return
	}
	s.pixels[i] = c
}

// BlendPixel adds the color into the pixel at the supplied index using
// saturating addition
func (s *Surface) BlendPixel(i int, c model.Pixel) {
	if i < 0 || i >= len(s.pixels) {
		return
	}
	s.pixels[i] = s.pixels[i].Add(c)
}

// DrawPixels draws an anti-aliased run of the supplied color starting at the
// fractional position start and covering count pixels.  The leading and
// trailing fractional pixels receive the color faded in proportion to their
// coverage, fully covered pixels are blended at full strength.
func (s *Surface) DrawPixels(start, count float64, c model.Pixel) {
	if count <= 0 {
		return
	}

	// Fraction of the first pixel left of the next integer boundary
	head := math.Ceil(start) - start
	if head > 0 {
		amt := math.Min(head, count)
		s.BlendPixel(int(math.Floor(start)), c.FadeBy(1.0-amt))
		count -= amt
	}

	i := int(math.Ceil(start))
	for ; count >= 1.0; i++ {
		s.BlendPixel(i, c)
		count -= 1.0
	}

	if count > 0 {
		s.BlendPixel(i, c.FadeBy(1.0-count))
	}
}

// FadeToBlackBy darkens the pixel at the supplied index by the fraction f
func (s *Surface) FadeToBlackBy(i int, f float64) {
	if i < 0 || i >= len(s.pixels) {
		return
	}
	s.pixels[i] = s.pixels[i].FadeBy(f)
}

// FadeAllToBlackBy darkens the entire surface by the fraction f, used by
// effects that leave decaying trails behind moving elements
func (s *Surface) FadeAllToBlackBy(f float64) {
	for i := range s.pixels {
		s.pixels[i] = s.pixels[i].FadeBy(f)
	}
}

// FillRainbow paints the surface with a hue ramp starting at startHue
// degrees and advancing deltaHue degrees per pixel at full saturation and
// value
func (s *Surface) FillRainbow(startHue, deltaHue float64) {
	for i := range s.pixels {
		s.pixels[i] = model.HSV(startHue+float64(i)*deltaHue, 1.0, 1.0)
	}
}

// Blur applies an in place one dimensional box blur of the supplied integer
// radius.  Window indices past either end of the buffer clamp to the edge
// pixels.
func (s *Surface) Blur(radius int) {
	if radius <= 0 || len(s.pixels) == 0 {
		return
	}

	copy(s.scratch, s.pixels)
	window := 2*radius + 1
	last := len(s.pixels) - 1

	for i := range s.pixels {
		sumR, sumG, sumB := 0, 0, 0
		for j := i - radius; j <= i+radius; j++ {
			k := j
			if k < 0 {
				k = 0
			}
			if k > last {
				k = last
			}
			sumR += int(s.scratch[k].R)
			sumG += int(s.scratch[k].G)
			sumB += int(s.scratch[k].B)
		}
		s.pixels[i] = model.Pixel{
			R: uint8(sumR / window),
			G: uint8(sumG / window),
			B: uint8(sumB / window),
		}
	}
}
