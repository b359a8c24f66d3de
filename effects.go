package nightdriver

// This file contains the built in effect catalog.  Effects are stateful
// pixel producers declared at startup, each render call mutates the site
// surface for the current tick.

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ledgrid/nightdriver/model"
)

// Effect is a pixel producer.  Render is always invoked from the owning
// site's render goroutine and never concurrently.
type Effect interface {
	Name() string
	Render(s *Surface, now time.Time)
}

// BuildEffect maps a declarative effect description onto a concrete effect
func BuildEffect(cfg model.EffectConfig) (effect Effect, err errors.Error) {
	switch cfg.Type {
	case "solid":
		return NewSolidEffect(cfg.Color), nil
	case "rainbow":
		return NewRainbowEffect(cfg.StartHue, cfg.DeltaHue, cfg.Speed), nil
	case "palette":
		return NewPaletteEffect(cfg.Colors, cfg.Speed), nil
	case "meteor":
		return NewMeteorEffect(cfg.Color, cfg.Size, cfg.Speed), nil
	case "twinkle":
		return NewTwinkleEffect(cfg.Color, cfg.Density), nil
	}
	return nil, errors.New("unknown effect type").With("type", cfg.Type).With("stack", stack.Trace().TrimRuntime())
}

// elapsed converts a wall clock instant into fractional seconds used to
// advance time based effects
func elapsed(now time.Time) float64 {
	return float64(now.UnixNano()) / float64(time.Second)
}

// SolidEffect paints the whole surface a single color
type SolidEffect struct {
	Color model.Pixel
}

func NewSolidEffect(color model.Pixel) (effect *SolidEffect) {
	return &SolidEffect{Color: color}
}

func (effect *SolidEffect) Name() string { return "Solid" }

func (effect *SolidEffect) Render(s *Surface, now time.Time) {
	s.FillSolid(effect.Color)
}

// RainbowEffect scrolls a hue ramp along the strip
type RainbowEffect struct {
	startHue float64
	deltaHue float64
	degPerS  float64
}

func NewRainbowEffect(startHue, deltaHue, degreesPerSecond float64) (effect *RainbowEffect) {
	if deltaHue == 0 {
		deltaHue = 4.0
	}
	if degreesPerSecond == 0 {
		degreesPerSecond = 36.0
	}
	return &RainbowEffect{
		startHue: startHue,
		deltaHue: deltaHue,
		degPerS:  degreesPerSecond,
	}
}

func (effect *RainbowEffect) Name() string { return "Rainbow" }

func (effect *RainbowEffect) Render(s *Surface, now time.Time) {
	s.FillRainbow(effect.startHue+elapsed(now)*effect.degPerS, effect.deltaHue)
}

// PaletteEffect scrolls a gradient palette along the strip.  The palette is
// interpolated between the configured stops in Lab space which keeps the
// perceived brightness even across the blend.
type PaletteEffect struct {
	palette []model.Pixel
	pxPerS  float64
}

const paletteSteps = 256

func NewPaletteEffect(stops []model.Pixel, pixelsPerSecond float64) (effect *PaletteEffect) {
	if len(stops) == 0 {
		stops = []model.Pixel{model.Red, model.Blue}
	}
	if len(stops) == 1 {
		stops = append(stops, stops[0])
	}
	if len(stops) > paletteSteps {
		stops = stops[:paletteSteps]
	}
	if pixelsPerSecond == 0 {
		pixelsPerSecond = 12.0
	}

	effect = &PaletteEffect{
		palette: make([]model.Pixel, paletteSteps),
		pxPerS:  pixelsPerSecond,
	}

	// The stops are spread evenly across the palette and blended pairwise,
	// wrapping the final stop back to the first so scrolling is seamless
	segments := len(stops)
	span := paletteSteps / segments
	for seg := 0; seg < segments; seg++ {
		from := toColorful(stops[seg])
		to := toColorful(stops[(seg+1)%segments])
		for i := 0; i < span; i++ {
			r, g, b := from.BlendLab(to, float64(i)/float64(span)).RGB255()
			effect.palette[seg*span+i] = model.Pixel{R: r, G: g, B: b}
		}
	}
	// Integer division can leave a tail of unassigned entries, extend the
	// final blend across them
	for i := segments * span; i < paletteSteps; i++ {
		effect.palette[i] = effect.palette[segments*span-1]
	}
	return effect
}

func toColorful(p model.Pixel) colorful.Color {
	return colorful.Color{R: float64(p.R) / 255.0, G: float64(p.G) / 255.0, B: float64(p.B) / 255.0}
}

func (effect *PaletteEffect) Name() string { return "Palette" }

func (effect *PaletteEffect) Render(s *Surface, now time.Time) {
	offset := elapsed(now) * effect.pxPerS
	for i := 0; i < s.Len(); i++ {
		pos := int(offset+float64(i)) % paletteSteps
		if pos < 0 {
			pos += paletteSteps
		}
		s.DrawPixel(i, effect.palette[pos])
	}
}

// MeteorEffect sweeps an anti-aliased pulse along the strip leaving a
// decaying trail behind it
type MeteorEffect struct {
	color model.Pixel
	size  float64
	speed float64
}

func NewMeteorEffect(color model.Pixel, size, speed float64) (effect *MeteorEffect) {
	if color == model.Black {
		color = model.White
	}
	if size <= 0 {
		size = 4.0
	}
	if speed <= 0 {
		speed = 18.0
	}
	return &MeteorEffect{color: color, size: size, speed: speed}
}

func (effect *MeteorEffect) Name() string { return "Meteor" }

func (effect *MeteorEffect) Render(s *Surface, now time.Time) {
	s.FadeAllToBlackBy(0.25)

	// The sweep runs off both ends of the strip so the pulse fully exits
	// before wrapping
	span := float64(s.Len()) + 2.0*effect.size
	pos := math.Mod(elapsed(now)*effect.speed, span) - effect.size

	s.DrawPixels(pos, effect.size, effect.color)
	s.Blur(1)
}

// TwinkleEffect scatters short lived sparks across a decaying background
type TwinkleEffect struct {
	color   model.Pixel
	density float64
	rnd     *rand.Rand
}

func NewTwinkleEffect(color model.Pixel, density float64) (effect *TwinkleEffect) {
	if color == model.Black {
		color = model.White
	}
	if density <= 0 || density > 1 {
		density = 0.05
	}
	return &TwinkleEffect{
		color:   color,
		density: density,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (effect *TwinkleEffect) Name() string { return "Twinkle" }

func (effect *TwinkleEffect) Render(s *Surface, now time.Time) {
	s.FadeAllToBlackBy(0.1)

	sparks := int(math.Ceil(effect.density * float64(s.Len())))
	for i := 0; i < sparks; i++ {
		s.DrawPixels(effect.rnd.Float64()*float64(s.Len()), 1.0, effect.color)
	}
}
