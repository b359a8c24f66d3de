package nightdriver

// This module implements a site, one physical installation owning a single
// pixel buffer that a set of strip controllers carve up between themselves.
// Each site runs one render goroutine that holds the frame cadence, renders
// the active effect, and hands the frame to every strip client.

import (
	"sync/atomic"
	"time"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	"github.com/ledgrid/nightdriver/model"
)

// Site owns one pixel buffer, its schedules, and its strip clients.  Sites
// are constructed once at boot and never reconfigured.
type Site struct {
	name      string
	pixels    []model.Pixel
	surface   *Surface
	schedules []*ScheduledEffect
	strips    []*StripClient
	fps       int
	location  *time.Location
	startTime time.Time

	effectName    atomic.Value // string
	effectMinutes atomic.Int64
	spareMs       atomic.Int64
	fpsMilli      atomic.Int64 // frames per second x1000 over the last window
	overruns      atomic.Uint64
}

// NewSite builds a site from its declarative configuration, mapping each
// configured schedule onto a concrete effect
func NewSite(cfg model.SiteConfig, location *time.Location) (site *Site, err errors.Error) {
	site = &Site{
		name:     cfg.Name,
		pixels:   make([]model.Pixel, cfg.Pixels),
		fps:      cfg.FPS,
		location: location,
	}
	site.surface = NewSurface(site.pixels)
	site.effectName.Store("")

	for _, stripCfg := range cfg.Strips {
		site.strips = append(site.strips, NewStripClient(stripCfg))
	}

	for _, schedCfg := range cfg.Schedules {
		effect, err := BuildEffect(schedCfg.Effect)
		if err != nil {
			return nil, err.With("site", cfg.Name)
		}
		days, err := model.ParseDays(schedCfg.Days)
		if err != nil {
			return nil, err.With("site", cfg.Name)
		}
		start, end := schedCfg.Minutes()
		site.schedules = append(site.schedules, &ScheduledEffect{
			Effect:       effect,
			Days:         days,
			startMinutes: start,
			endMinutes:   end,
		})
	}
	return site, nil
}

// newBareSite assembles a site from already constructed parts
func newBareSite(name string, pixels int, fps int, location *time.Location, schedules []*ScheduledEffect, strips []*StripClient) (site *Site) {
	site = &Site{
		name:      name,
		pixels:    make([]model.Pixel, pixels),
		fps:       fps,
		location:  location,
		schedules: schedules,
		strips:    strips,
	}
	site.surface = NewSurface(site.pixels)
	site.effectName.Store("")
	return site
}

// Name returns the site name
func (site *Site) Name() string {
	return site.name
}

// Start validates the strip layout against the buffer, launches every strip
// sender, and then launches the render goroutine.  Layout errors are fatal
// and stop the server before anything runs.
func (site *Site) Start(errorC chan<- errors.Error, quitC <-chan struct{}) (err errors.Error) {
	for _, strip := range site.strips {
		if strip.cfg.Length <= 0 || strip.cfg.Offset < 0 || strip.cfg.Offset+strip.cfg.Length > len(site.pixels) {
			return errors.New("strip extent outside the site buffer").
				With("site", site.name).With("strip", strip.cfg.Name).
				With("offset", strip.cfg.Offset).With("length", strip.cfg.Length).With("pixels", len(site.pixels)).
				With("stack", stack.Trace().TrimRuntime())
		}
	}

	site.startTime = time.Now()

	for _, strip := range site.strips {
		strip.Start(errorC, quitC)
	}

	go site.runRender(errorC, quitC)
	return nil
}

// runRender is the per site render loop.  The cadence is held against the
// monotonic clock, presentation timestamps come from UTC wall clock, and
// schedule activation is evaluated in the site's civil timezone.
func (site *Site) runRender(errorC chan<- errors.Error, quitC <-chan struct{}) {

	period := time.Second / time.Duration(site.fps)

	windowStart := time.Now()
	windowSpare := period
	windowFrames := 0
	windowOverruns := 0

	for {
		select {
		case <-quitC:
			return
		default:
		}

		t0 := time.Now()
		nowLocal := t0.In(site.location)

		if sched := selectEffect(site.schedules, nowLocal, site.startTime); sched != nil {
			sched.Effect.Render(site.surface, t0)
			site.effectName.Store(sched.Effect.Name())
			site.effectMinutes.Store(int64(sched.MinutesRunning(nowLocal)))
		}
		// With no active schedule the previous frame is left on the buffer
		// and still dispatched, controllers keep displaying the last look

		presentAt := time.Now().UTC().Add(BufferLatency)
		for _, strip := range site.strips {
			strip.Enqueue(site.pixels[strip.cfg.Offset : strip.cfg.Offset+strip.cfg.Length], presentAt, errorC)
		}

		renderTime := time.Since(t0)
		spare := period - renderTime
		if spare < windowSpare {
			windowSpare = spare
		}
		windowFrames++

		if renderTime > period {
			// Overruns shed frames, they never pile up
			site.overruns.Add(1)
			windowOverruns++
		} else {
			select {
			case <-time.After(spare):
			case <-quitC:
				return
			}
		}

		if sinceWindow := time.Since(windowStart); sinceWindow >= time.Second {
			site.spareMs.Store(windowSpare.Milliseconds())
			site.fpsMilli.Store(int64(float64(windowFrames) / sinceWindow.Seconds() * 1000.0))
			if windowOverruns != 0 {
				// Reported at most once per window, and dropped rather than
				// blocking when nobody is draining errorC
				select {
				case errorC <- errors.New("render overran the frame period").With("site", site.name).With("overruns", windowOverruns).With("stack", stack.Trace().TrimRuntime()):
				default:
				}
			}
			windowOverruns = 0
			windowStart = time.Now()
			windowSpare = period
			windowFrames = 0
		}
	}
}

// CurrentEffect returns the name of the effect selected on the most recent
// tick
func (site *Site) CurrentEffect() string {
	return site.effectName.Load().(string)
}

// SpareMs returns the minimum per tick headroom observed over the most
// recent one second window
func (site *Site) SpareMs() int64 {
	return site.spareMs.Load()
}

// Status snapshots the observable state of the site and its strips
func (site *Site) Status() (status model.SiteStatus) {
	status = model.SiteStatus{
		Name:          site.name,
		TargetFPS:     site.fps,
		ActualFPS:     float64(site.fpsMilli.Load()) / 1000.0,
		SpareMs:       site.spareMs.Load(),
		Effect:        site.CurrentEffect(),
		EffectMinutes: site.effectMinutes.Load(),
		Overruns:      site.overruns.Load(),
		Strips:        make([]model.StripStatus, 0, len(site.strips)),
	}
	for _, strip := range site.strips {
		status.Strips = append(status.Strips, strip.Status())
	}
	return status
}
