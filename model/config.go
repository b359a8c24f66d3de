package model

// This module defines the declarative site list that the server is started
// with.  The configuration is loaded once at boot, validated, and is then
// immutable for the life of the process.

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	yaml "gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the TCP port NightDriver controllers listen on
	DefaultPort = 49152

	// DefaultChannelMask drives every output channel on the controller
	DefaultChannelMask = 0xFFFF

	// DefaultFPS is the render cadence used when a site does not name one
	DefaultFPS = 22

	// DefaultTimezone is the civil timezone used to evaluate schedule
	// activation windows when the configuration does not name one
	DefaultTimezone = "America/Los_Angeles"
)

// DayMask selects days of the week, bit i set for time.Weekday(i)
type DayMask uint8

const (
	Sunday    DayMask = 1 << time.Sunday
	Monday    DayMask = 1 << time.Monday
	Tuesday   DayMask = 1 << time.Tuesday
	Wednesday DayMask = 1 << time.Wednesday
	Thursday  DayMask = 1 << time.Thursday
	Friday    DayMask = 1 << time.Friday
	Saturday  DayMask = 1 << time.Saturday

	Weekdays = Monday | Tuesday | Wednesday | Thursday | Friday
	Weekend  = Saturday | Sunday
	AllDays  = Weekdays | Weekend
)

// Includes tests whether the supplied weekday is selected by the mask
func (m DayMask) Includes(day time.Weekday) bool {
	return m&(1<<uint(day)) != 0
}

var dayNames = map[string]DayMask{
	"sun": Sunday, "sunday": Sunday,
	"mon": Monday, "monday": Monday,
	"tue": Tuesday, "tuesday": Tuesday,
	"wed": Wednesday, "wednesday": Wednesday,
	"thu": Thursday, "thursday": Thursday,
	"fri": Friday, "friday": Friday,
	"sat": Saturday, "saturday": Saturday,
	"weekdays": Weekdays,
	"weekend":  Weekend,
	"all":      AllDays,
}

// ParseDays folds a list of day names into a DayMask.  An empty list selects
// every day of the week.
func ParseDays(days []string) (mask DayMask, err errors.Error) {
	if len(days) == 0 {
		return AllDays, nil
	}
	for _, day := range days {
		bits, isPresent := dayNames[strings.ToLower(strings.TrimSpace(day))]
		if !isPresent {
			return 0, errors.New("unknown day name").With("day", day).With("stack", stack.Trace().TrimRuntime())
		}
		mask |= bits
	}
	return mask, nil
}

// StripConfig describes one physical controller and the slice of the site
// buffer it displays
type StripConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Name        string `yaml:"name"`
	Length      int    `yaml:"length"`
	Offset      int    `yaml:"offset"`
	ChannelMask uint16 `yaml:"channel"`
	Reversed    bool   `yaml:"reversed"`
	Compress    bool   `yaml:"compress"`
}

// Addr returns the dialable host:port for the controller
func (cfg *StripConfig) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// EffectConfig is the declarative form of a single effect.  The server maps
// the type name onto a concrete effect implementation at boot.
type EffectConfig struct {
	Type     string  `yaml:"type"`
	Color    Pixel   `yaml:"color"`
	Colors   []Pixel `yaml:"colors"`
	StartHue float64 `yaml:"startHue"`
	DeltaHue float64 `yaml:"deltaHue"`
	Speed    float64 `yaml:"speed"`
	Size     float64 `yaml:"size"`
	Density  float64 `yaml:"density"`
}

// ScheduleConfig attaches a time of day and day of week activation window to
// an effect.  Minute fields default to covering the whole of the start and
// end hours, 0 and 60 respectively.
type ScheduleConfig struct {
	Effect      EffectConfig `yaml:"effect"`
	Days        []string     `yaml:"days"`
	StartHour   int          `yaml:"startHour"`
	StartMinute *int         `yaml:"startMinute"`
	EndHour     int          `yaml:"endHour"`
	EndMinute   *int         `yaml:"endMinute"`
}

// Minutes returns the activation window endpoints in minutes since local
// midnight, applying the minute defaults
func (cfg *ScheduleConfig) Minutes() (start, end int) {
	start = cfg.StartHour * 60
	if cfg.StartMinute != nil {
		start += *cfg.StartMinute
	}
	end = cfg.EndHour*60 + 60
	if cfg.EndMinute != nil {
		end = cfg.EndHour*60 + *cfg.EndMinute
	}
	return start, end
}

// SiteConfig describes one physical installation, a pixel buffer carved up
// between one or more strip controllers
type SiteConfig struct {
	Name      string           `yaml:"name"`
	Pixels    int              `yaml:"pixels"`
	FPS       int              `yaml:"fps"`
	Strips    []StripConfig    `yaml:"strips"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// Config is the full declarative site list for the process
type Config struct {
	Timezone string       `yaml:"timezone"`
	Sites    []SiteConfig `yaml:"sites"`
}

// LoadConfig reads, defaults, and validates a YAML site list
func LoadConfig(fn string) (cfg *Config, err errors.Error) {
	data, errGo := os.ReadFile(fn)
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("file", fn).With("stack", stack.Trace().TrimRuntime())
	}

	cfg = &Config{}
	if errGo = yaml.Unmarshal(data, cfg); errGo != nil {
		return nil, errors.Wrap(errGo).With("file", fn).With("stack", stack.Trace().TrimRuntime())
	}

	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err.With("file", fn)
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if len(cfg.Timezone) == 0 {
		// The TZ environment variable wins when the site list is silent
		if tz := os.Getenv("TZ"); len(tz) != 0 {
			cfg.Timezone = tz
		} else {
			cfg.Timezone = DefaultTimezone
		}
	}
	for i := range cfg.Sites {
		site := &cfg.Sites[i]
		if site.FPS == 0 {
			site.FPS = DefaultFPS
		}
		for j := range site.Strips {
			strip := &site.Strips[j]
			if strip.Port == 0 {
				strip.Port = DefaultPort
			}
			if strip.ChannelMask == 0 {
				strip.ChannelMask = DefaultChannelMask
			}
			if len(strip.Name) == 0 {
				strip.Name = strip.Host
			}
		}
	}
}

// Location resolves the configured civil timezone
func (cfg *Config) Location() (loc *time.Location, err errors.Error) {
	loc, errGo := time.LoadLocation(cfg.Timezone)
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("timezone", cfg.Timezone).With("stack", stack.Trace().TrimRuntime())
	}
	return loc, nil
}

// Validate checks the site list for errors that must stop the server before
// any render thread is started
func (cfg *Config) Validate() (err errors.Error) {
	if len(cfg.Sites) == 0 {
		return errors.New("no sites configured").With("stack", stack.Trace().TrimRuntime())
	}
	for _, site := range cfg.Sites {
		if len(site.Name) == 0 {
			return errors.New("site missing a name").With("stack", stack.Trace().TrimRuntime())
		}
		if site.Pixels <= 0 {
			return errors.New("site pixel count must be positive").With("site", site.Name).With("stack", stack.Trace().TrimRuntime())
		}
		if site.FPS <= 0 {
			return errors.New("site fps must be positive").With("site", site.Name).With("stack", stack.Trace().TrimRuntime())
		}
		for _, strip := range site.Strips {
			if len(strip.Host) == 0 {
				return errors.New("strip missing a host").With("site", site.Name).With("strip", strip.Name).With("stack", stack.Trace().TrimRuntime())
			}
			if strip.Length <= 0 {
				return errors.New("strip length must be positive").With("site", site.Name).With("strip", strip.Name).With("stack", stack.Trace().TrimRuntime())
			}
			if strip.Offset < 0 || strip.Offset+strip.Length > site.Pixels {
				return errors.New("strip extent outside the site buffer").
					With("site", site.Name).With("strip", strip.Name).
					With("offset", strip.Offset).With("length", strip.Length).With("pixels", site.Pixels).
					With("stack", stack.Trace().TrimRuntime())
			}
		}
		for _, sched := range site.Schedules {
			if sched.StartHour < 0 || sched.StartHour > 23 || sched.EndHour < 0 || sched.EndHour > 23 {
				return errors.New("schedule hours must be within 0 to 23").With("site", site.Name).With("stack", stack.Trace().TrimRuntime())
			}
			if sched.StartMinute != nil && (*sched.StartMinute < 0 || *sched.StartMinute > 60) {
				return errors.New("schedule minutes must be within 0 to 60").With("site", site.Name).With("stack", stack.Trace().TrimRuntime())
			}
			if sched.EndMinute != nil && (*sched.EndMinute < 0 || *sched.EndMinute > 60) {
				return errors.New("schedule minutes must be within 0 to 60").With("site", site.Name).With("stack", stack.Trace().TrimRuntime())
			}
			if _, err = ParseDays(sched.Days); err != nil {
				return err.With("site", site.Name)
			}
		}
	}
	return nil
}
