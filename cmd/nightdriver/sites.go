package main

// This file declares the compiled in site list used when no configuration
// file is supplied, a single demonstration site aimed at a controller on the
// local machine

import (
	"github.com/ledgrid/nightdriver/model"
)

func intPtr(v int) *int { return &v }

func defaultConfig() (cfg *model.Config) {
	cfg = &model.Config{
		Timezone: model.DefaultTimezone,
		Sites: []model.SiteConfig{
			{
				Name:   "demo",
				Pixels: 144,
				FPS:    model.DefaultFPS,
				Strips: []model.StripConfig{
					{
						Host:        "127.0.0.1",
						Port:        model.DefaultPort,
						Name:        "demo-0",
						Length:      144,
						Offset:      0,
						ChannelMask: model.DefaultChannelMask,
						Compress:    true,
					},
				},
				Schedules: []model.ScheduleConfig{
					{
						// Rainbow around the clock
						Effect:    model.EffectConfig{Type: "rainbow", DeltaHue: 2.5},
						StartHour: 0,
						EndHour:   23,
					},
					{
						// Meteors take turns with the rainbow during the evenings
						Effect:      model.EffectConfig{Type: "meteor", Color: model.Pixel{R: 0xFF, G: 0x60}},
						StartHour:   18,
						EndHour:     22,
						EndMinute:   intPtr(0),
						StartMinute: intPtr(0),
					},
				},
			},
		},
	}
	return cfg
}
