package main

// This file implements a monitor that subscribes to the registry status
// broadcast and prints per site status lines, suppressing repeats

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cnf/structhash"

	"github.com/ledgrid/nightdriver"
	"github.com/ledgrid/nightdriver/model"
)

func runMonitoring(reg *nightdriver.Registry, subscribeC chan chan []model.SiteStatus, quitC <-chan struct{}) {

	statusC := make(chan []model.SiteStatus, 1)
	defer close(statusC)
	subscribeC <- statusC

	last := []byte{}

	for {
		select {
		case statuses := <-statusC:
			hash := structhash.Md5(statuses, 1)
			if bytes.Compare(last, hash) == 0 {
				continue
			}
			last = hash

			for _, status := range statuses {
				fmt.Fprint(os.Stdout, formatSite(&status))
			}
			logger.Debug(fmt.Sprintf("global min spare %d ms", reg.GlobalMinSpareMs()))

		case <-quitC:
			return
		}
	}
}

func formatSite(status *model.SiteStatus) (line string) {
	line = fmt.Sprintf("%s fps %.1f/%d spare %dms effect %q window %dm", status.Name,
		status.ActualFPS, status.TargetFPS, status.SpareMs, status.Effect, status.EffectMinutes)
	for _, strip := range status.Strips {
		line += fmt.Sprintf("  [%s %s queued %d sent %d dropped %d]",
			strip.Name, strip.State, strip.QueueDepth, strip.Sent, strip.Drops)
	}
	return line + "\n"
}
