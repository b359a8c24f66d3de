package nightdriver

// This module implements the process wide site registry.  The registry is
// built once at boot from the declarative site list, starts every site, and
// publishes periodic status snapshots for observers.  It is immutable after
// construction and is handed explicitly to any component that needs it.

import (
	"time"

	"github.com/karlmutch/errors"

	"github.com/ledgrid/nightdriver/model"
)

// Registry holds the immutable list of sites for the process
type Registry struct {
	sites    []*Site
	location *time.Location
}

// NewRegistry resolves the configured timezone and builds every site in the
// site list
func NewRegistry(cfg *model.Config) (reg *Registry, err errors.Error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reg = &Registry{
		location: location,
	}
	for _, siteCfg := range cfg.Sites {
		site, err := NewSite(siteCfg, location)
		if err != nil {
			return nil, err
		}
		reg.sites = append(reg.sites, site)
	}
	return reg, nil
}

// Sites returns the sites held by the registry
func (reg *Registry) Sites() []*Site {
	return reg.sites
}

// Start launches every site and begins publishing status snapshots at the
// supplied interval.  The returned channel accepts subscriber channels for
// the snapshot broadcast.  A site that fails to start aborts the whole
// startup, there is no partial service.
func (reg *Registry) Start(statusInterval time.Duration, errorC chan<- errors.Error, quitC <-chan struct{}) (subscribeC chan chan []model.SiteStatus, err errors.Error) {

	for _, site := range reg.sites {
		if err = site.Start(errorC, quitC); err != nil {
			return nil, err
		}
	}

	inC, subscribeC := startFanOut(quitC)

	go func() {
		sample := time.NewTicker(statusInterval)
		defer sample.Stop()

		for {
			select {
			case <-sample.C:
				select {
				case inC <- reg.Status():
				case <-quitC:
					return
				}
			case <-quitC:
				return
			}
		}
	}()

	return subscribeC, nil
}

// Status snapshots every site in the registry
func (reg *Registry) Status() (statuses []model.SiteStatus) {
	statuses = make([]model.SiteStatus, 0, len(reg.sites))
	for _, site := range reg.sites {
		statuses = append(statuses, site.Status())
	}
	return statuses
}

// GlobalMinSpareMs reports the smallest render headroom observed across all
// sites, the single number that says how close the process is to missing
// its cadence
func (reg *Registry) GlobalMinSpareMs() (spare int64) {
	first := true
	for _, site := range reg.sites {
		ms := site.SpareMs()
		if first || ms < spare {
			spare = ms
			first = false
		}
	}
	return spare
}
