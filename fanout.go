package nightdriver

// This module implements a broadcast mechanism for accepting site status
// snapshots and relaying them to subscribers such as the console monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/ledgrid/nightdriver/model"
)

type Subs struct {
	subs []chan []model.SiteStatus
	sync.Mutex
}

// startFanOut implements a broadcast mechanism for accepting status
// snapshots and relaying them to subscribers.  The function returns a single
// channel to which status snapshots get sent and, a channel that can be used
// to add listeners
//
func startFanOut(quitC <-chan struct{}) (inC chan []model.SiteStatus, subC chan chan []model.SiteStatus) {

	subs := &Subs{
		subs: []chan []model.SiteStatus{},
	}

	inC = make(chan []model.SiteStatus, 1)
	subC = make(chan chan []model.SiteStatus, 1)

	go func(quitC <-chan struct{}) {
		for {
			select {
			case <-quitC:
				return
			case sub := <-subC:
				if nil != sub {
					subs.Lock()
					subs.subs = append(subs.subs, sub)
					subs.Unlock()
				}
			case msg := <-inC:
				// Subscribers that fail to accept within the timeout miss
				// this snapshot, the next one will try them again
				subs.Lock()
				for _, ch := range subs.subs {
					select {
					case ch <- msg:
					case <-time.After(250 * time.Millisecond):
						fmt.Println("status subscription failed to send")
					}
				}
				subs.Unlock()
			}
		}
	}(quitC)

	return inC, subC
}
